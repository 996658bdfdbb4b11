package i18n

import (
	"strings"
	"testing"
)

func TestText(t *testing.T) {
	if got := Text("errors.generic"); got == "errors.generic" || got == "" {
		t.Fatalf("expected catalog text, got %q", got)
	}
	if got := Text("missing.key"); got != "missing.key" {
		t.Fatalf("expected unknown id back, got %q", got)
	}
	if got := Text("leveling"); got != "leveling" {
		t.Fatalf("expected object node to resolve to its id, got %q", got)
	}
}

func TestTextfVariants(t *testing.T) {
	for i := 0; i < 20; i++ {
		got := Textf("leveling.level_up", "<@1>", 7)
		if !strings.Contains(got, "<@1>") || !strings.Contains(got, "7") {
			t.Fatalf("unexpected level up text %q", got)
		}
	}
}
