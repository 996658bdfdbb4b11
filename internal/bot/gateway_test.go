package bot

import (
	"errors"
	"net/http"
	"testing"

	core "levelbot/internal/leveling"

	"github.com/bwmarrin/discordgo"
)

func TestHasGuildPermission(t *testing.T) {
	guild := &discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g1", Permissions: discordgo.PermissionSendMessages},
			{ID: "managers", Permissions: discordgo.PermissionManageRoles},
			{ID: "admins", Permissions: discordgo.PermissionAdministrator},
		},
	}
	cases := []struct {
		name   string
		member *discordgo.Member
		want   bool
	}{
		{"everyone only", &discordgo.Member{User: &discordgo.User{ID: "u1"}}, false},
		{"manage roles", &discordgo.Member{User: &discordgo.User{ID: "u2"}, Roles: []string{"managers"}}, true},
		{"administrator", &discordgo.Member{User: &discordgo.User{ID: "u3"}, Roles: []string{"admins"}}, true},
		{"owner", &discordgo.Member{User: &discordgo.User{ID: "owner"}}, true},
		{"unknown role", &discordgo.Member{User: &discordgo.User{ID: "u4"}, Roles: []string{"gone"}}, false},
	}
	for _, tc := range cases {
		if got := hasGuildPermission(guild, tc.member, discordgo.PermissionManageRoles); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
	if hasGuildPermission(nil, cases[1].member, discordgo.PermissionManageRoles) {
		t.Fatalf("expected false without guild")
	}
}

func TestCanSendWith(t *testing.T) {
	if canSendWith(discordgo.PermissionSendMessages) {
		t.Fatalf("expected view permission to be required")
	}
	if !canSendWith(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages) {
		t.Fatalf("expected view+send to allow sending")
	}
	if !canSendWith(discordgo.PermissionAdministrator) {
		t.Fatalf("expected administrator to allow sending")
	}
}

func TestMapRoleError(t *testing.T) {
	if mapRoleError(nil) != nil {
		t.Fatalf("expected nil")
	}
	denied := &discordgo.RESTError{Response: &http.Response{Status: "403 Forbidden"}, Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions, Message: "Missing Permissions"}}
	if err := mapRoleError(denied); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	other := errors.New("boom")
	if err := mapRoleError(other); err != other || errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("expected passthrough, got %v", err)
	}
}

func TestIsAdmin(t *testing.T) {
	if isAdmin(nil) || isAdmin(&discordgo.Member{Permissions: discordgo.PermissionSendMessages}) {
		t.Fatalf("expected non admin")
	}
	if !isAdmin(&discordgo.Member{Permissions: discordgo.PermissionManageServer}) {
		t.Fatalf("expected manage server to count as admin")
	}
}
