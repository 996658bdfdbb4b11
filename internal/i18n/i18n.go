package i18n

import (
	_ "embed"
	"fmt"
	"math/rand/v2"

	"github.com/Jeffail/gabs"
)

//go:embed i18n.json
var catalogJSON []byte

var catalog = mustParse(catalogJSON)

func mustParse(data []byte) *gabs.Container {
	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		panic(fmt.Sprintf("i18n: invalid catalog: %v", err))
	}
	return parsed
}

// Text looks up a dotted id. Unknown ids are returned unchanged; arrays yield a random entry.
func Text(id string) string {
	if !catalog.ExistsP(id) {
		return id
	}
	switch value := catalog.Path(id).Data().(type) {
	case string:
		return value
	case []interface{}:
		if len(value) == 0 {
			return id
		}
		if text, ok := value[rand.IntN(len(value))].(string); ok {
			return text
		}
	}
	return id
}

func Textf(id string, args ...interface{}) string {
	return fmt.Sprintf(Text(id), args...)
}
