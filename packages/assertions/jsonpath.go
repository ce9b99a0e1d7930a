package assertions

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

// ValueAt looks up path in a JSON document. A leading "$." or "body." is
// accepted and ignored. ok is false when the body is not JSON or the path
// does not exist.
func ValueAt(body []byte, path string) (value any, ok bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}

	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")
	if path == "body" {
		path = ""
	}
	path = strings.TrimPrefix(path, "body.")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return gjson.ParseBytes(body).Value(), true
	}

	result := gjson.GetBytes(body, convertBracketNotation(path))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}
