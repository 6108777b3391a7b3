package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain passes content through as a string. Invalid UTF-8 sequences
// are rewritten to the replacement character so downstream chunking always
// sees valid text.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�"), nil
	}
	return string(content), nil
}
