package util

import "strings"

var pointValueEscaper = strings.NewReplacer(
	"\n", "",
	"\r", "",
	" ", "\\ ",
	",", ",\\ ",
	"=", "=\\ ",
)

// Escape prepares free text, such as a response body, for use as a tag value.
func Escape(value string) string {
	return pointValueEscaper.Replace(value)
}
