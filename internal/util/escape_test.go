package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscape(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"empty":           {"", ""},
		"plain":           {"plain", "plain"},
		"space":           {"a b", `a\ b`},
		"comma":           {"a,b", `a,\ b`},
		"equals":          {"a=b", `a=\ b`},
		"newlines":        {"line1\nline2\r\n", "line1line2"},
		"mixed":           {"k=v, x", `k=\ v,\ \ x`},
		"only line feeds": {"\r\n\n", ""},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Escape(tc.in))
		})
	}
}

func TestEscapeNeverLeavesLineBreaks(t *testing.T) {
	inputs := []string{
		"<html>\n<body>error</body>\n</html>",
		"\r\r\r",
		"{\"error\": \"bad request\",\r\n \"code\": 400}",
		strings.Repeat("a\nb\rc ", 50),
	}

	for _, in := range inputs {
		out := Escape(in)
		assert.NotContains(t, out, "\n")
		assert.NotContains(t, out, "\r")
	}
}
