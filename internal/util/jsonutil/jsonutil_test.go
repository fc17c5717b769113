package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalFlex(t *testing.T) {
	type out struct {
		Name  string   `json:"name"`
		Items []string `json:"items"`
	}
	cases := map[string]string{
		"plain":          `{"name":"x","items":["a"]}`,
		"fenced":         "```json\n{\"name\":\"x\",\"items\":[\"a\"]}\n```",
		"prose":          "Here you go: {\"name\":\"x\",\"items\":[\"a\"]} Hope it helps.",
		"trailing comma": `{"name":"x","items":["a",],}`,
		"truncated":      `{"name":"x","items":["a"]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var got out
			require.NoError(t, UnmarshalFlex([]byte(raw), &got))
			assert.Equal(t, out{Name: "x", Items: []string{"a"}}, got)
		})
	}
}

func TestMarshalNoEscape(t *testing.T) {
	b, err := MarshalNoEscape(map[string]string{"a": "<b>&"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<b>&"}`, string(b))

	b, err = MarshalNoEscapeIndent(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(b))
}
