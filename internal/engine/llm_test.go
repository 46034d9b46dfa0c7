package engine

import "testing"

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare object", `{"summary":"x"}`, `{"summary":"x"}`},
		{"wrapped in prose", "Here you go:\n{\"a\":{\"b\":1}}\nThanks", `{"a":{"b":1}}`},
		{"no object", "plain text", ""},
		{"reversed braces", "} oops {", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSONObject(tt.raw); got != tt.want {
				t.Errorf("ExtractJSONObject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\nhello\n```":         "hello",
		"  plain  ":               "plain",
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCallLLM_RequiresKey(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })
	cfg = Config{}

	_, err := CallLLM(t.Context(), "", "hi")
	if err == nil {
		t.Fatal("expected configuration error")
	}
}
