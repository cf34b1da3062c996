package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_SystemPrompt(t *testing.T) {
	prompt, err := Get(ResearchFile, KeySystem)
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful and rigorous research assistant.", prompt)
}

func TestGet_InvalidFile(t *testing.T) {
	_, err := Get("nonexistent.json", "some-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	_, err := Get(ResearchFile, "nonexistent-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRender_WriteReport(t *testing.T) {
	out, err := Render(ResearchFile, KeyWrite, map[string]string{
		"Topic":   "quantum computing",
		"Context": `[{"title":"Qubits"}]`,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Topic: quantum computing")
	assert.Contains(t, out, `[{"title":"Qubits"}]`)
	assert.Contains(t, out, "markdown report")
	assert.Contains(t, out, "citations")
	assert.NotContains(t, out, "{{.")
}

func TestRender_MissingValue(t *testing.T) {
	_, err := Render(ResearchFile, KeyWrite, map[string]string{"Topic": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{{.Context}}")
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{"replaces all", "Hello {{.Name}}, welcome to {{.Company}}!", map[string]string{"Name": "Alice", "Company": "Acme"}, "Hello Alice, welcome to Acme!"},
		{"no placeholders", "plain", map[string]string{"Key": "Value"}, "plain"},
		{"empty data keeps placeholder", "Hello {{.Name}}", map[string]string{}, "Hello {{.Name}}"},
		{"values are not re-expanded", "{{.A}}", map[string]string{"A": "{{.B}}", "B": "x"}, "{{.B}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.template, tt.data))
		})
	}
}

func TestRender_ValueContainingBraces(t *testing.T) {
	out, err := Render(ResearchFile, KeyWrite, map[string]string{
		"Topic":   "templating",
		"Context": "Go templates look like {{.Field}}",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "{{.Field}}")
}
