// Package prompts loads the LLM prompt templates embedded in the binary.
// Each JSON file maps a prompt key to its template text.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Research prompt file and keys.
const (
	ResearchFile = "research.json"
	KeySystem    = "system"
	KeyWrite     = "write-report"
)

//go:embed *.json
var promptFiles embed.FS

var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

// Get retrieves a prompt by filename and key.
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	prompt, ok := prompts[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// Render loads a template and fills its {{.Key}} placeholders. A placeholder
// left without a value is an error so a typo cannot reach the model.
func Render(filename, key string, data map[string]string) (string, error) {
	tmpl, err := Get(filename, key)
	if err != nil {
		return "", err
	}

	for _, name := range placeholders(tmpl) {
		if _, ok := data[name]; !ok {
			return "", fmt.Errorf("prompt %s/%s: unfilled placeholder {{.%s}}", filename, key, name)
		}
	}
	return Format(tmpl, data), nil
}

// placeholders lists the {{.Name}} names used by a template.
func placeholders(tmpl string) []string {
	var names []string
	for {
		start := strings.Index(tmpl, "{{.")
		if start < 0 {
			return names
		}
		tmpl = tmpl[start+3:]
		end := strings.Index(tmpl, "}}")
		if end < 0 {
			return names
		}
		names = append(names, tmpl[:end])
		tmpl = tmpl[end+2:]
	}
}

// Format replaces {{.Key}} placeholders with values from data.
func Format(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	prompts, ok := cache[filename]
	cacheMu.RUnlock()
	if ok {
		return prompts, nil
	}

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = prompts
	cacheMu.Unlock()
	return prompts, nil
}
