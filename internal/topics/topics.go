// Package topics resolves the --topics argument into a list of topic
// strings. The argument is either a literal comma-separated list or a
// path to a file in one of four formats: JSON (string array or an object
// with a "topics" array), YAML (same shapes), plain text (one topic per
// line), or Markdown (bullet list items, falling back to non-empty lines).
package topics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat marks a topics file with an extension no parser
// handles.
var ErrUnsupportedFormat = errors.New("unsupported topics file format")

// ErrNoTopics marks a topics argument that resolved to zero topics.
var ErrNoTopics = errors.New("topic list is empty")

// fileExtensions lists the extensions Load treats as file references even
// when the file does not exist, so a mistyped path fails loudly instead of
// being harvested as a literal topic.
var fileExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
	".txt":  true,
	".md":   true,
}

var bulletItem = regexp.MustCompile(`[-*]\s*(.+)`)

// Load resolves a topics argument. A value naming an existing file is
// parsed by extension; a value that looks like a file path but is missing
// fails with a not-found error; anything else is split as a comma-separated
// literal. The returned list is trimmed, free of empties, and non-empty.
func Load(value string) ([]string, error) {
	if info, err := os.Stat(value); err == nil && !info.IsDir() {
		return LoadFile(value)
	}
	if looksLikePath(value) {
		return nil, fmt.Errorf("topics file %q: %w", value, os.ErrNotExist)
	}
	list := splitLiteral(value)
	if len(list) == 0 {
		return nil, fmt.Errorf("topics %q: %w", value, ErrNoTopics)
	}
	return list, nil
}

// LoadFile parses a topics file by extension.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topics file: %w", err)
	}

	var list []string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		list, err = parseJSON(data)
	case ".yaml", ".yml":
		list, err = parseYAML(data)
	case ".txt":
		list = nonEmptyLines(string(data))
	case ".md":
		list = parseMarkdown(string(data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("topics file %s: %w", path, err)
	}

	list = clean(list)
	if len(list) == 0 {
		return nil, fmt.Errorf("topics file %s: %w", path, ErrNoTopics)
	}
	return list, nil
}

func looksLikePath(value string) bool {
	if strings.ContainsRune(value, os.PathSeparator) {
		return true
	}
	return fileExtensions[strings.ToLower(filepath.Ext(value))]
}

func splitLiteral(value string) []string {
	return clean(strings.Split(value, ","))
}

func parseJSON(data []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		if raw, ok := obj["topics"]; ok {
			if err := json.Unmarshal(raw, &list); err == nil {
				return list, nil
			}
		}
	}
	return nil, errors.New(`must contain a string array or an object with a "topics" array`)
}

func parseYAML(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var obj struct {
		Topics *[]string `yaml:"topics"`
	}
	if err := yaml.Unmarshal(data, &obj); err == nil && obj.Topics != nil {
		return *obj.Topics, nil
	}
	return nil, errors.New(`must contain a string list or a mapping with a "topics" list`)
}

// parseMarkdown collects bullet list items; a document without any bullets
// degrades to its non-empty lines.
func parseMarkdown(content string) []string {
	matches := bulletItem.FindAllStringSubmatch(content, -1)
	if len(matches) > 0 {
		items := make([]string, 0, len(matches))
		for _, m := range matches {
			items = append(items, m[1])
		}
		return items
	}
	return nonEmptyLines(content)
}

func nonEmptyLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
