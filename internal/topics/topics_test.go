package topics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTopicsFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadLiteral(t *testing.T) {
	t.Parallel()

	got, err := Load("machine learning, web scraping ,golang")
	require.NoError(t, err)
	require.Equal(t, []string{"machine learning", "web scraping", "golang"}, got)
}

func TestLoadLiteralDropsEmptyFragments(t *testing.T) {
	t.Parallel()

	got, err := Load("ai,, nlp ,")
	require.NoError(t, err)
	require.Equal(t, []string{"ai", "nlp"}, got)
}

func TestLoadLiteralEmpty(t *testing.T) {
	t.Parallel()

	_, err := Load(" , ,")
	require.ErrorIs(t, err, ErrNoTopics)
}

func TestLoadJSONArray(t *testing.T) {
	t.Parallel()

	path := writeTopicsFile(t, "topics.json", `["quantum computing", "rust"]`)
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"quantum computing", "rust"}, got)
}

func TestLoadJSONObject(t *testing.T) {
	t.Parallel()

	path := writeTopicsFile(t, "topics.json", `{"topics": ["databases", "compilers"]}`)
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"databases", "compilers"}, got)
}

func TestLoadJSONBadShape(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"object without topics": `{"subjects": ["x"]}`,
		"topics not an array":   `{"topics": "databases"}`,
		"array of numbers":      `[1, 2, 3]`,
		"truncated":             `["a",`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeTopicsFile(t, "topics.json", content)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	list := writeTopicsFile(t, "topics.yaml", "- embedded systems\n- networking\n")
	got, err := Load(list)
	require.NoError(t, err)
	require.Equal(t, []string{"embedded systems", "networking"}, got)

	obj := writeTopicsFile(t, "topics.yml", "topics:\n  - kernels\n  - storage\n")
	got, err = Load(obj)
	require.NoError(t, err)
	require.Equal(t, []string{"kernels", "storage"}, got)
}

func TestLoadYAMLBadShape(t *testing.T) {
	t.Parallel()

	path := writeTopicsFile(t, "topics.yaml", "title: not a topic list\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadText(t *testing.T) {
	t.Parallel()

	path := writeTopicsFile(t, "topics.txt", "distributed systems\n\n  observability  \n")
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"distributed systems", "observability"}, got)
}

func TestLoadMarkdownBullets(t *testing.T) {
	t.Parallel()

	content := "# Topics\n\n- web crawling\n* search engines\nnot a bullet\n"
	path := writeTopicsFile(t, "topics.md", content)
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"web crawling", "search engines"}, got)
}

func TestLoadMarkdownFallbackToLines(t *testing.T) {
	t.Parallel()

	path := writeTopicsFile(t, "topics.md", "first topic\nsecond topic\n\n")
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"first topic", "second topic"}, got)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := writeTopicsFile(t, "topics.csv", "a,b,c\n")
	_, err := Load(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	// A recognized extension marks the value as a file reference even
	// without a path separator.
	_, err = Load("nonexistent-topics.yaml")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEmptyTextFile(t *testing.T) {
	t.Parallel()

	path := writeTopicsFile(t, "topics.txt", "\n\n")
	_, err := Load(path)
	require.ErrorIs(t, err, ErrNoTopics)
}
