package fetch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harvestlab/topic-harvester/internal/fetch"
)

func TestExtractTitleAndContent(t *testing.T) {
	t.Parallel()

	body := []byte(`<html>
	<head><title>  Quantum Computing Primer  </title></head>
	<body>
		<h1>Introduction</h1>
		<p>Qubits hold superpositions.</p>
		<div>ignored container text</div>
		<h2>
			Entanglement
		</h2>
		<p>   </p>
		<p>Pairs stay <b>correlated</b> at distance.</p>
	</body>
</html>`)

	e := fetch.NewTextExtractor()
	result, err := e.Extract("https://example.com/qc", body)
	require.NoError(t, err)

	require.Equal(t, "https://example.com/qc", result.URL)
	require.Equal(t, "Quantum Computing Primer", result.Title)
	require.Equal(t,
		"Introduction Qubits hold superpositions. Entanglement Pairs stay correlated at distance.",
		result.Content,
	)
}

func TestExtractFallsBackToOpenGraphTitle(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head>
		<meta property="og:title" content=" Shared Story Title ">
	</head><body><p>text</p></body></html>`)

	e := fetch.NewTextExtractor()
	result, err := e.Extract("https://example.com", body)
	require.NoError(t, err)
	require.Equal(t, "Shared Story Title", result.Title)
}

func TestExtractEmptyPage(t *testing.T) {
	t.Parallel()

	e := fetch.NewTextExtractor()
	result, err := e.Extract("https://example.com/empty", []byte("<html><body></body></html>"))
	require.NoError(t, err)
	require.Empty(t, result.Title)
	require.Empty(t, result.Content)
	require.Equal(t, "https://example.com/empty", result.URL)
}

func TestExtractKeepsDocumentOrder(t *testing.T) {
	t.Parallel()

	body := []byte(`<body>
		<p>first</p>
		<h3>second</h3>
		<p>third</p>
	</body>`)

	e := fetch.NewTextExtractor()
	result, err := e.Extract("https://example.com", body)
	require.NoError(t, err)
	require.Equal(t, "first second third", result.Content)
}
