package render

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "# Overview\n\n## Key Points\n- First **bold** point\n- Second *soft* point\n\n1. One\n2. Two\n\nClosing line\ncontinues here."

func TestHTMLSanitized(t *testing.T) {
	got := HTML(sample, Sanitized)

	assert.Contains(t, got, "<h1>Overview</h1>")
	assert.Contains(t, got, "<h2>Key Points</h2>")
	assert.Contains(t, got, "<ul><li>First <strong>bold</strong> point</li><li>Second <em>soft</em> point</li></ul>")
	assert.Contains(t, got, `<ol><li value="1">One</li><li value="2">Two</li></ol>`)
	assert.Contains(t, got, "<p>Closing line continues here.</p>")
}

func TestHTMLSanitizedEscapesModelText(t *testing.T) {
	got := HTML("## <script>alert(1)</script>\nSee **<img src=x onerror=alert(1)>**", Sanitized)

	assert.NotContains(t, got, "<script>")
	assert.NotContains(t, got, "<img")
	assert.Contains(t, got, "&lt;script&gt;")
	assert.Contains(t, got, "<strong>&lt;img src=x onerror=alert(1)&gt;</strong>")
}

func TestHTMLPermissive(t *testing.T) {
	got := HTML("# Title\n\n**Bold** and *em*\n- item\n3. third", Permissive)

	assert.True(t, strings.HasPrefix(got, "<p><h1>Title</h1></p><p>"))
	assert.Contains(t, got, "<strong>Bold</strong> and <em>em</em>")
	assert.Contains(t, got, "<li>item</li>")
	assert.Contains(t, got, "<div><span>3.</span><span>third</span></div>")

	raw := HTML("<b>raw</b>", Permissive)
	assert.Equal(t, "<p><b>raw</b></p>", raw)
}

func TestHTMLEmpty(t *testing.T) {
	assert.Empty(t, HTML("", Sanitized))
	assert.Empty(t, HTML("\n\n  \n", Sanitized))
}

func TestMarkdown(t *testing.T) {
	md, err := Markdown("<h2>Summary</h2><p>Some <strong>bold</strong> text.</p><ul><li>one</li><li>two</li></ul>")
	require.NoError(t, err)

	assert.Contains(t, md, "## Summary")
	assert.Contains(t, md, "**bold**")
	assert.Contains(t, md, "- one")
	assert.Contains(t, md, "- two")
}

func TestMarkdownRoundTripThroughSanitizedHTML(t *testing.T) {
	md, err := Markdown(HTML("## Topics\n- **Go** routines", Sanitized))
	require.NoError(t, err)
	assert.Contains(t, md, "## Topics")
	assert.Contains(t, md, "**Go**")
}

func TestDocx(t *testing.T) {
	data, err := Docx("Go Concurrency", sample)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var body string
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		body = string(b)
	}
	require.NotEmpty(t, body, "document.xml missing")
	assert.Contains(t, body, "Go Concurrency")
	assert.Contains(t, body, "Key Points")
	assert.Contains(t, body, "bold")
	assert.NotContains(t, body, "**")
}

func TestDocxFilename(t *testing.T) {
	assert.Equal(t, "Go_Concurrency_101.docx", DocxFilename("Go Concurrency: 101!"))
	assert.Equal(t, "analysis.docx", DocxFilename("???"))
}
