package render

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const (
	fontName = "Calibri"
	fontSize = 11
)

var boldRe = regexp.MustCompile(`\*\*(.+?)\*\*`)

// Docx lays out a titled analysis as a Word document and returns its bytes.
func Docx(title, analysis string) ([]byte, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("docx: new document: %w", err)
	}

	addRun(doc.AddParagraph(""), title, true, 18)

	for _, line := range strings.Split(analysis, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			addRun(doc.AddParagraph(""), m[2], true, headingSize(len(m[1])))
			continue
		}
		if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
			addRich(doc.AddParagraph(""), "• "+m[1])
			continue
		}
		addRich(doc.AddParagraph(""), trimmed)
	}

	// godocx writes to a path; stage the file in a private temp dir.
	dir, err := os.MkdirTemp("", "analysis-docx-*")
	if err != nil {
		return nil, fmt.Errorf("docx: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "analysis.docx")
	if err := doc.SaveTo(path); err != nil {
		return nil, fmt.Errorf("docx: save: %w", err)
	}
	return os.ReadFile(path)
}

// DocxFilename builds a download name from a video title.
func DocxFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, title)
	if name == "" {
		name = "analysis"
	}
	return name + ".docx"
}

func headingSize(level int) uint64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 14
	default:
		return 12
	}
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(stripInline(text)).Font(fontName).Size(size)
	if bold {
		run.Bold(true)
	}
}

func addRich(p *docx.Paragraph, text string) {
	parts := boldRe.Split(text, -1)
	matches := boldRe.FindAllStringSubmatch(text, -1)
	for i, part := range parts {
		if part != "" {
			p.AddText(stripInline(part)).Font(fontName).Size(fontSize)
		}
		if i < len(matches) {
			p.AddText(stripInline(matches[i][1])).Font(fontName).Size(fontSize).Bold(true)
		}
	}
}

func stripInline(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	return strings.ReplaceAll(s, "`", "")
}
