package render

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Markdown converts an edited HTML analysis back to the stored markup.
func Markdown(htmlText string) (string, error) {
	md, err := htmltomarkdown.ConvertString(htmlText)
	if err != nil {
		return "", fmt.Errorf("html to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}
