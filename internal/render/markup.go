// Package render turns analysis text into display formats: HTML for
// browsers, Markdown from edited HTML, and .docx for download.
package render

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Mode selects how model output reaches the page.
type Mode int

const (
	// Sanitized builds an element tree; all model text is escaped.
	Sanitized Mode = iota
	// Permissive substitutes markup in place and leaves the rest of the
	// text as-is, so raw HTML in the analysis is passed through.
	Permissive
)

var (
	headingRe  = regexp.MustCompile(`^(#{1,3}) (.*)$`)
	bulletRe   = regexp.MustCompile(`^- (.*)$`)
	numberedRe = regexp.MustCompile(`^(\d+)\. (.*)$`)
	inlineRe   = regexp.MustCompile(`\*\*(.*?)\*\*|\*(.*?)\*`)
)

// HTML renders analysis markup: #/##/### headers, **bold**, *em*,
// blank-line paragraphs, "- " bullets and "N. " numbered items.
func HTML(analysis string, mode Mode) string {
	if mode == Permissive {
		return permissive(analysis)
	}
	var sb strings.Builder
	for _, n := range blocks(analysis) {
		_ = html.Render(&sb, n)
	}
	return sb.String()
}

var permissiveRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?m)^# (.*)$`), `<h1>$1</h1>`},
	{regexp.MustCompile(`(?m)^## (.*)$`), `<h2>$1</h2>`},
	{regexp.MustCompile(`(?m)^### (.*)$`), `<h3>$1</h3>`},
	{regexp.MustCompile(`\*\*(.*?)\*\*`), `<strong>$1</strong>`},
	{regexp.MustCompile(`\*(.*?)\*`), `<em>$1</em>`},
	{regexp.MustCompile(`\n\n`), `</p><p>`},
	{regexp.MustCompile(`(?m)^- (.*)$`), `<li>$1</li>`},
	{regexp.MustCompile(`(?m)^(\d+)\. (.*)$`), `<div><span>$1.</span><span>$2</span></div>`},
}

func permissive(s string) string {
	for _, r := range permissiveRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return "<p>" + s + "</p>"
}

// blocks parses analysis into top-level element nodes.
func blocks(analysis string) []*html.Node {
	var (
		out  []*html.Node
		para []string
		list *html.Node
	)
	flushPara := func() {
		if len(para) > 0 {
			p := element(atom.P)
			appendInline(p, strings.Join(para, " "))
			out = append(out, p)
			para = nil
		}
	}
	flushList := func() {
		if list != nil {
			out = append(out, list)
			list = nil
		}
	}
	listOf := func(a atom.Atom) *html.Node {
		if list == nil || list.DataAtom != a {
			flushList()
			list = element(a)
		}
		return list
	}

	for _, raw := range strings.Split(strings.ReplaceAll(analysis, "\r\n", "\n"), "\n") {
		line := strings.TrimRight(raw, " \t")
		switch {
		case strings.TrimSpace(line) == "":
			flushPara()
			flushList()
		case headingRe.MatchString(line):
			flushPara()
			flushList()
			m := headingRe.FindStringSubmatch(line)
			h := element([]atom.Atom{atom.H1, atom.H2, atom.H3}[len(m[1])-1])
			appendInline(h, m[2])
			out = append(out, h)
		case bulletRe.MatchString(line):
			flushPara()
			li := element(atom.Li)
			appendInline(li, bulletRe.FindStringSubmatch(line)[1])
			listOf(atom.Ul).AppendChild(li)
		case numberedRe.MatchString(line):
			flushPara()
			m := numberedRe.FindStringSubmatch(line)
			li := element(atom.Li)
			if n, err := strconv.Atoi(m[1]); err == nil {
				li.Attr = append(li.Attr, html.Attribute{Key: "value", Val: strconv.Itoa(n)})
			}
			appendInline(li, m[2])
			listOf(atom.Ol).AppendChild(li)
		default:
			flushList()
			para = append(para, strings.TrimSpace(line))
		}
	}
	flushPara()
	flushList()
	return out
}

// appendInline adds text to parent, turning **x** and *x* into strong/em.
func appendInline(parent *html.Node, s string) {
	last := 0
	for _, m := range inlineRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			parent.AppendChild(text(s[last:m[0]]))
		}
		var el *html.Node
		if m[2] >= 0 {
			el = element(atom.Strong)
			el.AppendChild(text(s[m[2]:m[3]]))
		} else {
			el = element(atom.Em)
			el.AppendChild(text(s[m[4]:m[5]]))
		}
		parent.AppendChild(el)
		last = m[1]
	}
	if last < len(s) {
		parent.AppendChild(text(s[last:]))
	}
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
