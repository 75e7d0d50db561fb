// Package markup keeps document HTML safe to render and derives the plain
// text and file names used on export.
package markup

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// policy allows the semantic tags drafts are written in plus utility classes.
// Whole-document wrappers (html, head, body) are dropped, their text kept,
// except for head-only elements such as title whose content is skipped.
var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowElements("section", "article", "header", "footer", "address", "u", "s")
	return p
}()

// Sanitize returns fragment reduced to markup that is safe to embed in a page.
func Sanitize(fragment string) string {
	return strings.TrimSpace(policy.Sanitize(fragment))
}

// blockElements start on a new line when rendered as text.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Blockquote: true, atom.Div: true,
	atom.Footer: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Tr: true, atom.Ul: true,
}

// skipContent elements never contribute text.
var skipContent = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Head: true, atom.Title: true,
}

var (
	spaceRun   = regexp.MustCompile(`[ \t\f\r\n]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// PlainText renders fragment the way a browser's innerText would: block
// elements on their own lines, paragraphs separated by a blank line, runs of
// whitespace collapsed.
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0

	newline := func(n int) {
		s := b.String()
		trailing := len(s) - len(strings.TrimRight(s, "\n"))
		for ; trailing < n && b.Len() > 0; trailing++ {
			b.WriteByte('\n')
		}
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return finish(b.String())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipContent[a] {
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
				continue
			}
			switch {
			case a == atom.Br:
				b.WriteByte('\n')
			case a == atom.P || isHeading(a):
				newline(2)
			case blockElements[a]:
				newline(1)
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := spaceRun.ReplaceAllString(string(z.Text()), " ")
			if strings.HasSuffix(b.String(), "\n") || b.Len() == 0 {
				text = strings.TrimLeft(text, " ")
			}
			b.WriteString(text)
		}
	}
}

func isHeading(a atom.Atom) bool {
	switch a {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

func finish(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// Filename turns a document title into the download name of its PDF:
// every character outside [A-Za-z0-9] becomes an underscore, the result is
// lowercased.
func Filename(title string) string {
	if title == "" {
		return "document.pdf"
	}
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + ".pdf"
}
