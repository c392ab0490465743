package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/net/html"
)

// BasicRenderer lays report HTML out with gofpdf's limited HTML support. It
// needs no external binary so it is always available.
type BasicRenderer struct{}

func NewBasic() *BasicRenderer {
	return &BasicRenderer{}
}

func (r *BasicRenderer) Available() bool { return true }

func (r *BasicRenderer) Render(ctx context.Context, doc string, opts map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orientation := "P"
	if opts[OptLandscape] == "true" {
		orientation = "L"
	}
	size := "A4"
	if opts[OptPaper] == "letter" {
		size = "Letter"
	}

	pdf := gofpdf.New(orientation, "mm", size, "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if title := opts[OptTitle]; title != "" {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
		pdf.Ln(2)
	}

	pdf.SetFont("Helvetica", "", 10)
	basic := pdf.HTMLBasicNew()
	basic.Write(5, tr(Simplify(doc)))

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("basic render: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("basic render output: %w", err)
	}
	return buf.Bytes(), nil
}

var blockTags = map[string]bool{
	"p": true, "div": true, "tr": true, "li": true, "table": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "ul": true, "ol": true,
}

var inlineTags = map[string]string{
	"b": "b", "strong": "b", "i": "i", "em": "i", "u": "u",
	"h1": "b", "h2": "b", "h3": "b", "h4": "b", "th": "b",
}

// Simplify reduces arbitrary HTML to the subset gofpdf's HTMLBasic
// understands: b, i, u and br. Block elements become line breaks, table
// cells are separated by " | " and script/style bodies are dropped.
func Simplify(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var out strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(out.String())
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := strings.Join(strings.Fields(string(z.Text())), " ")
			if text != "" {
				out.WriteString(html.EscapeString(text))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "script" || tag == "style" || tag == "head":
				if tt == html.StartTagToken {
					skip++
				}
			case tag == "br":
				out.WriteString("<br>")
			case tag == "td" || tag == "th":
				out.WriteString(" | ")
			}
			if t, ok := inlineTags[tag]; ok {
				out.WriteString("<" + t + ">")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" || tag == "head" {
				if skip > 0 {
					skip--
				}
				continue
			}
			if t, ok := inlineTags[tag]; ok {
				out.WriteString("</" + t + ">")
			}
			if blockTags[tag] {
				out.WriteString("<br>")
			}
		}
	}
}
