package local

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// paragraph is a block of text and the page it starts on.
type paragraph struct {
	Text string `json:"text"`
	Page int    `json:"page"`
}

// splitParagraphs splits page text on blank lines.
func splitParagraphs(text string, page int) []paragraph {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []paragraph
	for _, block := range strings.Split(text, "\n\n") {
		if b := strings.TrimSpace(block); b != "" {
			out = append(out, paragraph{Text: b, Page: page})
		}
	}
	return out
}

// extractPlain reads text and markdown files as a single page.
func extractPlain(data []byte) ([]paragraph, int) {
	return splitParagraphs(string(data), 1), 1
}

// extractPDF runs pdftotext; pages are separated by form feeds.
func extractPDF(ctx context.Context, runner CommandRunner, path string) ([]paragraph, int, error) {
	out, err := runner.Run(ctx, "pdftotext", "-enc", "UTF-8", "-layout", path, "-")
	if err != nil {
		return nil, 0, fmt.Errorf("pdftotext failed: %w", err)
	}

	pages := strings.Split(string(out), "\f")
	// pdftotext ends the last page with a form feed
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}

	var paras []paragraph
	for i, text := range pages {
		paras = append(paras, splitParagraphs(text, i+1)...)
	}
	return paras, len(pages), nil
}

// extractDOCX walks word/document.xml, starting a new page at explicit
// page breaks and at the breaks Word recorded when it last laid out the
// document.
func extractDOCX(data []byte) ([]paragraph, int, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: not a docx archive", domain.ErrInvalidInput)
	}

	var body []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: open document.xml: %v", domain.ErrInvalidInput, err)
		}
		body, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: read document.xml: %v", domain.ErrInvalidInput, err)
		}
		break
	}
	if body == nil {
		return nil, 0, fmt.Errorf("%w: docx has no word/document.xml", domain.ErrInvalidInput)
	}
	return parseDocumentXML(body)
}

func parseDocumentXML(body []byte) ([]paragraph, int, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		paras     []paragraph
		current   strings.Builder
		page      = 1
		paraPage  = 1
		inText    bool
		justBroke bool
	)
	pageBreak := func() {
		// a rendered break right after an explicit one is the same break
		if justBroke {
			return
		}
		page++
		justBroke = true
		if strings.TrimSpace(current.String()) == "" {
			paraPage = page
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: document.xml: %v", domain.ErrInvalidInput, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				current.Reset()
				paraPage = page
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				if attr(t, "type") == "page" {
					pageBreak()
				} else {
					current.WriteByte('\n')
				}
			case "lastRenderedPageBreak":
				pageBreak()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paras = append(paras, paragraph{Text: text, Page: paraPage})
				}
				current.Reset()
			}
		case xml.CharData:
			if inText && len(t) > 0 {
				current.Write(t)
				if strings.TrimSpace(string(t)) != "" {
					justBroke = false
				}
			}
		}
	}
	return paras, page, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
