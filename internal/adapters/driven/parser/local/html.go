package local

import (
	"html"
	"regexp"
	"strings"
)

var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	droppedBlocks = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg|title)[^>]*>.*?</(script|style|noscript|head|svg|title)>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	headingOpen   = regexp.MustCompile(`(?i)<h([1-6])[^>]*>`)
	blockOpen     = regexp.MustCompile(`(?i)<(p|div|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	blockClose    = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	lineBreaks    = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	cellClose     = regexp.MustCompile(`(?i)</t[dh]>`)
	anyTag        = regexp.MustCompile(`<[^>]+>`)
	spaceRuns     = regexp.MustCompile(`[ \t]+`)
)

// extractHTML strips markup and returns one page of paragraphs. Headings
// become markdown headings so segmentation can split on them, and the
// <title> leads the document when the body does not already start with it.
func extractHTML(data []byte) ([]paragraph, int) {
	content := string(data)

	title := ""
	if m := titleTag.FindStringSubmatch(content); len(m) > 1 {
		title = strings.TrimSpace(html.UnescapeString(m[1]))
	}

	content = droppedBlocks.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = headingOpen.ReplaceAllStringFunc(content, func(tag string) string {
		level := headingOpen.FindStringSubmatch(tag)[1]
		return "\n\n" + strings.Repeat("#", int(level[0]-'0')) + " "
	})
	content = blockOpen.ReplaceAllString(content, "\n\n")
	content = blockClose.ReplaceAllString(content, "\n\n")
	content = lineBreaks.ReplaceAllString(content, "\n")
	content = cellClose.ReplaceAllString(content, " | ")
	content = anyTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = spaceRuns.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	paras := splitParagraphs(strings.Join(lines, "\n"), 1)

	if title != "" && (len(paras) == 0 || strings.TrimLeft(paras[0].Text, "# ") != title) {
		paras = append([]paragraph{{Text: "# " + title, Page: 1}}, paras...)
	}
	return paras, 1
}
