// Package extract pulls structured artifacts out of raw turn text: fenced
// code blocks and links. Extraction is deterministic, so re-running on
// identical content produces identical ids and is safe to upsert.
package extract

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"chatgraph/internal/model"
)

var (
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	fenceRe      = regexp.MustCompile("(?ms)^```([A-Za-z0-9+#._-]*)[ \t]*\\r?\\n(.*?)^```[ \t]*$")
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^)\s]+)\)`)
	bareURLRe    = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
)

// NormalizeText decodes HTML entities, collapses runs of horizontal
// whitespace to single spaces, and trims. Line breaks are preserved so that
// fenced code blocks keep their 0-based line offsets.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalWS.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CollapseWhitespace flattens all whitespace runs, newlines included, to
// single spaces. Used for one-line labels and snippets.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CodeBlocks finds fenced code regions in content. Each block records the
// language tag and the 0-based line offset of its opening fence. Ids derive
// from (turn id, sequence number), so extraction is idempotent.
func CodeBlocks(turnID, content string) []model.CodeBlock {
	matches := fenceRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]model.CodeBlock, 0, len(matches))
	for i, m := range matches {
		lang := content[m[2]:m[3]]
		body := strings.TrimRight(content[m[4]:m[5]], "\n")
		startLine := strings.Count(content[:m[0]], "\n")
		blocks = append(blocks, model.CodeBlock{
			ID:        model.CodeBlockID(turnID, i),
			TurnID:    turnID,
			Language:  lang,
			Content:   body,
			StartLine: startLine,
		})
	}
	return blocks
}

// Links collects markdown-style [text](url) links first, then bare URLs not
// already captured, deduplicating by exact URL string.
func Links(turnID, content string) []model.Link {
	var links []model.Link
	seen := make(map[string]bool)
	n := 0

	for _, m := range mdLinkRe.FindAllStringSubmatch(content, -1) {
		text, u := m[1], trimURL(m[2])
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		links = append(links, model.Link{
			ID:     model.LinkID(turnID, n),
			TurnID: turnID,
			URL:    u,
			Text:   text,
			Domain: domainOf(u),
		})
		n++
	}

	for _, raw := range bareURLRe.FindAllString(content, -1) {
		u := trimURL(raw)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		links = append(links, model.Link{
			ID:     model.LinkID(turnID, n),
			TurnID: turnID,
			URL:    u,
			Domain: domainOf(u),
		})
		n++
	}

	return links
}

// trimURL strips trailing punctuation that prose attaches to bare URLs.
func trimURL(u string) string {
	return strings.TrimRight(u, ".,;:!?")
}

// domainOf extracts the host for faceting; empty when the URL is unparseable.
func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
