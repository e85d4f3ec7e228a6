package catalog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"snapvault/pkg/errors"
)

// ErrNoEntries is returned when the index contains no download links at all.
// Callers surface it as a user-facing "no memories found" condition.
var ErrNoEntries = fmt.Errorf("no memories found in export index")

// onclickRe extracts the URL and route flag from the export's
// downloadMemories('URL', this, true|false) links.
var onclickRe = regexp.MustCompile(`downloadMemories\('(.+?)',\s*this,\s*(true|false)\)`)

const dateLayout = "2006-01-02 15:04:05"

// ParseFile opens and parses a memories_history.html export index.
func ParseFile(path string) ([]Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open export index")
	}
	defer f.Close()
	return Parse(f)
}

// Parse extracts the ordered asset list from the export index HTML.
// Rows it cannot interpret are skipped with a warning; an index with no
// usable rows at all yields ErrNoEntries.
func Parse(r io.Reader) ([]Asset, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse export html")
	}

	var assets []Asset
	for _, row := range elementsByTag(doc, "tr") {
		cells := elementsByTag(row, "td")
		if len(cells) < 3 {
			continue
		}

		rawURL, direct, ok := downloadLink(row)
		if !ok {
			continue
		}

		capturedAt, err := parseCaptureDate(nodeText(cells[0]))
		if err != nil {
			slog.Warn("catalog_row_skipped", "reason", "bad_date", "value", nodeText(cells[0]))
			continue
		}

		typeCell := nodeText(cells[1])
		assets = append(assets, Asset{
			ID:         assetID(rawURL),
			CapturedAt: capturedAt,
			Kind:       parseKind(typeCell),
			URL:        rawURL,
			DirectGet:  direct,
			HasOverlay: strings.Contains(strings.ToLower(typeCell), "overlay"),
		})
	}

	if len(assets) == 0 {
		return nil, ErrNoEntries
	}

	slog.Info("catalog_parsed", "entries", len(assets))
	return assets, nil
}

// parseCaptureDate reads the export's "2025-11-10 14:44:41 UTC" date cells.
func parseCaptureDate(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), " UTC"))
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func parseKind(s string) MediaKind {
	if strings.Contains(strings.ToLower(s), "video") {
		return KindVideo
	}
	return KindImage
}

// downloadLink finds the row's download anchor and decodes its onclick handler.
func downloadLink(row *html.Node) (rawURL string, direct bool, ok bool) {
	for _, a := range elementsByTag(row, "a") {
		onclick := attr(a, "onclick")
		if onclick == "" {
			continue
		}
		m := onclickRe.FindStringSubmatch(onclick)
		if m == nil {
			continue
		}
		return m[1], m[2] == "true", true
	}
	return "", false, false
}

// elementsByTag collects descendant elements with the given tag, in document order.
func elementsByTag(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag && node != n {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
