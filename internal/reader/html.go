package reader

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// decodeHTML collects the visible text of a page. Unlike article
// extraction, headers and footers are kept: that is where contact details
// usually live. mailto: and tel: link targets are appended on their own
// lines so addresses hidden behind link text are still found.
func decodeHTML(data []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var links []string
	collectText(&b, &links, root)
	text := normalizeWhitespace(b.String())
	if len(links) > 0 {
		text += "\n" + strings.Join(links, "\n")
	}
	return strings.TrimSpace(text), nil
}

func collectText(b *strings.Builder, links *[]string, n *html.Node) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "template", "svg", "iframe":
			return
		case "br", "hr", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "address", "section", "header", "footer", "title":
			b.WriteString("\n")
		case "td", "th":
			b.WriteString(" ")
		case "a":
			if href := attr(n, "href"); href != "" {
				if v, ok := linkTarget(href); ok {
					*links = append(*links, v)
				}
			}
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, links, c)
	}
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "address", "title":
			b.WriteString("\n")
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// linkTarget returns the address of a mailto: or tel: link without its
// query string.
func linkTarget(href string) (string, bool) {
	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:"} {
		if strings.HasPrefix(lower, scheme) {
			v := href[len(scheme):]
			if i := strings.IndexByte(v, '?'); i >= 0 {
				v = v[:i]
			}
			v = strings.TrimSpace(v)
			return v, v != ""
		}
	}
	return "", false
}

// normalizeWhitespace collapses runs of spaces within lines and keeps at
// most one blank line between blocks.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		collapsed := strings.Join(strings.Fields(line), " ")
		if collapsed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapsed)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	return strings.Join(out, "\n")
}
