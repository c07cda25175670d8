package chunker

import (
	"strings"

	"golang.org/x/net/html"
)

// Block-level elements whose text is collected as section content.
var blockTags = map[string]bool{
	"p":          true,
	"li":         true,
	"pre":        true,
	"code":       true,
	"blockquote": true,
	"td":         true,
	"th":         true,
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	}
	return 0
}

// textContent joins the trimmed, non-empty text nodes under n with sep.
func textContent(n *html.Node, sep string) string {
	var parts []string
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(parts, sep)
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, _ := getAttr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// stripNonContent removes script, style and hidden elements in place.
func stripNonContent(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && isNonContent(c) {
			n.RemoveChild(c)
		} else {
			stripNonContent(c)
		}
		c = next
	}
}

func isNonContent(n *html.Node) bool {
	switch n.Data {
	case "script", "style", "noscript", "template":
		return true
	}
	if _, ok := getAttr(n, "hidden"); ok {
		return true
	}
	if style, ok := getAttr(n, "style"); ok {
		s := strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(s, "display:none") || strings.Contains(s, "visibility:hidden") {
			return true
		}
	}
	return false
}

// element is one structural event in document order: a heading or a
// content block.
type element struct {
	level int
	text  string
}

// outline flattens the document into h1-h3 headings and content blocks.
// Blocks nested inside another block are not visited separately.
func outline(root *html.Node) []element {
	var out []element
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				out = append(out, element{level: level, text: textContent(n, " ")})
				return
			}
			if blockTags[n.Data] {
				if t := textContent(n, " "); t != "" {
					out = append(out, element{text: t})
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}
