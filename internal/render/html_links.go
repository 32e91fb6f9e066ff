// SPDX-License-Identifier: MIT

package render

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlLinks extracts href/src references from a raw HTML fragment embedded
// in a markdown page. Fragments are parsed leniently; a snippet that does
// not parse yields no links rather than failing the render.
func htmlLinks(fragment string, line int) []Link {
	if !strings.ContainsAny(fragment, "<") {
		return nil
	}

	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var links []Link
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				if href, ok := attr(n, "href"); ok && href != "" {
					links = append(links, Link{
						Destination: href,
						Text:        strings.TrimSpace(nodeText(n)),
						Line:        line,
					})
				}
			case "img":
				if src, ok := attr(n, "src"); ok && src != "" {
					links = append(links, Link{
						Destination: src,
						Line:        line,
						IsImage:     true,
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return links
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
