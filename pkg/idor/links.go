package idor

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var idHrefPattern = regexp.MustCompile(`id=\d+`)

// ExtractIDLinks returns the anchor hrefs in body that carry a numeric id
// parameter, resolved against base, in document order and without
// duplicates.
func ExtractIDLinks(base string, body []byte) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return links
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		t := z.Token()
		if t.Data != "a" {
			continue
		}
		href := strings.TrimSpace(getAttr(t, "href"))
		if href == "" || !idHrefPattern.MatchString(href) {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		resolved := baseURL.ResolveReference(ref).String()
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		links = append(links, resolved)
	}
}

func getAttr(t html.Token, key string) string {
	for _, a := range t.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
