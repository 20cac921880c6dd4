package parser

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// noiseSelector lists elements whose text never counts as page content.
const noiseSelector = "script, style, noscript, template, svg, nav, footer, header"

// Document is the content extracted from one HTML page.
type Document struct {
	Title           string
	MetaDescription string
	BodyText        string
	Lang            string
	Links           []string
}

// Extract decodes body to UTF-8 and pulls title, description, visible body
// text and outgoing links. Links are resolved against base, stripped of their
// fragment and restricted to http and https.
func Extract(body []byte, contentType string, base *url.URL) (*Document, error) {
	data, err := decode(body, contentType)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := &Document{
		Title:           NormalizeWhitespace(doc.Find("title").First().Text()),
		MetaDescription: metaDescription(doc),
		Lang:            strings.TrimSpace(doc.Find("html").AttrOr("lang", "")),
	}

	// Links come first: navigation menus are removed before text extraction
	// but still carry most of a site's internal links.
	out.Links = extractLinks(doc, base)

	doc.Find(noiseSelector).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var parts []string
	for _, n := range root.Nodes {
		collectText(n, &parts)
	}
	out.BodyText = strings.Join(parts, " ")

	return out, nil
}

func decode(body []byte, contentType string) ([]byte, error) {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	data, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		if !utf8.Valid(body) {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		data = body
	}
	return data, nil
}

func metaDescription(doc *goquery.Document) string {
	var desc, og string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content := NormalizeWhitespace(s.AttrOr("content", ""))
		if content == "" {
			return true
		}
		if strings.EqualFold(s.AttrOr("name", ""), "description") {
			desc = content
			return false
		}
		if og == "" && strings.EqualFold(s.AttrOr("property", ""), "og:description") {
			og = content
		}
		return true
	})
	if desc != "" {
		return desc
	}
	return og
}

func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		abs, err := ResolveLink(base, href)
		if err != nil {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

// ErrUnsupportedScheme is returned for links that are not http or https.
var ErrUnsupportedScheme = errors.New("parser: unsupported link scheme")

// ResolveLink resolves href against base and drops the fragment.
func ResolveLink(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", ErrUnsupportedScheme
	}
	if abs.Host == "" {
		return "", fmt.Errorf("link %q has no host", href)
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), nil
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if text := NormalizeWhitespace(n.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// NormalizeWhitespace collapses runs of whitespace into single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
