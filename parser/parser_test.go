package parser

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

const sampleHTML = `<!doctype html><html lang="en"><head>
<title>  Coffee   Guides </title>
<meta property="og:description" content="OG fallback">
<meta name="Description" content="Brewing guides for home baristas">
<style>.x { color: red }</style>
</head><body>
<header><a href="/about">About</a></header>
<nav><a href="/guides/#top">Guides</a> <a href="mailto:hi@example.com">Mail</a></nav>
<h1>Pour over</h1>
<p>Grind   medium-fine.</p>
<script>var tracking = true;</script>
<p>Bloom for <b>30 seconds</b>.</p>
<a href="https://other.example.org/x">External</a>
<a href="#section">Skip</a>
<a href="/guides/">Guides again</a>
<footer>Copyright</footer>
</body></html>`

func TestExtract(t *testing.T) {
	base, _ := url.Parse("https://example.com/blog/post")

	doc, err := Extract([]byte(sampleHTML), "text/html; charset=utf-8", base)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if doc.Title != "Coffee Guides" {
		t.Fatalf("title = %q", doc.Title)
	}
	if doc.MetaDescription != "Brewing guides for home baristas" {
		t.Fatalf("meta = %q", doc.MetaDescription)
	}
	if doc.Lang != "en" {
		t.Fatalf("lang = %q", doc.Lang)
	}

	wantBody := "Pour over Grind medium-fine. Bloom for 30 seconds . External Skip Guides again"
	if doc.BodyText != wantBody {
		t.Fatalf("body = %q, want %q", doc.BodyText, wantBody)
	}
	for _, noise := range []string{"tracking", "Copyright", "About", "color"} {
		if strings.Contains(doc.BodyText, noise) {
			t.Fatalf("body should not contain %q: %q", noise, doc.BodyText)
		}
	}

	wantLinks := []string{
		"https://example.com/about",
		"https://example.com/guides/",
		"https://other.example.org/x",
	}
	if len(doc.Links) != len(wantLinks) {
		t.Fatalf("links = %v, want %v", doc.Links, wantLinks)
	}
	for i, link := range wantLinks {
		if doc.Links[i] != link {
			t.Fatalf("links[%d] = %q, want %q", i, doc.Links[i], link)
		}
	}
}

func TestExtractOGFallback(t *testing.T) {
	html := `<html><head><meta property="og:description" content="From OG"></head><body>x</body></html>`
	doc, err := Extract([]byte(html), "text/html", nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.MetaDescription != "From OG" {
		t.Fatalf("meta = %q, want OG fallback", doc.MetaDescription)
	}
}

func TestExtractDecodesLatin1(t *testing.T) {
	body := []byte("<html><head><title>Caf\xe9</title></head><body>ol\xe1</body></html>")
	doc, err := Extract(body, "text/html; charset=iso-8859-1", nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Title != "Café" {
		t.Fatalf("title = %q, want Café", doc.Title)
	}
	if doc.BodyText != "olá" {
		t.Fatalf("body = %q, want olá", doc.BodyText)
	}
}

func TestResolveLink(t *testing.T) {
	base, _ := url.Parse("https://example.com/a/b")
	tests := []struct {
		href    string
		want    string
		wantErr bool
	}{
		{href: "c", want: "https://example.com/a/c"},
		{href: "/root#frag", want: "https://example.com/root"},
		{href: "//cdn.example.com/x", want: "https://cdn.example.com/x"},
		{href: "javascript:void(0)", wantErr: true},
		{href: "tel:123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got, err := ResolveLink(base, tt.href)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewPageRecord(t *testing.T) {
	doc := &Document{
		Title:           "Espresso",
		MetaDescription: "All about espresso",
		BodyText:        strings.Repeat("crema ", 20),
	}

	page, err := NewPageRecord("https://example.com/espresso", doc, 30, 50)
	if err != nil {
		t.Fatalf("new page record: %v", err)
	}
	if len([]rune(page.BodyText)) != 30 {
		t.Fatalf("body length = %d, want 30", len([]rune(page.BodyText)))
	}
	if !strings.HasPrefix(page.FullText, "Espresso. All about espresso. crema") {
		t.Fatalf("full text = %q", page.FullText)
	}
	if page.WordCount != len(strings.Fields(page.FullText)) {
		t.Fatalf("word count = %d", page.WordCount)
	}
}

func TestNewPageRecordThin(t *testing.T) {
	doc := &Document{Title: "T", BodyText: "short"}
	if _, err := NewPageRecord("https://example.com", doc, 5000, 50); !errors.Is(err, ErrThinContent) {
		t.Fatalf("expected ErrThinContent, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("truncate = %q, want hé", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("truncate = %q, want abc", got)
	}
}
