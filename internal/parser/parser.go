package parser

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxContentLength = 1000000

type Link struct {
	URL string
}

var defaultSkipExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".css", ".js", ".zip", ".rar", ".tar", ".gz",
	".exe", ".dmg", ".iso",
	".mp4", ".avi", ".mov",
	".mp3", ".wav",
	".xml", ".json", ".doc", ".docx", ".xls", ".xlsx",
}

type Parser struct {
	skipExtensions []string
}

func New(skipExtensions ...string) *Parser {
	if len(skipExtensions) == 0 {
		skipExtensions = defaultSkipExtensions
	}
	return &Parser{skipExtensions: skipExtensions}
}

// Links returns the distinct absolute http(s) links of an HTML document,
// resolved against baseURL.
func (p *Parser) Links(htmlContent string, baseURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return p.extractLinks(doc, baseURL), nil
}

// ExtractText returns the visible body text of an HTML document with
// whitespace collapsed.
func (p *Parser) ExtractText(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return p.extractContent(doc), nil
}

func (p *Parser) extractLinks(doc *goquery.Document, baseURL string) []Link {
	var links []Link
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		absoluteURL := resolveURL(baseURL, href)
		if absoluteURL == "" || !p.isValidURL(absoluteURL) || seen[absoluteURL] {
			return
		}
		seen[absoluteURL] = true

		links = append(links, Link{URL: absoluteURL})
	})

	return links
}

func (p *Parser) extractContent(doc *goquery.Document) string {
	contentDoc := doc.Clone()
	contentDoc.Find("script, style, noscript, template, iframe").Remove()

	body := contentDoc.Find("body")
	var content string
	if body.Length() > 0 {
		content = body.Text()
	} else {
		content = contentDoc.Text()
	}

	content = strings.Join(strings.Fields(content), " ")
	return truncate(content, maxContentLength)
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (p *Parser) isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, ext := range p.skipExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	return true
}

func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}

	relURL, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return normalizeURL(baseURL.ResolveReference(relURL))
}

func normalizeURL(u *url.URL) string {
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Path == "/" {
		u.Path = ""
	} else if strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	u.RawPath = ""
	return u.String()
}

func NormalizeURLString(urlStr string) string {
	u, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return urlStr
	}
	return normalizeURL(u)
}

// HostKey is the host used to compare sites: lowercased, without a port
// and without a leading "www.".
func HostKey(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// SameSite reports whether both URLs point at the same site.
func SameSite(a, b string) bool {
	ka := HostKey(a)
	return ka != "" && ka == HostKey(b)
}

// PathOf returns the path of a URL relative to its site root, "/" for the
// root page.
func PathOf(urlStr string) string {
	u, err := url.Parse(NormalizeURLString(urlStr))
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
