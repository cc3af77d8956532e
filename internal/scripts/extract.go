package scripts

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page holds the script tags and links found in an HTML snapshot.
type Page struct {
	Scripts []string
	Links   []string
}

// Extract parses an HTML snapshot and collects external script tags and
// anchor targets the same way the scan engine records them: scripts as their
// full <script> tag, links with fragment-only hrefs dropped and root-relative
// hrefs joined to baseURL.
func Extract(r io.Reader, baseURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse snapshot: %w", err)
	}

	var page Page
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		tag, err := goquery.OuterHtml(s)
		if err != nil || tag == "" {
			return
		}
		page.Scripts = append(page.Scripts, tag)
	})

	base := strings.TrimRight(baseURL, "/")
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = base + href
		}
		page.Links = append(page.Links, href)
	})
	return page, nil
}
