package digest

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DuplicateLinks lists the known article URLs that the body links more than once.
// Links to anything outside known are ignored.
func DuplicateLinks(body string, known []string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	wanted := make(map[string]string, len(known))
	for _, u := range known {
		wanted[normalizeLink(u)] = u
	}

	counts := make(map[string]int)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if original, ok := wanted[normalizeLink(href)]; ok {
			counts[original]++
		}
	})

	var dups []string
	for u, n := range counts {
		if n > 1 {
			dups = append(dups, u)
		}
	}
	sort.Strings(dups)
	return dups
}

// normalizeLink reduces a link to host, path and query. Scheme, fragment,
// trailing slashes and host case are ignored.
func normalizeLink(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	link := strings.ToLower(u.Host) + strings.TrimRight(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		link += "?" + u.RawQuery
	}
	return link
}
