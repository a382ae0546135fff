package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aluiziolira/go-scrape-launches/models"
)

// ValidateProduct ensures the scraper captured the required fields.
func ValidateProduct(p *models.Product) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product missing name")
	}
	if strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("product missing description for %s", p.Name)
	}
	if strings.TrimSpace(p.Votes) == "" {
		return fmt.Errorf("product missing votes for %s", p.Name)
	}
	u, err := url.Parse(p.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("product url %q is not absolute for %s", p.URL, p.Name)
	}
	if p.ScrapedAt.IsZero() {
		return fmt.Errorf("product missing scrape time for %s", p.Name)
	}
	return nil
}

// NormalizeText trims surrounding whitespace.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}

// AbsoluteURL rewrites a site-relative href against origin. Hrefs that are
// already absolute (or relative to the current path) are returned unchanged.
func AbsoluteURL(origin, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case strings.HasPrefix(href, "//"):
		scheme := "https"
		if u, err := url.Parse(origin); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		return scheme + ":" + href
	case strings.HasPrefix(href, "/"):
		return strings.TrimSuffix(origin, "/") + href
	default:
		return href
	}
}
