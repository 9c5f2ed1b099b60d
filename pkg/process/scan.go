package process

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"image-scraper/pkg/fetch"
	"image-scraper/pkg/models"
	"image-scraper/pkg/utils"
)

// PageScanner fetches a page and collects the absolute URLs of its <img> elements
type PageScanner struct {
	fetcher *fetch.Fetcher
	robots  *fetch.RobotsHandler // nil unless robots.txt is respected
	log     *logrus.Entry
}

// NewPageScanner creates a PageScanner. robots may be nil.
func NewPageScanner(fetcher *fetch.Fetcher, robots *fetch.RobotsHandler, log *logrus.Entry) *PageScanner {
	return &PageScanner{fetcher: fetcher, robots: robots, log: log}
}

// ParsePageURL validates a user-submitted page URL. Only absolute http(s) URLs with a host pass.
func ParsePageURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, utils.ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", utils.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", utils.ErrInvalidURL)
	}
	return u, nil
}

// Scan fetches pageURL and returns the de-duplicated image URLs it references,
// resolved against pageURL itself (not any redirect target).
func (s *PageScanner) Scan(ctx context.Context, pageURL string) (*models.ImageSet, error) {
	base, err := ParsePageURL(pageURL)
	if err != nil {
		return nil, err
	}
	pageLog := s.log.WithField("page_url", base.String())

	if s.robots != nil && !s.robots.Allowed(ctx, base) {
		return nil, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, base.String())
	}

	resp, err := s.fetcher.Get(ctx, base.String())
	if err != nil {
		pageLog.Warnf("Page request failed: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: HTML document: %w", utils.ErrParsing, err)
	}

	set := ExtractImageURLs(doc, base, pageLog)
	pageLog.WithField("image_count", set.Len()).Info("Scanned page")
	return set, nil
}

// ExtractImageURLs collects the resolved src of every <img> in doc.
// Missing or blank src attributes and unparsable references are skipped. Every other reference is
// kept as resolved, including non-http(s) ones, which then fail at download time.
func ExtractImageURLs(doc *goquery.Document, base *url.URL, log *logrus.Entry) *models.ImageSet {
	set := models.NewImageSet()

	doc.Find("img").Each(func(_ int, el *goquery.Selection) {
		src, exists := el.Attr("src")
		src = strings.TrimSpace(src)
		if !exists || src == "" {
			return
		}

		ref, err := url.Parse(src)
		if err != nil {
			log.Debugf("Skipping unparsable image src '%s': %v", src, err)
			return
		}
		set.Add(base.ResolveReference(ref).String())
	})

	return set
}
