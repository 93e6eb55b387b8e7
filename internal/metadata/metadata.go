// Package metadata previews a product page so an item can be prefilled from
// just its link.
package metadata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microcosm-cc/bluemonday"

	clerrs "github.com/jdholdren/clearly/internal/errors"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultCacheSize = 256

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Pages past this are cut off. The head is all that matters anyway.
	maxBodyBytes = 5 << 20
)

// Metadata is what a page says about itself.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	URL         string `json:"url"`
}

var stripPolicy = bluemonday.StrictPolicy()

type Fetcher struct {
	client *http.Client
	cache  *lru.Cache[string, Metadata]
}

// NewFetcher builds a fetcher. A nil client gets one with [DefaultTimeout].
func NewFetcher(client *http.Client, cacheSize int) (*Fetcher, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, Metadata](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("error creating metadata cache: %s", err)
	}

	return &Fetcher{client: client, cache: cache}, nil
}

// Fetch reads the page's Open Graph tags, falling back to the plain meta tags
// and the title, and then to a readability pass over the page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	if rawURL == "" {
		return Metadata{}, clerrs.E("URL parameter is required", http.StatusBadRequest)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Metadata{}, clerrs.E("Invalid URL format", http.StatusBadRequest)
	}

	// Cache results to prevent refetches
	if md, ok := f.cache.Get(rawURL); ok {
		return md, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("error creating request: %s", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Metadata{}, clerrs.E(fmt.Sprintf("Failed to fetch metadata: %s", err), http.StatusInternalServerError)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Metadata{}, clerrs.E(fmt.Sprintf("Failed to fetch URL: %s", resp.Status), http.StatusBadRequest)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Metadata{}, clerrs.E(fmt.Sprintf("Failed to fetch metadata: %s", err), http.StatusInternalServerError)
	}

	md, err := extract(body, resp.Request.URL)
	if err != nil {
		return Metadata{}, err
	}
	md.URL = rawURL

	f.cache.Add(rawURL, md)
	return md, nil
}

func extract(body []byte, pageURL *url.URL) (Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Metadata{}, fmt.Errorf("error parsing page: %s", err)
	}

	attr := func(selector string) string {
		v, _ := doc.Find(selector).First().Attr("content")
		return clean(v)
	}

	md := Metadata{
		Title:       attr(`meta[property="og:title"]`),
		Description: attr(`meta[property="og:description"]`),
		Image:       attr(`meta[property="og:image"]`),
	}
	if md.Title == "" {
		md.Title = attr(`meta[name="title"]`)
	}
	if md.Title == "" {
		md.Title = clean(doc.Find("title").First().Text())
	}
	if md.Description == "" {
		md.Description = attr(`meta[name="description"]`)
	}

	if md.Title == "" || md.Description == "" || md.Image == "" {
		parser := readability.NewParser()
		article, err := parser.Parse(bytes.NewReader(body), pageURL)
		if err != nil {
			slog.Debug("readability found nothing", "url", pageURL.String(), "error", err)
		} else {
			md.Title = firstNonEmpty(md.Title, clean(article.Title))
			md.Description = firstNonEmpty(md.Description, clean(article.Excerpt))
			md.Image = firstNonEmpty(md.Image, article.Image)
		}
	}

	md.Image = resolve(pageURL, md.Image)
	return md, nil
}

// Strips any markup and collapses whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(stripPolicy.Sanitize(s)), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}

// Image links are frequently relative to the page.
func resolve(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	return base.ResolveReference(u).String()
}
