// Package affiliate rewrites outbound product links: it strips tracking
// parameters and tags merchant links with the configured affiliate ids.
package affiliate

import (
	"log/slog"
	"net/url"
	"strings"
)

// Config holds the affiliate identifiers per merchant. Empty ones are skipped.
type Config struct {
	Amazon  string
	Target  string
	Walmart string
	Etsy    string
}

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term",
	"fbclid", "gclid", "msclkid", "_ga", "mc_cid", "mc_eid",
}

// A merchant's rule applies when its host fragment is in the link's hostname.
type merchant struct {
	host  string
	param string
	id    func(Config) string
	strip []string // Pre-existing attribution to drop before tagging
}

// Order matters: the first matching merchant wins.
var merchants = []merchant{
	{host: "amazon.", param: "tag", id: func(c Config) string { return c.Amazon }, strip: []string{"tag", "linkCode", "linkId"}},
	{host: "target.com", param: "afid", id: func(c Config) string { return c.Target }},
	{host: "walmart.com", param: "wmlspartner", id: func(c Config) string { return c.Walmart }},
	{host: "etsy.com", param: "ref", id: func(c Config) string { return c.Etsy }},
}

type Normalizer struct {
	cfg Config
}

func NewNormalizer(cfg Config) Normalizer {
	return Normalizer{cfg: cfg}
}

// Normalize returns the cleaned up link.
//
// Anything that isn't an absolute URL comes back untouched.
func (n Normalizer) Normalize(raw string) string {
	if raw == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		slog.Debug("not normalizing url", "url", raw, "error", err)
		return raw
	}

	drop := map[string]bool{}
	for _, p := range trackingParams {
		drop[p] = true
	}

	var tag *merchant
	host := strings.ToLower(u.Hostname())
	for i, m := range merchants {
		if strings.Contains(host, m.host) {
			tag = &merchants[i]
			break
		}
	}

	var param, id string
	if tag != nil {
		for _, p := range tag.strip {
			drop[p] = true
		}
		param, id = tag.param, tag.id(n.cfg)
		if id != "" {
			delete(drop, param)
		}
	}

	u.RawQuery = rewriteQuery(u.RawQuery, drop, param, id)
	return u.String()
}

// Filters the raw query pair by pair, matching on the decoded key. Pairs are
// otherwise kept byte for byte, including ones that don't decode. A non-empty
// id replaces the first param pair in place (dropping the rest) or is appended.
func rewriteQuery(raw string, drop map[string]bool, param, id string) string {
	var (
		kept []string
		set  bool
	)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}

		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}

		switch {
		case drop[key]:
			continue
		case id != "" && key == param:
			if set {
				continue
			}
			pair, set = url.QueryEscape(param)+"="+url.QueryEscape(id), true
		}
		kept = append(kept, pair)
	}
	if id != "" && !set {
		kept = append(kept, url.QueryEscape(param)+"="+url.QueryEscape(id))
	}

	return strings.Join(kept, "&")
}
