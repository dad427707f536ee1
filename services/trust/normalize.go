package trust

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams never affect which resource a URL points at, so they are
// stripped before the URL becomes a cache key.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"igshid":       {},
	"si":           {},
	"feature":      {},
	"ref":          {},
}

var hostAliases = map[string]string{
	"x.com":            "twitter.com",
	"mobile.twitter.com": "twitter.com",
	"m.youtube.com":    "youtube.com",
	"m.facebook.com":   "facebook.com",
	"mobile.facebook.com": "facebook.com",
	"old.reddit.com":   "reddit.com",
}

// NormalizeSourceURL canonicalizes a source URL so that superficially
// different links to the same resource share one cache key: short and long
// video links collapse to one form, mobile/www hosts fold together,
// tracking parameters disappear and the remaining query is sorted.
func NormalizeSourceURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		// An unparseable URL still needs a stable key.
		return strings.ToLower(raw)
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	path := strings.TrimSuffix(parsed.Path, "/")
	query := parsed.Query()

	// youtu.be/<id> is the same video as youtube.com/watch?v=<id>.
	if host == "youtu.be" {
		videoID := strings.TrimPrefix(path, "/")
		host = "youtube.com"
		path = "/watch"
		query = url.Values{"v": []string{videoID}}
	}

	if alias, ok := hostAliases[host]; ok {
		host = alias
	}
	// youtube.com/shorts/<id> plays as a regular watch URL too.
	if host == "youtube.com" && strings.HasPrefix(path, "/shorts/") {
		videoID := strings.TrimPrefix(path, "/shorts/")
		path = "/watch"
		query = url.Values{"v": []string{videoID}}
	}

	for param := range query {
		if _, tracking := trackingParams[strings.ToLower(param)]; tracking {
			delete(query, param)
		}
	}

	normalized := "https://" + host + path
	if encoded := encodeSortedQuery(query); encoded != "" {
		normalized += "?" + encoded
	}
	return normalized
}

func encodeSortedQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		for _, value := range query[key] {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(value))
		}
	}
	return strings.Join(parts, "&")
}
