package news

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Fingerprint creates a stable hash for a news item from its normalized title
// and the domain of its URL.
func Fingerprint(title, link string) string {
	normalizedTitle := strings.ToLower(strings.TrimSpace(title))
	normalizedTitle = strings.Join(strings.Fields(normalizedTitle), " ")

	h := sha256.New()
	h.Write([]byte(normalizedTitle + "|" + Domain(link)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Domain extracts the host of a URL without the www. prefix.
func Domain(link string) string {
	if link == "" {
		return "unknown"
	}

	host := ""
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		host = u.Hostname()
	} else {
		// scheme-less links
		trimmed := strings.TrimPrefix(strings.TrimPrefix(link, "http://"), "https://")
		host = strings.SplitN(trimmed, "/", 2)[0]
	}
	if host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// Deduplicate drops articles whose fingerprint was already seen. The first
// occurrence wins and the input slice is left untouched.
func Deduplicate(articles []*Article) []*Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]*Article, 0, len(articles))
	for _, a := range articles {
		fp := a.ContentFingerprint
		if fp == "" {
			fp = Fingerprint(a.Title, a.URL)
		}
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, a)
	}
	return out
}
