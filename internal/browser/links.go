package browser

import (
	"fmt"
	"net/url"
	"strings"
)

func parseBase(pageURL string) (*url.URL, error) {
	if pageURL == "" {
		return nil, nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %q: %w", pageURL, err)
	}
	return base, nil
}

// resolveHref turns an anchor href into an absolute URL. Fragment-only and
// javascript: hrefs carry no navigation target and are dropped.
func resolveHref(base *url.URL, href string) (string, bool) {
	if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base == nil {
		if !ref.IsAbs() {
			return "", false
		}
		return ref.String(), true
	}
	return base.ResolveReference(ref).String(), true
}
