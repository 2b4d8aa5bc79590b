// Package helpers contains small shared utilities for URL feature
// extraction.
package helpers

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// searchQueryParams are checked in order when extracting a search query
// from a URL.
var searchQueryParams = []string{"q", "query", "search", "p"}

// URLFeatures are the semantic fields derived from a raw visit URL when
// the extension did not supply them.
type URLFeatures struct {
	Hostname      string
	PathnameClean string
	SearchQuery   string
}

// ExtractURLFeatures derives hostname, a cleaned pathname and an extracted
// search query from a raw URL string. The scheme defaults to https when
// omitted.
func ExtractURLFeatures(raw string) (URLFeatures, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return URLFeatures{}, errors.New("empty url")
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	} else if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return URLFeatures{}, err
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return URLFeatures{}, errors.New("url missing host")
	}

	cleanPath := parsed.EscapedPath()
	if cleanPath == "" {
		cleanPath = "/"
	}
	cleanPath = path.Clean(cleanPath)
	if cleanPath == "." {
		cleanPath = "/"
	}
	if !strings.HasPrefix(cleanPath, "/") {
		cleanPath = "/" + cleanPath
	}

	var search string
	values := parsed.Query()
	for _, key := range searchQueryParams {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			search = v
			break
		}
	}

	return URLFeatures{
		Hostname:      host,
		PathnameClean: cleanPath,
		SearchQuery:   search,
	}, nil
}
