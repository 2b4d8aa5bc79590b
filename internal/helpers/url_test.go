package helpers

import "testing"

func TestExtractURLFeatures(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want URLFeatures
	}{
		{
			name: "plain https url",
			raw:  "https://go.dev/doc/tutorial/",
			want: URLFeatures{Hostname: "go.dev", PathnameClean: "/doc/tutorial"},
		},
		{
			name: "schemeless url",
			raw:  "go.dev/blog",
			want: URLFeatures{Hostname: "go.dev", PathnameClean: "/blog"},
		},
		{
			name: "protocol relative url",
			raw:  "//Go.Dev/doc",
			want: URLFeatures{Hostname: "go.dev", PathnameClean: "/doc"},
		},
		{
			name: "search query q param",
			raw:  "https://www.google.com/search?q=golang+testing&hl=en",
			want: URLFeatures{Hostname: "www.google.com", PathnameClean: "/search", SearchQuery: "golang testing"},
		},
		{
			name: "search query fallback param",
			raw:  "https://search.yahoo.com/search?p=weather",
			want: URLFeatures{Hostname: "search.yahoo.com", PathnameClean: "/search", SearchQuery: "weather"},
		},
		{
			name: "q wins over later params",
			raw:  "https://x.com/find?search=second&q=first",
			want: URLFeatures{Hostname: "x.com", PathnameClean: "/find", SearchQuery: "first"},
		},
		{
			name: "root path",
			raw:  "https://news.ycombinator.com",
			want: URLFeatures{Hostname: "news.ycombinator.com", PathnameClean: "/"},
		},
		{
			name: "dot segments cleaned",
			raw:  "https://x.com/a/b/../c/./d",
			want: URLFeatures{Hostname: "x.com", PathnameClean: "/a/c/d"},
		},
		{
			name: "uppercase host lowered",
			raw:  "https://GitHub.COM/golang/go",
			want: URLFeatures{Hostname: "github.com", PathnameClean: "/golang/go"},
		},
		{
			name: "port stripped from hostname",
			raw:  "http://localhost:8080/admin",
			want: URLFeatures{Hostname: "localhost", PathnameClean: "/admin"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractURLFeatures(tc.raw)
			if err != nil {
				t.Fatalf("ExtractURLFeatures(%q): %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("ExtractURLFeatures(%q) = %+v, want %+v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestExtractURLFeaturesErrors(t *testing.T) {
	for _, raw := range []string{"", "   ", "https://"} {
		if _, err := ExtractURLFeatures(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
