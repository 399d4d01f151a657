// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package listing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

const apacheIndex = `<!DOCTYPE html>
<html>
<head><title>Index of /pub/firefox/releases</title></head>
<body>
<h1>Index of /pub/firefox/releases</h1>
<table>
<tr><th><a href="?C=N;O=D">Name</a></th><th><a href="?C=M;O=A">Last modified</a></th></tr>
<tr><td><a href="/pub/firefox/">Parent Directory</a></td></tr>
<tr><td><a href="../">..</a></td></tr>
<tr><td><a href="139.0/">139.0/</a></td></tr>
<tr><td><a href="140.0/">140.0/</a></td></tr>
<tr><td><a href="SHA256SUMS">SHA256SUMS</a></td></tr>
</table>
</body>
</html>`

func TestFetchListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pub/firefox/releases/" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("User-Agent"); got != "pubwatch" {
			t.Errorf("User-Agent = %q, want %q", got, "pubwatch")
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(apacheIndex))
	}))
	defer server.Close()

	fetcher := NewFetcher(WithHTTPClient(server.Client()))
	entries, err := fetcher.FetchListing(context.Background(), server.URL+"/pub/firefox/releases/")
	if err != nil {
		t.Fatalf("FetchListing failed: %v", err)
	}

	want := []string{"139.0", "140.0", "SHA256SUMS"}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %v, want %v", entries, want)
	}
}

func TestFetchListingNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer server.Close()

	fetcher := NewFetcher(WithHTTPClient(server.Client()))
	if _, err := fetcher.FetchListing(context.Background(), server.URL+"/missing/"); err == nil {
		t.Fatal("FetchListing should fail on 404")
	}
}

func TestFetchListingConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	fetcher := NewFetcher()
	if _, err := fetcher.FetchListing(context.Background(), server.URL+"/pub/"); err == nil {
		t.Fatal("FetchListing should fail when the server is unreachable")
	}
}

func TestParseListingSkipsNonEntries(t *testing.T) {
	page := `<html><body>
<a href="?C=N;O=D">Name</a>
<a href="#top">top</a>
<a href="https://example.com/elsewhere">offsite</a>
<a href="../">..</a>
<a href="./">.</a>
<a href="build1/">build1/</a>
<a href="notes.txt">notes.txt</a>
</body></html>`

	entries, err := parseListing(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parseListing failed: %v", err)
	}
	want := []string{"build1", "notes.txt"}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %v, want %v", entries, want)
	}
}

func TestParseListingMalformedHTML(t *testing.T) {
	// html.Parse is forgiving; a truncated page still yields the
	// anchors it managed to see.
	page := `<html><body><a href="141.0/">141.0</a><a href="142`
	entries, err := parseListing(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parseListing failed: %v", err)
	}
	if want := []string{"141.0"}; !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %v, want %v", entries, want)
	}
}
