// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package listing fetches remote directory index pages and extracts
// their entry names from the anchor tags.
package listing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// maxListingBytes bounds how much of an index page we read. Directory
// indexes are small; anything larger is not a listing.
const maxListingBytes = 4 << 20

// Fetcher retrieves directory listings over HTTP.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = client }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(agent string) Option {
	return func(f *Fetcher) { f.userAgent = agent }
}

// NewFetcher creates a listing fetcher with a 30 second request
// timeout unless a custom client is supplied.
func NewFetcher(options ...Option) *Fetcher {
	fetcher := &Fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "pubwatch",
	}
	for _, option := range options {
		option(fetcher)
	}
	return fetcher
}

// FetchListing downloads the index page at listingURL and returns the
// entry names it links to. Parent-directory entries are dropped and
// trailing slashes trimmed, so directories and files come back as bare
// names.
func (f *Fetcher) FetchListing(ctx context.Context, listingURL string) ([]string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("listing: building request for %s: %w", listingURL, err)
	}
	request.Header.Set("User-Agent", f.userAgent)
	request.Header.Set("Accept", "text/html")

	response, err := f.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("listing: fetching %s: %w", listingURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		return nil, fmt.Errorf("listing: fetching %s: unexpected status %d", listingURL, response.StatusCode)
	}

	entries, err := parseListing(io.LimitReader(response.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("listing: parsing %s: %w", listingURL, err)
	}
	return entries, nil
}

// parseListing walks the HTML tree and collects the href of every
// anchor that names a listing entry.
func parseListing(r io.Reader) ([]string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var entries []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "a" {
			if name, ok := entryName(node); ok {
				entries = append(entries, name)
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return entries, nil
}

// entryName extracts the entry name from an anchor's href. Listing
// entries are plain relative hrefs; absolute URLs, absolute paths
// (Apache's "Parent Directory" link), parent references, queries
// (index sort links), and fragments are not entries.
func entryName(anchor *html.Node) (string, bool) {
	var href string
	for _, attr := range anchor.Attr {
		if attr.Key == "href" {
			href = attr.Val
			break
		}
	}
	if href == "" || strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "/") {
		return "", false
	}

	parsed, err := url.Parse(href)
	if err != nil || parsed.IsAbs() || parsed.Host != "" {
		return "", false
	}

	name := strings.TrimSuffix(parsed.Path, "/")
	if name == "" || name == ".." || name == "." || strings.ContainsRune(name, '/') {
		return "", false
	}
	return name, true
}
