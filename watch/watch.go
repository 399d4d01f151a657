// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package watch detects new entries in remote directory listings.
//
// Each [Source] carries its own snapshot of the entries seen on the
// previous poll; [Detector.Poll] fetches the current listing, compares
// it against the snapshot, and returns the entries that appeared since.
// The first poll of a source establishes a baseline: the snapshot is
// recorded but the delta is empty, so a restart never replays the
// entire listing as "new".
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves the entry names of one remote directory listing.
// Implementations return bare entry names (no parent entries, no
// trailing slashes).
type Fetcher interface {
	FetchListing(ctx context.Context, url string) ([]string, error)
}

// Source is one watched path under the detector's base URL. Filter, if
// non-empty, keeps only entries whose name contains it as a substring;
// the filter applies before recursion, so sub-listings of filtered-out
// entries are never fetched. Recurse expands each surviving entry one
// level, yielding "entry/sub" names.
type Source struct {
	Name    string
	Path    string
	Filter  string
	Recurse bool

	// snapshot is the set of entries seen on the previous successful
	// poll. nil means never polled.
	snapshot map[string]struct{}
}

// Seen reports whether the source has completed its baseline poll.
func (s *Source) Seen() bool { return s.snapshot != nil }

// Detector polls sources against a common base URL and reports deltas.
type Detector struct {
	fetcher Fetcher
	baseURL string
	logger  *slog.Logger

	// Guards the snapshots of sources handed to Poll. Poll itself is
	// called from a single loop goroutine, but the lock keeps Seen and
	// concurrent test access honest.
	mu sync.Mutex
}

// NewDetector creates a detector fetching below baseURL.
func NewDetector(fetcher Fetcher, baseURL string, logger *slog.Logger) (*Detector, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("watch: fetcher is required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("watch: base URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		fetcher: fetcher,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Poll fetches the source's current listing and returns the entries
// not present in the previous snapshot, sorted. On the first poll the
// delta is empty and the listing becomes the baseline. Any fetch error
// leaves the snapshot untouched and fails only this source.
func (d *Detector) Poll(ctx context.Context, source *Source) ([]string, error) {
	entries, err := d.fetcher.FetchListing(ctx, d.listingURL(source.Path))
	if err != nil {
		return nil, fmt.Errorf("watch: fetching %s: %w", source.Path, err)
	}

	entries = applyFilter(entries, source.Filter)

	if source.Recurse {
		entries, err = d.expand(ctx, source.Path, entries)
		if err != nil {
			return nil, fmt.Errorf("watch: expanding %s: %w", source.Path, err)
		}
	}

	candidates := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		candidates[entry] = struct{}{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var delta []string
	if source.snapshot == nil {
		d.logger.Debug("baseline established", "source", source.Name, "entries", len(candidates))
	} else {
		for entry := range candidates {
			if _, seen := source.snapshot[entry]; !seen {
				delta = append(delta, entry)
			}
		}
		sort.Strings(delta)
	}
	source.snapshot = candidates
	return delta, nil
}

// expand fetches the sub-listing of every entry concurrently and
// returns the combined "entry/sub" names. The first fetch error cancels
// the rest and fails the whole expansion.
func (d *Detector) expand(ctx context.Context, path string, entries []string) ([]string, error) {
	expanded := make([][]string, len(entries))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		group.Go(func() error {
			subs, err := d.fetcher.FetchListing(groupCtx, d.listingURL(path+"/"+entry))
			if err != nil {
				return fmt.Errorf("sub-listing %s: %w", entry, err)
			}
			prefixed := make([]string, len(subs))
			for j, sub := range subs {
				prefixed[j] = entry + "/" + sub
			}
			expanded[i] = prefixed
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var combined []string
	for _, subs := range expanded {
		combined = append(combined, subs...)
	}
	return combined, nil
}

func (d *Detector) listingURL(path string) string {
	return d.baseURL + "/" + strings.Trim(path, "/") + "/"
}

// applyFilter keeps the entries containing filter. The input slice
// belongs to the fetcher and is never modified.
func applyFilter(entries []string, filter string) []string {
	if filter == "" {
		return entries
	}
	kept := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry, filter) {
			kept = append(kept, entry)
		}
	}
	return kept
}
