// Package ingest builds VideoRefs from source file paths: it probes
// each path through a media.Tool, validates the result against
// spec.md §3/§6.4's acceptance rules, and assigns the "stable unique
// identifier" spec.md §3 requires (id "assigned at ingest; survives
// renames within a session").
//
// Grounded on the teacher's internal/browse.Browser: same
// probe-and-cache shape, the same singleflight.Group dedup for
// concurrent lookups of the same path (browse.go dedupes concurrent
// countVideos calls on a directory; this package dedupes concurrent
// probes of the same file), replacing directory-tree browsing with
// grid ingestion since this domain's GUI hands over an already-laid-out
// MenuLayout of paths, not a filesystem to browse interactively.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gwlsn/dvdarchive/internal/media"
	"github.com/gwlsn/dvdarchive/internal/videoref"
)

// RejectedRef names a path that failed probe or validation, and why.
type RejectedRef struct {
	Path   string
	Reason string
}

// Ingestor probes and validates source files into VideoRefs.
type Ingestor struct {
	tool media.Tool

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*videoref.VideoRef
}

// New constructs an Ingestor backed by tool.
func New(tool media.Tool) *Ingestor {
	return &Ingestor{tool: tool, cache: make(map[string]*videoref.VideoRef)}
}

// IngestFile probes path (deduping concurrent calls for the same path),
// validates the result, and returns a VideoRef with a freshly assigned
// ID. A previously ingested path returns its cached ref unchanged, so
// repeated ingestion of the same path within a session keeps the same
// ID (spec.md §3: "survives renames within a session" — renaming the
// GUI's in-memory reference doesn't re-ingest the file).
func (g *Ingestor) IngestFile(ctx context.Context, path string) (*videoref.VideoRef, error) {
	g.mu.RLock()
	if cached, ok := g.cache[path]; ok {
		g.mu.RUnlock()
		return cached, nil
	}
	g.mu.RUnlock()

	v, err, _ := g.group.Do(path, func() (any, error) {
		info, err := g.tool.Probe(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("ingest: probe %s: %w", path, err)
		}
		if verr := videoref.ValidateEncodingInfo(info); verr != nil {
			return nil, fmt.Errorf("ingest: reject %s: %w", path, verr)
		}
		ref := &videoref.VideoRef{
			ID:       uuid.NewString(),
			Path:     path,
			Encoding: *info,
		}
		g.mu.Lock()
		g.cache[path] = ref
		g.mu.Unlock()
		return ref, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*videoref.VideoRef), nil
}

// IngestPaths ingests every path, returning the accepted refs in input
// order alongside a list of rejections. A rejection never aborts the
// batch: spec.md §6.4 rejects individual refs "at grid ingest", it does
// not fail the whole grid over one bad file.
func (g *Ingestor) IngestPaths(ctx context.Context, paths []string) ([]*videoref.VideoRef, []RejectedRef) {
	var accepted []*videoref.VideoRef
	var rejected []RejectedRef
	for _, p := range paths {
		ref, err := g.IngestFile(ctx, p)
		if err != nil {
			rejected = append(rejected, RejectedRef{Path: p, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, ref)
	}
	return accepted, rejected
}

// Forget drops path from the cache, forcing the next IngestFile call to
// re-probe it (e.g. after the GUI replaces the underlying file).
func (g *Ingestor) Forget(path string) {
	g.mu.Lock()
	delete(g.cache, path)
	g.mu.Unlock()
}
