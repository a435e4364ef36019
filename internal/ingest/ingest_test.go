package ingest

import (
	"context"
	"testing"

	"github.com/gwlsn/dvdarchive/internal/media"
	"github.com/gwlsn/dvdarchive/internal/videoref"
)

type stubTool struct {
	media.Tool
	info      *videoref.EncodingInfo
	probeCall int
}

func (s *stubTool) Probe(ctx context.Context, path string) (*videoref.EncodingInfo, error) {
	s.probeCall++
	return s.info, nil
}

func validInfo() *videoref.EncodingInfo {
	return &videoref.EncodingInfo{
		Width: 720, Height: 480,
		FrameRate:   videoref.FrameRate25,
		FrameCount:  2500,
		Duration:    100,
		Codec:       "h264",
		AspectRatio: videoref.Aspect4x3,
	}
}

func TestIngestFileAssignsIDAndCaches(t *testing.T) {
	tool := &stubTool{info: validInfo()}
	g := New(tool)

	ref1, err := g.IngestFile(context.Background(), "a.mkv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref1.ID == "" {
		t.Fatal("expected a non-empty assigned ID")
	}

	ref2, err := g.IngestFile(context.Background(), "a.mkv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref2.ID != ref1.ID {
		t.Fatalf("expected cached ingest to keep the same ID, got %s vs %s", ref1.ID, ref2.ID)
	}
	if tool.probeCall != 1 {
		t.Fatalf("expected exactly one probe for a cached path, got %d", tool.probeCall)
	}
}

func TestIngestPathsRejectsInvalidWithoutAbortingBatch(t *testing.T) {
	bad := validInfo()
	bad.FrameRate = videoref.NewRational(24, 1)

	calls := 0
	tool := &stubTool{info: bad}
	g := New(tool)
	_ = calls

	accepted, rejected := g.IngestPaths(context.Background(), []string{"bad.mkv"})
	if len(accepted) != 0 {
		t.Fatalf("expected no accepted refs, got %d", len(accepted))
	}
	if len(rejected) != 1 || rejected[0].Path != "bad.mkv" {
		t.Fatalf("expected one rejection for bad.mkv, got %+v", rejected)
	}
}

func TestForgetForcesReprobe(t *testing.T) {
	tool := &stubTool{info: validInfo()}
	g := New(tool)

	if _, err := g.IngestFile(context.Background(), "a.mkv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.Forget("a.mkv")
	if _, err := g.IngestFile(context.Background(), "a.mkv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tool.probeCall != 2 {
		t.Fatalf("expected a re-probe after Forget, got %d calls", tool.probeCall)
	}
}
