package cut

import (
	"context"
	"testing"

	"github.com/gwlsn/dvdarchive/internal/media"
	"github.com/gwlsn/dvdarchive/internal/taskdef"
	"github.com/gwlsn/dvdarchive/internal/videoref"
)

// fakeTool is a minimal in-memory media.Tool used to drive Engine.Cut
// without external binaries.
type fakeTool struct {
	info          *videoref.EncodingInfo
	frames        []media.FrameInfo
	streamCopies  []media.CutSpec
	reencodes     []media.CutSpec
	concatCalls   [][]string
}

func (f *fakeTool) Probe(ctx context.Context, path string) (*videoref.EncodingInfo, error) {
	return f.info, nil
}

func (f *fakeTool) ProbeFrames(ctx context.Context, path string, start, window float64) ([]media.FrameInfo, error) {
	return f.frames, nil
}

func (f *fakeTool) CutStreamCopy(ctx context.Context, cancelled *taskdef.CancelFlag, spec media.CutSpec) error {
	f.streamCopies = append(f.streamCopies, spec)
	return nil
}

func (f *fakeTool) ReencodeSegment(ctx context.Context, cancelled *taskdef.CancelFlag, spec media.CutSpec, info *videoref.EncodingInfo, gopSize int) error {
	f.reencodes = append(f.reencodes, spec)
	return nil
}

func (f *fakeTool) TranscodeH26x(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts media.H26xOptions) (string, error) {
	return "", nil
}
func (f *fakeTool) TranscodeFFV1(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts media.FFV1Options) (string, error) {
	return "", nil
}
func (f *fakeTool) TranscodeDV(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, fr videoref.Rational, w, h int) (string, error) {
	return "", nil
}
func (f *fakeTool) TranscodeMezzanine(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts media.MezzanineOptions) (string, error) {
	return "", nil
}

func (f *fakeTool) Concatenate(ctx context.Context, cancelled *taskdef.CancelFlag, files []string, out string, deleteTemps bool) error {
	f.concatCalls = append(f.concatCalls, files)
	return nil
}

func (f *fakeTool) MakeISO(ctx context.Context, inDir, outISO string) error { return nil }

func (f *fakeTool) CopyFile(ctx context.Context, cancelled *taskdef.CancelFlag, src, dst string) error {
	return nil
}

func palInfoForCut() *videoref.EncodingInfo {
	return &videoref.EncodingInfo{
		FrameRate:  videoref.FrameRate25,
		FrameCount: 2500,
		Duration:   100,
		Codec:      "h264",
	}
}

func TestCutShortcutsToStreamCopyWhenAllIntra(t *testing.T) {
	allI := []media.FrameInfo{
		{PictType: "I", KeyFrame: true, PTSTime: 0},
		{PictType: "I", KeyFrame: true, PTSTime: 1},
	}
	tool := &fakeTool{info: palInfoForCut(), frames: allI}
	eng := NewEngine(tool)

	err := eng.Cut(context.Background(), nil, CutDef{
		InputPath: "in.mkv", OutputPath: "out.mkv",
		StartFrame: 25, EndFrame: 75, Tag: "t1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tool.streamCopies) != 1 {
		t.Fatalf("expected exactly one stream copy, got %d", len(tool.streamCopies))
	}
	if len(tool.reencodes) != 0 {
		t.Fatalf("expected no re-encodes on all-intra shortcut, got %d", len(tool.reencodes))
	}
}

func TestCutRejectsUnsupportedFrameRate(t *testing.T) {
	info := palInfoForCut()
	info.FrameRate = videoref.NewRational(24, 1)
	tool := &fakeTool{info: info}
	eng := NewEngine(tool)

	err := eng.Cut(context.Background(), nil, CutDef{InputPath: "in.mkv", OutputPath: "out.mkv", EndFrame: 10})
	if err == nil {
		t.Fatal("expected error for unsupported frame rate")
	}
}

func TestCutHybridPathPlansHeadMiddleTailAndConcatenates(t *testing.T) {
	mixed := []media.FrameInfo{
		{PictType: "I", KeyFrame: true, PTSTime: 0},
		{PictType: "P", KeyFrame: false, PTSTime: 0.04},
	}
	tool := &fakeTool{info: palInfoForCut(), frames: mixed}
	eng := NewEngine(tool)

	err := eng.Cut(context.Background(), nil, CutDef{
		InputPath: "in.mkv", OutputPath: "out.mkv",
		StartFrame: 25, EndFrame: 75, Tag: "t2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tool.concatCalls) != 1 {
		t.Fatalf("expected one concatenate call, got %d", len(tool.concatCalls))
	}
	// Final window extraction is a stream copy on top of any head/middle/tail ones.
	if len(tool.streamCopies) == 0 {
		t.Fatal("expected final window extraction stream copy")
	}
}
