package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gwlsn/dvdarchive/internal/copier"
	"github.com/gwlsn/dvdarchive/internal/cut"
	"github.com/gwlsn/dvdarchive/internal/dispatch"
	"github.com/gwlsn/dvdarchive/internal/media"
	"github.com/gwlsn/dvdarchive/internal/pool"
	"github.com/gwlsn/dvdarchive/internal/taskdef"
	"github.com/gwlsn/dvdarchive/internal/videoref"
)

// fakeMediaTool writes small placeholder files for every transcode/copy
// call instead of shelling out, so the pipeline's temp folders have real
// content for the archive_task's hash-copy-hash step to verify.
type fakeMediaTool struct{}

func (fakeMediaTool) Probe(ctx context.Context, path string) (*videoref.EncodingInfo, error) {
	return &videoref.EncodingInfo{Codec: "h264"}, nil
}
func (fakeMediaTool) ProbeFrames(ctx context.Context, path string, start, window float64) ([]media.FrameInfo, error) {
	return nil, nil
}
func (fakeMediaTool) CutStreamCopy(ctx context.Context, cancelled *taskdef.CancelFlag, spec media.CutSpec) error {
	return nil
}
func (fakeMediaTool) ReencodeSegment(ctx context.Context, cancelled *taskdef.CancelFlag, spec media.CutSpec, info *videoref.EncodingInfo, gopSize int) error {
	return nil
}
func (fakeMediaTool) TranscodeH26x(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts media.H26xOptions) (string, error) {
	ext := ".mp4"
	if opts.Container == "mkv" {
		ext = ".mkv"
	}
	out := filepath.Join(outDir, opts.OutputName+ext)
	return out, os.WriteFile(out, []byte("transcoded:"+in), 0644)
}
func (fakeMediaTool) TranscodeFFV1(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts media.FFV1Options) (string, error) {
	out := filepath.Join(outDir, opts.OutputName+".mkv")
	return out, os.WriteFile(out, []byte("ffv1:"+in), 0644)
}
func (fakeMediaTool) TranscodeDV(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, fr videoref.Rational, w, h int) (string, error) {
	return "", nil
}
func (fakeMediaTool) TranscodeMezzanine(ctx context.Context, cancelled *taskdef.CancelFlag, in, outDir string, opts media.MezzanineOptions) (string, error) {
	return "", nil
}
func (fakeMediaTool) Concatenate(ctx context.Context, cancelled *taskdef.CancelFlag, files []string, out string, deleteTemps bool) error {
	return nil
}
func (fakeMediaTool) MakeISO(ctx context.Context, inDir, outISO string) error { return nil }
func (fakeMediaTool) CopyFile(ctx context.Context, cancelled *taskdef.CancelFlag, src, dst string) error {
	return os.WriteFile(dst, []byte("copied:"+src), 0644)
}

func newTestPipeline(t *testing.T) (*Pipeline, func()) {
	t.Helper()
	p := pool.New(4)
	d := dispatch.New(p)
	tool := fakeMediaTool{}
	engine := cut.NewEngine(tool)
	cp := copier.NewCopier(engine)
	metrics := NewMetrics(prometheus.NewRegistry())
	return New(d, tool, engine, cp, metrics), func() { p.Stop() }
}

func writeDummyFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("dummy"), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func baseRequest(t *testing.T) BuildRequest {
	t.Helper()
	dvdSrc := t.TempDir()
	isoSrc := t.TempDir()
	writeDummyFile(t, filepath.Join(dvdSrc, "video_ts.bin"))
	writeDummyFile(t, filepath.Join(isoSrc, "disc.iso"))

	v1 := &videoref.VideoRef{ID: "v1", Path: "/src/a.mp4", Encoding: videoref.EncodingInfo{Codec: "h264"}}
	v1.Settings.ButtonTitle = "Intro"
	v2 := &videoref.VideoRef{ID: "v2", Path: "/src/b.mp4", Encoding: videoref.EncodingInfo{Codec: "h264"}}
	v2.Settings.ButtonTitle = "Outro"

	return BuildRequest{
		DVDName:         "My Project",
		DVDSourceFolder: dvdSrc,
		ISOSourceFolder: isoSrc,
		ArchiveRoot:     t.TempDir(),
		StreamingRoot:   t.TempDir(),
		MenuLayout: videoref.MenuLayout{Pages: []videoref.MenuPage{
			{Title: "Main Menu", Videos: []*videoref.VideoRef{v1, v2}},
		}},
		Codec:      CodecNone,
		DiscFormat: FormatDVD,
		HashAlgo:   copier.SHA256,
	}
}

func TestBuildRunsFullGraphAndNotifiesOnce(t *testing.T) {
	p, stop := newTestPipeline(t)
	defer stop()

	req := baseRequest(t)
	done := make(chan Report, 4)
	if err := p.Build(context.Background(), req, func(r Report) { done <- r }); err != nil {
		t.Fatalf("Build: %v", err)
	}

	select {
	case report := <-done:
		if report.Failed {
			t.Fatalf("expected a successful build, got errors: %v", report.Errors)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for build completion")
	}

	select {
	case extra := <-done:
		t.Fatalf("expected exactly one completion notification, got a second: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}

	finalDir := filepath.Join(req.ArchiveRoot, "My_Project", "preservation_master_none", "01_Main_Menu", "Disk_01")
	entries, err := os.ReadDir(finalDir)
	if err != nil {
		t.Fatalf("read final dir: %v", err)
	}
	var copied, sidecars int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".sha256" {
			sidecars++
		} else {
			copied++
		}
	}
	if copied != 2 || sidecars != 2 {
		t.Fatalf("expected 2 archived files and 2 sidecars, got copied=%d sidecars=%d", copied, sidecars)
	}
}

func TestBuildValidatesRootsBeforeSubmittingAnyTask(t *testing.T) {
	p, stop := newTestPipeline(t)
	defer stop()

	req := baseRequest(t)
	req.DVDSourceFolder = filepath.Join(t.TempDir(), "does-not-exist")

	err := p.Build(context.Background(), req, func(Report) {
		t.Fatal("onComplete must not fire when root validation fails")
	})
	if err == nil {
		t.Fatal("expected an error for a missing dvd_source_folder")
	}
}

func TestBuildRejectsExistingProjectWithoutOverwrite(t *testing.T) {
	p, stop := newTestPipeline(t)
	defer stop()

	req := baseRequest(t)
	if err := p.Build(context.Background(), req, func(Report) {}); err != nil {
		t.Fatalf("first build: %v", err)
	}

	req2 := req
	req2.MenuLayout = videoref.MenuLayout{Pages: nil}
	err := p.Build(context.Background(), req2, func(Report) {})
	if err == nil {
		t.Fatal("expected an error re-building into an existing project without overwrite_existing")
	}
}
