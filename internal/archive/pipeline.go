// Package archive implements the ArchivePipeline (spec §4.5, C7): the
// per-menu streaming/transcode/archive task graph, its group-completion
// scheduling rule, and its idempotent build-completion notification.
//
// Grounded on the teacher's internal/jobs.Queue for the overall shape of
// an orchestrator sitting above a worker abstraction (job bookkeeping,
// de-duplicated error accumulation, a single "build finished" signal),
// generalized from a flat job list to a DAG of per-menu task groups
// since this component has no single-task analogue in shrinkray.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gwlsn/dvdarchive/internal/copier"
	"github.com/gwlsn/dvdarchive/internal/cut"
	"github.com/gwlsn/dvdarchive/internal/dispatch"
	"github.com/gwlsn/dvdarchive/internal/logger"
	"github.com/gwlsn/dvdarchive/internal/media"
	"github.com/gwlsn/dvdarchive/internal/taskdef"
	"github.com/gwlsn/dvdarchive/internal/videoref"
)

// Prefix kinds, per spec §4.5: "stream_task (prefix AM_ST)", "transcode_task
// (prefix AM_TR)", "archive_task (prefix AM_AR)".
const (
	kindStream    = "AM_ST"
	kindTranscode = "AM_TR"
	kindArchive   = "AM_AR"
)

// BuildRequest is one DVD build submission (spec §4.5's "given a DVD
// build (dvd_name, dvd_source_folder, iso_source_folder, menu_layout,
// overwrite_existing)").
type BuildRequest struct {
	DVDName           string
	DVDSourceFolder   string
	ISOSourceFolder   string
	ArchiveRoot       string
	StreamingRoot     string
	MenuLayout        videoref.MenuLayout
	OverwriteExisting bool
	Codec             PreservationCodec
	DiscFormat        DiscFormat
	HashAlgo          copier.Algo
}

// Report is the pipeline's single aggregated build-completion
// notification (spec §4.5: "fires a single final notification;
// multiple triggers are suppressed with an idempotent flag").
type Report struct {
	DVDName string
	Errors  []string
	Failed  bool
}

// Pipeline is the ArchivePipeline. It holds weak references to
// submitted TaskDefs only (by task_id, via the dispatcher), per spec
// §3's ownership note: "ArchivePipeline ... never mutates a TaskDef
// after submission."
type Pipeline struct {
	Dispatcher *dispatch.Dispatcher
	Tool       media.Tool
	CutEngine  *cut.Engine
	Copier     *copier.Copier
	Metrics    *Metrics

	mu     sync.Mutex
	builds map[string]*buildState
}

type menuGroup struct {
	title            string
	tempDir          string
	finalDir         string
	streamDir        string
	streamKey        string
	transcodeKey     string
	archiveKey       string
	archiveSubmitted bool
	videos           []*videoref.VideoRef
}

type buildState struct {
	req        BuildRequest
	onComplete func(Report)
	layout     projectLayout
	folderGB   float64

	mu         sync.Mutex
	menus      []*menuGroup
	groupStart map[string]time.Time
	errSeen    map[string]bool
	errOrdered []string
	notified   bool
}

// New constructs a Pipeline. metrics may be nil to disable instrumentation
// (tests construct their own registry via NewMetrics).
func New(d *dispatch.Dispatcher, tool media.Tool, engine *cut.Engine, cp *copier.Copier, metrics *Metrics) *Pipeline {
	return &Pipeline{
		Dispatcher: d,
		Tool:       tool,
		CutEngine:  engine,
		Copier:     cp,
		Metrics:    metrics,
		builds:     make(map[string]*buildState),
	}
}

// Build plans and submits every task for req (spec §4.5's Planning and
// Per-button task graph sections). It returns as soon as planning and
// submission complete; onComplete fires later, exactly once, from the
// dispatcher's delivery goroutine, once every menu's streaming,
// transcoding and archiving groups have each completed.
func (p *Pipeline) Build(ctx context.Context, req BuildRequest, onComplete func(Report)) error {
	if err := validateRoots(req); err != nil {
		return err
	}
	folderGB, err := req.DiscFormat.folderSizeGB()
	if err != nil {
		return err
	}

	layout := newProjectLayout(req.ArchiveRoot, req.StreamingRoot, sanitizeName(req.DVDName), req.Codec)
	if err := prepareProject(layout, req.OverwriteExisting); err != nil {
		return err
	}
	if err := copyTree(req.DVDSourceFolder, layout.dvdImageDir); err != nil {
		return fmt.Errorf("archive: copy dvd image: %w", err)
	}
	if err := copyTree(req.ISOSourceFolder, layout.isoImageDir); err != nil {
		return fmt.Errorf("archive: copy iso image: %w", err)
	}

	state := &buildState{
		req:        req,
		onComplete: onComplete,
		layout:     layout,
		folderGB:   folderGB,
		groupStart: make(map[string]time.Time),
		errSeen:    make(map[string]bool),
	}

	for pageIdx, page := range req.MenuLayout.Pages {
		menu, err := p.planMenu(state, pageIdx, page)
		if err != nil {
			return fmt.Errorf("archive: plan menu %q: %w", page.Title, err)
		}
		state.menus = append(state.menus, menu)
	}

	p.mu.Lock()
	p.builds[req.DVDName] = state
	p.mu.Unlock()

	for _, menu := range state.menus {
		for btnIdx, vref := range menu.videos {
			p.submitStreamTask(state, menu, btnIdx, vref)
			p.submitTranscodeTask(state, menu, btnIdx, vref)
		}
	}
	return nil
}

// planMenu creates the per-menu temp/final/stream folders (spec §4.5
// step 5) and assigns this menu's three group keys.
func (p *Pipeline) planMenu(state *buildState, pageIdx int, page videoref.MenuPage) (*menuGroup, error) {
	folderName := menuFolderName(pageIdx, page.Title)
	tempDir := filepath.Join(state.layout.preservationRoot, folderName+"_temp")
	finalDir := filepath.Join(state.layout.preservationRoot, folderName)
	streamDir := filepath.Join(state.layout.streamingRoot, folderName)

	for _, dir := range []string{tempDir, finalDir, streamDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	dvd := sanitizeName(state.req.DVDName)
	return &menuGroup{
		title:        folderName,
		tempDir:      tempDir,
		finalDir:     finalDir,
		streamDir:    streamDir,
		streamKey:    fmt.Sprintf("%s_%s_%s", kindStream, dvd, folderName),
		transcodeKey: fmt.Sprintf("%s_%s_%s", kindTranscode, dvd, folderName),
		archiveKey:   fmt.Sprintf("%s_%s_%s", kindArchive, dvd, folderName),
		videos:       page.Videos,
	}, nil
}

func (p *Pipeline) submitStreamTask(state *buildState, menu *menuGroup, btnIdx int, vref *videoref.VideoRef) {
	buttonName := buttonFileName(btnIdx, vref.Settings.ButtonTitle)
	task := taskdef.New(menu.streamKey, func(ctx context.Context, cancelled *taskdef.CancelFlag, progress taskdef.ProgressFunc) (taskdef.Result, error) {
		var err error
		if alreadyStreamable(vref.Encoding) {
			dst := filepath.Join(menu.streamDir, buttonName+filepath.Ext(vref.Path))
			err = p.Tool.CopyFile(ctx, cancelled, vref.Path, dst)
		} else {
			_, err = p.Tool.TranscodeH26x(ctx, cancelled, vref.Path, menu.streamDir, media.H26xOptions{
				HEVC: false, HighQuality: true, Container: "mp4", OutputName: buttonName,
			})
		}
		if err != nil {
			return taskdef.Result{}, err
		}
		return taskdef.Result{Code: taskdef.CodeSuccess, Message: "stream proxy ready"}, nil
	})
	p.submit(state, task, menu.streamKey, kindStream, nil)
}

func (p *Pipeline) submitTranscodeTask(state *buildState, menu *menuGroup, btnIdx int, vref *videoref.VideoRef) {
	buttonName := buttonFileName(btnIdx, vref.Settings.ButtonTitle)
	codec := state.req.Codec
	task := taskdef.New(menu.transcodeKey, func(ctx context.Context, cancelled *taskdef.CancelFlag, progress taskdef.ProgressFunc) (taskdef.Result, error) {
		var err error
		switch codec {
		case CodecNone:
			dst := filepath.Join(menu.tempDir, buttonName+filepath.Ext(vref.Path))
			err = p.Tool.CopyFile(ctx, cancelled, vref.Path, dst)
		case CodecFFV1:
			_, err = p.Tool.TranscodeFFV1(ctx, cancelled, vref.Path, menu.tempDir, media.FFV1Options{OutputName: buttonName})
		case CodecH264AllI10:
			_, err = p.Tool.TranscodeH26x(ctx, cancelled, vref.Path, menu.tempDir, media.H26xOptions{
				HEVC: false, IFrameOnly: true, TenBit: true, Container: "mkv", OutputName: buttonName,
			})
		case CodecH265AllI10:
			_, err = p.Tool.TranscodeH26x(ctx, cancelled, vref.Path, menu.tempDir, media.H26xOptions{
				HEVC: true, IFrameOnly: true, TenBit: true, Container: "mkv", OutputName: buttonName,
			})
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownCodec, codec)
		}
		if err != nil {
			return taskdef.Result{}, err
		}
		return taskdef.Result{Code: taskdef.CodeSuccess, Message: "preservation master ready"}, nil
	})
	p.submit(state, task, menu.transcodeKey, kindTranscode, menu)
}

// submitArchiveTask implements the scheduling rule: it is only ever
// called once, from the transcode group's completion handler (spec
// §4.5: "the archive_task may start only after all transcode_tasks of
// the same menu have finished successfully").
func (p *Pipeline) submitArchiveTask(state *buildState, menu *menuGroup) {
	task := taskdef.New(menu.archiveKey, func(ctx context.Context, cancelled *taskdef.CancelFlag, progress taskdef.ProgressFunc) (taskdef.Result, error) {
		if err := p.Copier.CopyFolderIntoFolders(ctx, cancelled, menu.tempDir, state.layout.preservationRoot, menu.title, state.folderGB, state.req.HashAlgo); err != nil {
			return taskdef.Result{}, err
		}
		if err := os.RemoveAll(menu.tempDir); err != nil {
			logger.Warn("archive: failed to remove temp folder after archiving", "dir", menu.tempDir, "error", err)
		}
		return taskdef.Result{Code: taskdef.CodeSuccess, Message: "archived"}, nil
	})
	p.submit(state, task, menu.archiveKey, kindArchive, nil)
}

// submit registers task's start handler (which only counts the task as
// running) and its three terminal-event handlers (finish, error, abort
// all route to the same closure, per spec §4.2's per-event
// DispatchMethod registration) and hands it to the dispatcher. Per
// spec §5's ordering guarantee, all handlers run serialized on the
// dispatcher's single delivery goroutine, so the closure below never
// races a sibling task's handler.
func (p *Pipeline) submit(state *buildState, task *taskdef.TaskDef, groupKey, kind string, triggerMenu *menuGroup) {
	state.mu.Lock()
	if _, ok := state.groupStart[groupKey]; !ok {
		state.groupStart[groupKey] = time.Now()
	}
	state.mu.Unlock()

	if p.Metrics != nil {
		p.Metrics.observePending(groupKey)
	}

	handler := func(taskID string, payload taskdef.EventPayload) {
		switch pl := payload.(type) {
		case taskdef.StartPayload:
			if p.Metrics != nil {
				p.Metrics.observeRunning(groupKey)
			}
			return
		case taskdef.FinishPayload:
			if p.Metrics != nil {
				p.Metrics.observeCompleted(groupKey)
			}
		case taskdef.ErrorPayload:
			if p.Metrics != nil {
				p.Metrics.observeErrored(groupKey)
			}
			state.addError(pl.Message)
		case taskdef.AbortPayload:
			if p.Metrics != nil {
				p.Metrics.observeAborted(groupKey)
			}
			state.addError("cancelled: " + pl.Message)
		}

		if !p.Dispatcher.GroupComplete(groupKey) {
			return
		}

		state.mu.Lock()
		start, seen := state.groupStart[groupKey]
		state.mu.Unlock()
		if seen && p.Metrics != nil {
			p.Metrics.observeGroupLatency(groupKey, time.Since(start).Seconds())
		}

		if kind == kindTranscode && triggerMenu != nil {
			state.mu.Lock()
			already := triggerMenu.archiveSubmitted
			triggerMenu.archiveSubmitted = true
			state.mu.Unlock()
			if !already {
				p.submitArchiveTask(state, triggerMenu)
			}
		}

		p.checkBuildComplete(state)
	}

	methods := []dispatch.DispatchMethod{
		{DispatchName: "pipeline", Event: taskdef.EventStart, Handler: handler},
		{DispatchName: "pipeline", Event: taskdef.EventFinish, Handler: handler},
		{DispatchName: "pipeline", Event: taskdef.EventError, Handler: handler},
		{DispatchName: "pipeline", Event: taskdef.EventAbort, Handler: handler},
	}
	p.Dispatcher.Submit(task, methods)
}

// checkBuildComplete fires state.onComplete exactly once, once every
// menu's streaming, transcoding, and archiving groups are each complete
// (spec §4.5's completion reporting rule). An archive group whose task
// has not yet been submitted is treated as incomplete, not vacuously
// complete, since dispatcher.GroupComplete reports true for a key with
// no registered tasks at all.
func (p *Pipeline) checkBuildComplete(state *buildState) {
	state.mu.Lock()
	if state.notified {
		state.mu.Unlock()
		return
	}
	for _, menu := range state.menus {
		if !p.Dispatcher.GroupComplete(menu.streamKey) {
			state.mu.Unlock()
			return
		}
		if !p.Dispatcher.GroupComplete(menu.transcodeKey) {
			state.mu.Unlock()
			return
		}
		if !menu.archiveSubmitted || !p.Dispatcher.GroupComplete(menu.archiveKey) {
			state.mu.Unlock()
			return
		}
	}
	state.notified = true
	report := Report{DVDName: state.req.DVDName, Errors: append([]string(nil), state.errOrdered...), Failed: len(state.errOrdered) > 0}
	onComplete := state.onComplete
	menus := state.menus
	state.mu.Unlock()

	// Every group belonging to this build has reached GroupComplete, so
	// the dispatcher's per-task bookkeeping for them will never be
	// queried again (BuildProgress/GroupComplete on a forgotten prefix
	// still correctly reports "complete" via vacuous truth). Release it
	// now instead of letting it sit for the life of the daemon.
	for _, menu := range menus {
		p.Dispatcher.ForgetGroup(menu.streamKey)
		p.Dispatcher.ForgetGroup(menu.transcodeKey)
		if menu.archiveSubmitted {
			p.Dispatcher.ForgetGroup(menu.archiveKey)
		}
	}

	if onComplete != nil {
		onComplete(report)
	}
}

// ActiveBuilds returns the dvd_names with an in-flight or completed
// build still tracked in memory.
func (p *Pipeline) ActiveBuilds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.builds))
	for name := range p.builds {
		names = append(names, name)
	}
	return names
}

// BuildProgress reports how many of dvdName's task groups (three per
// menu page: streaming, transcoding, archiving) have completed, for a
// status endpoint to poll between start and the final notification.
func (p *Pipeline) BuildProgress(dvdName string) (completed, total int, ok bool) {
	p.mu.Lock()
	state, found := p.builds[dvdName]
	p.mu.Unlock()
	if !found {
		return 0, 0, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	total = len(state.menus) * 3
	for _, menu := range state.menus {
		if p.Dispatcher.GroupComplete(menu.streamKey) {
			completed++
		}
		if p.Dispatcher.GroupComplete(menu.transcodeKey) {
			completed++
		}
		if menu.archiveSubmitted && p.Dispatcher.GroupComplete(menu.archiveKey) {
			completed++
		}
	}
	return completed, total, true
}

// addError appends msg to the build's de-duplicated error list (spec
// §4.5 Failure semantics: "appends a de-duplicated error message").
func (s *buildState) addError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errSeen[msg] {
		return
	}
	s.errSeen[msg] = true
	s.errOrdered = append(s.errOrdered, msg)
}

// alreadyStreamable reports whether source encoding can be copied
// straight into the streaming proxy tree instead of transcoded (spec
// §4.5: "stream_copied if source already H.264 non-all-I"). A precise
// all-intra check needs frame-level probing this call site doesn't have
// handy; codec alone is the signal the spec names, so a non-H.264
// source always transcodes and an H.264 source is assumed stream-ready.
func alreadyStreamable(e videoref.EncodingInfo) bool {
	return e.Codec == "h264"
}
