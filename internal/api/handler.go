package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/julienschmidt/httprouter"

	"github.com/gwlsn/dvdarchive/internal/archive"
	"github.com/gwlsn/dvdarchive/internal/config"
	"github.com/gwlsn/dvdarchive/internal/copier"
	"github.com/gwlsn/dvdarchive/internal/dispatch"
	"github.com/gwlsn/dvdarchive/internal/editstore"
	"github.com/gwlsn/dvdarchive/internal/ingest"
	"github.com/gwlsn/dvdarchive/internal/logger"
	"github.com/gwlsn/dvdarchive/internal/videoref"
)

// Handler wires the HTTP surface to the core components: the archive
// pipeline (build submission/status), the dispatcher (cancellation),
// the ingestor (VideoRef probing for build requests), and the edit
// store. Grounded on the teacher's Handler (a plain struct of
// component pointers constructed once in main and threaded into every
// endpoint), generalized from shrinkray's single-queue job API to this
// domain's build/task/edit surface.
type Handler struct {
	Pipeline   *archive.Pipeline
	Dispatcher *dispatch.Dispatcher
	EditStore  *editstore.Store
	Ingestor   *ingest.Ingestor
	Notifier   *Notifier
	Config     *config.Config

	mu      sync.Mutex
	reports map[string]archive.Report
}

// NewHandler constructs a Handler. Any of EditStore/Ingestor/Notifier
// may be nil in a test harness that doesn't exercise that surface.
func NewHandler(pipeline *archive.Pipeline, d *dispatch.Dispatcher, store *editstore.Store, ing *ingest.Ingestor, notifier *Notifier, cfg *config.Config) *Handler {
	return &Handler{
		Pipeline:   pipeline,
		Dispatcher: d,
		EditStore:  store,
		Ingestor:   ing,
		Notifier:   notifier,
		Config:     cfg,
		reports:    make(map[string]archive.Report),
	}
}

// --- build submission -------------------------------------------------

type buttonRequest struct {
	Path        string `json:"path"`
	ButtonTitle string `json:"button_title"`
}

type menuPageRequest struct {
	Title   string          `json:"title"`
	Buttons []buttonRequest `json:"buttons"`
}

// buildRequest is the wire shape for POST /api/builds: the GUI's build
// request (spec §2: "a menu layout (Menu -> [VideoRef])") expressed as
// plain file paths, since VideoRef probing (internal/ingest) happens
// server-side.
type buildRequest struct {
	DVDName           string            `json:"dvd_name"`
	DVDSourceFolder   string            `json:"dvd_source_folder"`
	ISOSourceFolder   string            `json:"iso_source_folder"`
	ArchiveRoot       string            `json:"archive_root"`
	StreamingRoot     string            `json:"streaming_root"`
	OverwriteExisting bool              `json:"overwrite_existing"`
	Codec             string            `json:"codec"`
	DiscFormat        string            `json:"disc_format"`
	HashAlgo          string            `json:"hash_algo"`
	MenuLayout        []menuPageRequest `json:"menu_layout"`
}

type rejectedPath struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type buildAcceptedResponse struct {
	DVDName  string         `json:"dvd_name"`
	Rejected []rejectedPath `json:"rejected,omitempty"`
}

// CreateBuild handles POST /api/builds: ingests every referenced
// source file, assembles the MenuLayout, and submits the build to the
// pipeline. A per-file probe rejection (spec §6.4) does not fail the
// whole request — it's reported back alongside the accepted build.
func (h *Handler) CreateBuild(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	layout, rejected, err := h.buildMenuLayout(r.Context(), req.MenuLayout)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	archiveRoot := firstNonEmpty(req.ArchiveRoot, h.Config.ArchiveRoot)
	streamingRoot := firstNonEmpty(req.StreamingRoot, h.Config.StreamingRoot)
	codec := archive.PreservationCodec(firstNonEmpty(req.Codec, "none"))
	discFormat := archive.DiscFormat(firstNonEmpty(req.DiscFormat, h.Config.DefaultDiscFormat))
	hashAlgo := copier.Algo(firstNonEmpty(req.HashAlgo, h.Config.DefaultHashAlgo))

	buildReq := archive.BuildRequest{
		DVDName:           req.DVDName,
		DVDSourceFolder:   req.DVDSourceFolder,
		ISOSourceFolder:   req.ISOSourceFolder,
		ArchiveRoot:       archiveRoot,
		StreamingRoot:     streamingRoot,
		MenuLayout:        layout,
		OverwriteExisting: req.OverwriteExisting,
		Codec:             codec,
		DiscFormat:        discFormat,
		HashAlgo:          hashAlgo,
	}

	if h.Notifier != nil {
		h.Notifier.Info(fmt.Sprintf("build %q submitted", req.DVDName))
	}

	if err := h.Pipeline.Build(r.Context(), buildReq, h.onBuildComplete(req.DVDName)); err != nil {
		if h.Notifier != nil {
			h.Notifier.Error(fmt.Sprintf("build %q failed to start: %v", req.DVDName, err))
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, buildAcceptedResponse{DVDName: req.DVDName, Rejected: rejected})
}

func (h *Handler) buildMenuLayout(ctx context.Context, pages []menuPageRequest) (videoref.MenuLayout, []rejectedPath, error) {
	if h.Ingestor == nil {
		return videoref.MenuLayout{}, nil, fmt.Errorf("api: no ingestor configured")
	}
	var layout videoref.MenuLayout
	var rejected []rejectedPath
	for _, page := range pages {
		var videos []*videoref.VideoRef
		for _, btn := range page.Buttons {
			ref, err := h.Ingestor.IngestFile(ctx, btn.Path)
			if err != nil {
				rejected = append(rejected, rejectedPath{Path: btn.Path, Reason: err.Error()})
				continue
			}
			ref.Settings.ButtonTitle = firstNonEmpty(btn.ButtonTitle, ref.Settings.ButtonTitle)
			videos = append(videos, ref)
		}
		layout.Pages = append(layout.Pages, videoref.MenuPage{Title: page.Title, Videos: videos})
	}
	return layout, rejected, nil
}

// onBuildComplete is the pipeline's single aggregated notification
// callback (spec §4.5): it stashes the report for later polling and
// publishes it over the Notifier.
func (h *Handler) onBuildComplete(dvdName string) func(archive.Report) {
	return func(report archive.Report) {
		h.mu.Lock()
		h.reports[dvdName] = report
		h.mu.Unlock()

		if h.Notifier == nil {
			return
		}
		if report.Failed {
			h.Notifier.Error(fmt.Sprintf("build %q finished with %d error(s): %v", dvdName, len(report.Errors), report.Errors))
		} else {
			h.Notifier.Message(fmt.Sprintf("build %q finished successfully", dvdName))
		}
	}
}

// ListBuilds handles GET /api/builds.
func (h *Handler) ListBuilds(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, h.Pipeline.ActiveBuilds())
}

type buildStatusResponse struct {
	DVDName   string          `json:"dvd_name"`
	Completed int             `json:"completed_groups"`
	Total     int             `json:"total_groups"`
	Report    *archive.Report `json:"report,omitempty"`
}

// BuildStatus handles GET /api/builds/:name.
func (h *Handler) BuildStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	completed, total, ok := h.Pipeline.BuildProgress(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no build named %q", name))
		return
	}

	resp := buildStatusResponse{DVDName: name, Completed: completed, Total: total}
	h.mu.Lock()
	if report, ok := h.reports[name]; ok {
		resp.Report = &report
	}
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// --- task cancellation --------------------------------------------------

// CancelTask handles POST /api/tasks/:id/cancel.
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !h.Dispatcher.Cancel(id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown task %q", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// CancelPrefix handles POST /api/prefixes/:prefix/cancel.
func (h *Handler) CancelPrefix(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	n := h.Dispatcher.CancelByPrefix(ps.ByName("prefix"))
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}

// --- edit store -----------------------------------------------------

// ReadEdits handles GET /api/edits?path=...&project=....
func (h *Handler) ReadEdits(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	path := r.URL.Query().Get("path")
	project := r.URL.Query().Get("project")
	cuts, err := h.EditStore.Read(path, project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cuts)
}

type writeEditsRequest struct {
	Cuts []videoref.EditCut `json:"cuts"`
}

// WriteEdits handles PUT /api/edits?path=...&project=....
func (h *Handler) WriteEdits(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	path := r.URL.Query().Get("path")
	project := r.URL.Query().Get("project")

	var body writeEditsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if err := validateCuts(body.Cuts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.EditStore.Write(path, project, body.Cuts); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "written"})
}

// DeleteEdits handles DELETE /api/edits?path=...&project=....
func (h *Handler) DeleteEdits(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	path := r.URL.Query().Get("path")
	project := r.URL.Query().Get("project")
	if err := h.EditStore.Delete(path, project); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PromoteEdits handles POST /api/edits/promote?path=...&project=...&combine=true.
func (h *Handler) PromoteEdits(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	path := r.URL.Query().Get("path")
	project := r.URL.Query().Get("project")
	combine, _ := strconv.ParseBool(r.URL.Query().Get("combine"))
	if err := h.EditStore.Promote(path, project, combine); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "promoted"})
}

// EditVisibility handles GET /api/edits/visibility?path=...&project=....
func (h *Handler) EditVisibility(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	path := r.URL.Query().Get("path")
	project := r.URL.Query().Get("project")
	vis, err := h.EditStore.Visibility(path, project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"visibility": vis})
}

// validateCuts checks the ordering invariant from spec §3 (0 <= mark_in
// < mark_out) for every cut in the list. The upper bound against
// frame_count is not checked: neither this handler nor the edit store
// probes the file, and ingest does not read edit cuts.
func validateCuts(cuts []videoref.EditCut) error {
	for _, c := range cuts {
		if !(c.MarkInFrame >= 0 && c.MarkInFrame < c.MarkOutFrame) {
			return fmt.Errorf("%w: need 0 <= %d < %d", videoref.ErrInvalidCut, c.MarkInFrame, c.MarkOutFrame)
		}
	}
	return nil
}

// --- helpers -------------------------------------------------------

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("api: failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
