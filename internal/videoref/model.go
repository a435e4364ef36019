// Package videoref holds the data model shared across the archive
// pipeline and cut engine: VideoRef/EncodingInfo (spec §3), the
// frame-rate/standard/aspect-ratio acceptance rules (spec §6.4), and the
// menu layout the GUI hands the pipeline.
package videoref

import (
	"errors"
	"fmt"
)

// ScanType describes whether a video is progressive or interlaced.
type ScanType string

const (
	ScanProgressive ScanType = "progressive"
	ScanInterlaced  ScanType = "interlaced"
)

// ScanOrder describes field order for interlaced content.
type ScanOrder string

const (
	ScanOrderTFF  ScanOrder = "tff"
	ScanOrderBFF  ScanOrder = "bff"
	ScanOrderNone ScanOrder = "n/a"
)

// Standard is the broadcast standard implied by frame rate (spec §3
// invariant).
type Standard string

const (
	StandardPAL     Standard = "PAL"
	StandardNTSC    Standard = "NTSC"
	StandardUnknown Standard = ""
)

// AspectRatio is one of the two accepted display aspect ratios (spec
// §6.4).
type AspectRatio string

const (
	Aspect4x3  AspectRatio = "4:3"
	Aspect16x9 AspectRatio = "16:9"
)

// EncodingInfo is the cached probe result attached to a VideoRef.
// Error is empty iff the ref is valid; a non-empty Error means the
// other fields may be incomplete and the ref must be rejected at grid
// ingest (spec §6.4).
type EncodingInfo struct {
	Width          int
	Height         int
	FrameRate      Rational
	FrameCount     int64
	Duration       float64 // seconds
	Codec          string
	PixelFormat    string
	ScanType       ScanType
	ScanOrder      ScanOrder
	Standard       Standard
	Bitrate        int64
	AspectRatio    AspectRatio
	PAR            Rational
	DAR            Rational
	AudioTracks    int
	AudioCodec     string
	AudioChannels  int
	AudioSampleRate int
	AudioBitrate   int64
	Error          string
}

// Valid reports whether the probe succeeded.
func (e *EncodingInfo) Valid() bool { return e != nil && e.Error == "" }

// StandardFor returns the broadcast standard implied by fr, or
// StandardUnknown if fr is not one of the accepted rates (spec §3:
// "standard = PAL iff frame_rate in {25,50}; NTSC iff frame_rate in
// {30000/1001, 60000/1001, 30}; otherwise the ref is rejected").
func StandardFor(fr Rational) Standard {
	switch {
	case fr.Cmp(FrameRate25) == 0, fr.Cmp(FrameRate50) == 0:
		return StandardPAL
	case fr.Cmp(FrameRate30000) == 0, fr.Cmp(FrameRate60000) == 0, fr.Cmp(FrameRate30) == 0:
		return StandardNTSC
	default:
		return StandardUnknown
	}
}

// ValidateEncodingInfo checks the spec §3 invariants against a freshly
// probed EncodingInfo and returns a human-readable rejection reason, or
// nil if the ref is acceptable.
func ValidateEncodingInfo(e *EncodingInfo) error {
	if e.Error != "" {
		return fmt.Errorf("probe error: %s", e.Error)
	}
	if !IsAcceptedFrameRate(e.FrameRate) {
		return fmt.Errorf("unsupported frame rate %s: accepted rates are 25, 30000/1001, 50, 60000/1001, 30", e.FrameRate)
	}
	if e.AspectRatio != Aspect4x3 && e.AspectRatio != Aspect16x9 {
		return fmt.Errorf("unsupported aspect ratio %q: accepted ratios are 4:3 and 16:9", e.AspectRatio)
	}
	std := StandardFor(e.FrameRate)
	if std == StandardUnknown {
		return fmt.Errorf("frame rate %s does not map to PAL or NTSC", e.FrameRate)
	}
	if e.ScanType == ScanInterlaced {
		if e.ScanOrder != ScanOrderTFF && e.ScanOrder != ScanOrderBFF {
			return fmt.Errorf("interlaced video must have scan_order tff or bff, got %q", e.ScanOrder)
		}
	}
	frLow := e.FrameRate.Float64()*e.Duration - 1
	frHigh := e.FrameRate.Float64()*e.Duration + 1
	if float64(e.FrameCount) < frLow || float64(e.FrameCount) > frHigh {
		return fmt.Errorf("frame_count %d inconsistent with duration %.3fs at %s fps", e.FrameCount, e.Duration, e.FrameRate)
	}
	return nil
}

// VideoFileSettings holds per-VideoRef GUI-set fields that are not
// derived from probing.
type VideoFileSettings struct {
	FilterToggles    map[string]bool
	ButtonTitle      string
	MenuButtonFrame  int64
	MenuGroup        string
}

// VideoRef is a single source video known to the archive pipeline.
type VideoRef struct {
	ID       string
	Path     string
	Encoding EncodingInfo
	Settings VideoFileSettings
}

// EditCut is one in/out mark pair (spec §3). mark_in_frame <
// mark_out_frame <= frame_count is enforced by NewEditCut.
type EditCut struct {
	MarkInFrame  int64
	MarkOutFrame int64
	ClipName     string
}

var ErrInvalidCut = errors.New("invalid edit cut")

// NewEditCut validates and constructs an EditCut against frameCount.
func NewEditCut(markIn, markOut int64, clipName string, frameCount int64) (EditCut, error) {
	if !(0 <= markIn && markIn < markOut && markOut <= frameCount) {
		return EditCut{}, fmt.Errorf("%w: need 0 <= %d < %d <= %d", ErrInvalidCut, markIn, markOut, frameCount)
	}
	return EditCut{MarkInFrame: markIn, MarkOutFrame: markOut, ClipName: clipName}, nil
}

// EditList is the per-path collection of global and per-project cuts
// (spec §3/§4.6). A project override, when present and non-empty,
// completely shadows GlobalCuts for that project.
type EditList struct {
	GlobalCuts  []EditCut
	ProjectCuts map[string][]EditCut
}

// MenuPage is one DVD menu page: an ordered list of buttons (videos).
// The i-th page (0-indexed here) defines DVD menu page i+1 (spec §3).
type MenuPage struct {
	Title  string
	Videos []*VideoRef
}

// MenuLayout is the ordered sequence of menu pages the GUI hands to the
// archive pipeline.
type MenuLayout struct {
	Pages []MenuPage
}
