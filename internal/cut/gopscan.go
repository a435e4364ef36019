package cut

import (
	"context"

	"github.com/gwlsn/dvdarchive/internal/media"
)

// scanWindowSeconds and maxScanWindows implement spec §4.3 step 3:
// "scan backwards from t_start in 5-second windows (≤10 windows)".
const (
	scanWindowSeconds = 5.0
	maxScanWindows     = 10
)

// openGOPError is returned when a scanned window exhibits the open-GOP
// signature: a B-frame whose packet position places it after a
// preceding I-frame but whose presentation time places it before that
// I-frame. Encoders use this to reference frames across GOP boundaries,
// which breaks the head/tail re-encode split this engine relies on.
type openGOPError struct{ path string }

func (e *openGOPError) Error() string {
	return "open GOP detected scanning " + e.path
}

// gopBounds is the result of locating the I-frames that bracket t: the
// nearest preceding I-frame (start) and nearest following I-frame (end).
type gopBounds struct {
	Start float64
	End   float64
}

// findGOPBounds scans backward and forward from t to locate the
// enclosing GOP's I-frame boundaries (spec §4.3 step 3). It returns
// openGOPError if any scanned window shows the open-GOP signature.
func findGOPBounds(ctx context.Context, tool media.Tool, path string, t float64) (gopBounds, error) {
	start, err := scanForIFrame(ctx, tool, path, t, -scanWindowSeconds)
	if err != nil {
		return gopBounds{}, err
	}
	end, err := scanForIFrame(ctx, tool, path, t, scanWindowSeconds)
	if err != nil {
		return gopBounds{}, err
	}
	return gopBounds{Start: start, End: end}, nil
}

// scanForIFrame looks for the nearest I-frame at-or-past t in the
// direction of step (negative = backward, positive = forward), probing
// successive scanWindowSeconds-wide windows until one is found or
// maxScanWindows is exhausted.
func scanForIFrame(ctx context.Context, tool media.Tool, path string, t, step float64) (float64, error) {
	backward := step < 0
	windowStart := t
	if backward {
		windowStart = t - scanWindowSeconds
	}

	for i := 0; i < maxScanWindows; i++ {
		if windowStart < 0 {
			windowStart = 0
		}
		frames, err := tool.ProbeFrames(ctx, path, windowStart, scanWindowSeconds)
		if err != nil {
			return 0, err
		}
		if detectOpenGOP(frames) {
			return 0, &openGOPError{path: path}
		}

		if found, ok := nearestIFrame(frames, t, backward); ok {
			return found, nil
		}

		if backward && windowStart == 0 {
			break
		}
		windowStart += step
	}

	// Nothing found within the scan budget: fall back to t itself so
	// callers degrade to a zero-width segment rather than failing hard.
	return t, nil
}

// nearestIFrame finds, among frames, the I-frame closest to t on the
// requested side: the latest I-frame at or before t when backward, or
// the earliest I-frame at or after t when scanning forward.
func nearestIFrame(frames []media.FrameInfo, t float64, backward bool) (float64, bool) {
	found := false
	var best float64
	for _, f := range frames {
		if f.PictType != "I" || !f.KeyFrame {
			continue
		}
		if backward {
			if f.PTSTime <= t && (!found || f.PTSTime > best) {
				best, found = f.PTSTime, true
			}
		} else {
			if f.PTSTime >= t && (!found || f.PTSTime < best) {
				best, found = f.PTSTime, true
			}
		}
	}
	return best, found
}

// allFramesIntraCoded reports whether every frame across all probed
// windows is I and key_frame == 1 — the shortcut condition in spec
// §4.3 step 4 that lets the engine skip re-encoding entirely.
func allFramesIntraCoded(windows ...[]media.FrameInfo) bool {
	seen := false
	for _, frames := range windows {
		for _, f := range frames {
			seen = true
			if f.PictType != "I" || !f.KeyFrame {
				return false
			}
		}
	}
	return seen
}

// detectOpenGOP implements spec §4.3 step 3's open-GOP signature: a
// B-frame whose packet position places it after a preceding I-frame but
// whose presentation time places it before that I-frame's. frames is
// assumed to be in file/decode order, which is what ffprobe's
// -show_frames emits and is exactly the order packet position ascends
// in.
func detectOpenGOP(frames []media.FrameInfo) bool {
	haveIFrame := false
	var lastIPTS float64
	var lastIPos int64

	for _, f := range frames {
		if f.PictType == "I" {
			lastIPTS, lastIPos, haveIFrame = f.PTSTime, f.PktPos, true
			continue
		}
		if !haveIFrame || f.PictType != "B" {
			continue
		}
		if f.PktPos > lastIPos && f.PTSTime < lastIPTS {
			return true
		}
	}
	return false
}
