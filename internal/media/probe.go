package media

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gwlsn/dvdarchive/internal/videoref"
)

// ffprobeFormat/ffprobeStream/ffprobeOutput mirror the teacher's
// internal/ffmpeg probe.go shapes, extended with the fields this domain
// needs (display_aspect_ratio, sample_aspect_ratio, field_order) that
// shrinkray's transcode-only probe never looked at.
type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index              int    `json:"index"`
	CodecType          string `json:"codec_type"`
	CodecName          string `json:"codec_name"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	RFrameRate         string `json:"r_frame_rate"`
	AvgFrameRate       string `json:"avg_frame_rate"`
	PixelFormat        string `json:"pix_fmt"`
	NbFrames           string `json:"nb_frames"`
	BitRate            string `json:"bit_rate"`
	DisplayAspectRatio string `json:"display_aspect_ratio"`
	SampleAspectRatio  string `json:"sample_aspect_ratio"`
	FieldOrder         string `json:"field_order"` // "progressive", "tt" (tff), "bb" (bff)
	ChannelLayout      string `json:"channel_layout"`
	Channels           int    `json:"channels"`
	SampleRate         string `json:"sample_rate"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat    `json:"format"`
	Streams []ffprobeStream  `json:"streams"`
}

// FFTool is the concrete MediaTool backed by ffprobe/ffmpeg/genisoimage,
// grounded on the teacher's internal/ffmpeg.Prober/Transcoder.
type FFTool struct {
	FFmpegPath  string
	FFprobePath string
	ISOTool     string // genisoimage or mkisofs
}

// NewFFTool constructs an FFTool with the given binary paths.
func NewFFTool(ffmpegPath, ffprobePath, isoTool string) *FFTool {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if isoTool == "" {
		isoTool = "genisoimage"
	}
	return &FFTool{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, ISOTool: isoTool}
}

func (t *FFTool) Probe(ctx context.Context, path string) (*videoref.EncodingInfo, error) {
	cmd := exec.CommandContext(ctx, t.FFprobePath,
		"-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, newError(KindToolFailure, "ffprobe failed", err)
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return nil, newError(KindToolFailure, "failed to parse ffprobe output", err)
	}

	info := &videoref.EncodingInfo{}
	if probed.Format.Duration != "" {
		d, _ := strconv.ParseFloat(probed.Format.Duration, 64)
		info.Duration = d
	}
	if probed.Format.BitRate != "" {
		br, _ := strconv.ParseInt(probed.Format.BitRate, 10, 64)
		info.Bitrate = br
	}

	for i := range probed.Streams {
		s := &probed.Streams[i]
		switch s.CodecType {
		case "video":
			if info.Codec == "" {
				info.Codec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
				info.PixelFormat = s.PixelFormat
				info.FrameRate = parseRational(s.RFrameRate)
				if info.FrameRate.Den == 0 {
					info.FrameRate = parseRational(s.AvgFrameRate)
				}
				if n, err := strconv.ParseInt(s.NbFrames, 10, 64); err == nil {
					info.FrameCount = n
				} else if info.FrameRate.Den != 0 {
					info.FrameCount = int64(info.Duration*info.FrameRate.Float64() + 0.5)
				}
				info.AspectRatio = classifyAspect(s.DisplayAspectRatio)
				info.PAR = parseRational(s.SampleAspectRatio)
				info.DAR = parseRational(s.DisplayAspectRatio)
				info.ScanType, info.ScanOrder = classifyScan(s.FieldOrder)
				if info.FrameRate.Den != 0 {
					info.Standard = videoref.StandardFor(info.FrameRate)
				}
			}
		case "audio":
			info.AudioTracks++
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
				info.AudioChannels = s.Channels
				if sr, err := strconv.Atoi(s.SampleRate); err == nil {
					info.AudioSampleRate = sr
				}
				if br, err := strconv.ParseInt(s.BitRate, 10, 64); err == nil {
					info.AudioBitrate = br
				}
			}
		}
	}

	if info.Codec == "" {
		info.Error = "no video stream found"
	}
	return info, nil
}

// parseRational parses an ffprobe "N/D" string into a Rational. Returns
// the zero value (Den 0) if unparseable, which callers treat as
// "unknown" rather than guessing.
func parseRational(s string) videoref.Rational {
	if s == "" || s == "0/0" || s == "N/A" {
		return videoref.Rational{}
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		parts = strings.SplitN(s, "/", 2)
	}
	if len(parts) != 2 {
		return videoref.Rational{}
	}
	num, err1 := strconv.ParseInt(parts[0], 10, 64)
	den, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || den == 0 {
		return videoref.Rational{}
	}
	return videoref.NewRational(num, den)
}

func classifyAspect(dar string) videoref.AspectRatio {
	switch strings.TrimSpace(dar) {
	case "4:3":
		return videoref.Aspect4x3
	case "16:9":
		return videoref.Aspect16x9
	default:
		return ""
	}
}

func classifyScan(fieldOrder string) (videoref.ScanType, videoref.ScanOrder) {
	switch fieldOrder {
	case "tt", "tb":
		return videoref.ScanInterlaced, videoref.ScanOrderTFF
	case "bb", "bt":
		return videoref.ScanInterlaced, videoref.ScanOrderBFF
	case "progressive", "":
		return videoref.ScanProgressive, videoref.ScanOrderNone
	default:
		return videoref.ScanProgressive, videoref.ScanOrderNone
	}
}

// ffprobeFrame mirrors the frame-level fields probe_frames needs (spec
// §4.7).
type ffprobeFrame struct {
	PictType      string `json:"pict_type"`
	KeyFrame      int    `json:"key_frame"`
	PTS           int64  `json:"pts"`
	PTSTime       string `json:"pts_time"`
	PktPos        string `json:"pkt_pos"`
	InterlacedFrame int  `json:"interlaced_frame"`
	TopFieldFirst int    `json:"top_field_first"`
}

type ffprobeFramesOutput struct {
	Frames []ffprobeFrame `json:"frames"`
}

func (t *FFTool) ProbeFrames(ctx context.Context, path string, startSecond, windowSeconds float64) ([]FrameInfo, error) {
	interval := formatInterval(startSecond, windowSeconds)
	cmd := exec.CommandContext(ctx, t.FFprobePath,
		"-v", "quiet", "-print_format", "json",
		"-select_streams", "v:0",
		"-show_entries", "frame=pict_type,key_frame,pts,pts_time,pkt_pos,interlaced_frame,top_field_first",
		"-read_intervals", interval,
		path)
	out, err := cmd.Output()
	if err != nil {
		return nil, newError(KindToolFailure, "ffprobe frame scan failed", err)
	}

	var parsed ffprobeFramesOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, newError(KindToolFailure, "failed to parse ffprobe frame output", err)
	}

	frames := make([]FrameInfo, 0, len(parsed.Frames))
	for _, f := range parsed.Frames {
		ptsTime, _ := strconv.ParseFloat(f.PTSTime, 64)
		pktPos, _ := strconv.ParseInt(f.PktPos, 10, 64)
		frames = append(frames, FrameInfo{
			PictType:      f.PictType,
			KeyFrame:      f.KeyFrame == 1,
			PTS:           f.PTS,
			PTSTime:       ptsTime,
			PktPos:        pktPos,
			Interlaced:    f.InterlacedFrame == 1,
			TopFieldFirst: f.TopFieldFirst == 1,
		})
	}
	return frames, nil
}

func formatInterval(start, window float64) string {
	return strconv.FormatFloat(start, 'f', 6, 64) + "%+" + strconv.FormatFloat(window, 'f', 6, 64)
}
