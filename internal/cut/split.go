package cut

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gwlsn/dvdarchive/internal/taskdef"
)

// minFinalChunkSeconds is spec §4.3's "final chunk must have duration
// >= 180s" rule.
const minFinalChunkSeconds = 180.0

// SplitLarge implements CutEngine.split_large (spec §4.3): splits
// source into chunkGB-sized pieces under outDir, each produced via
// Cut against the original source so every chunk is itself frame-
// accurate and GOP-safe.
func (e *Engine) SplitLarge(ctx context.Context, cancelled *taskdef.CancelFlag, source, outDir string, chunkGB float64) ([]string, error) {
	info, err := e.Tool.Probe(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("split_large: probe %s: %w", source, err)
	}
	if !info.Valid() {
		return nil, fmt.Errorf("split_large: %s failed probe: %s", source, info.Error)
	}

	stat, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("split_large: stat %s: %w", source, err)
	}

	chunkBytes := chunkGB * (1 << 30)
	numChunks := int(float64(stat.Size())/chunkBytes + 0.999999)
	if numChunks < 1 {
		numChunks = 1
	}

	// Grow the chunk count until the final chunk's duration meets the
	// minimum, per spec §4.3's "increase chunk count and retry" rule.
	var chunkFrames int64
	for {
		chunkFrames = info.FrameCount / int64(numChunks)
		if chunkFrames <= 0 {
			chunkFrames = 1
		}
		lastChunkFrames := info.FrameCount - chunkFrames*int64(numChunks-1)
		lastChunkSeconds := float64(lastChunkFrames) / info.FrameRate.Float64()
		if lastChunkSeconds >= minFinalChunkSeconds || numChunks >= int(info.FrameCount) {
			break
		}
		numChunks++
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("split_large: create out dir: %w", err)
	}

	base := filepathStem(source)
	var chunks []string
	for i := 0; i < numChunks; i++ {
		start := chunkFrames * int64(i)
		end := start + chunkFrames
		if i == numChunks-1 || end > info.FrameCount {
			end = info.FrameCount
		}
		if start >= end {
			continue
		}

		out := filepath.Join(outDir, fmt.Sprintf("%s.part%03d%s", base, i+1, filepath.Ext(source)))
		if err := e.Cut(ctx, cancelled, CutDef{
			InputPath:  source,
			OutputPath: out,
			StartFrame: start,
			EndFrame:   end,
			Tag:        fmt.Sprintf("split-%d", i),
		}); err != nil {
			return chunks, fmt.Errorf("split_large: chunk %d: %w", i, err)
		}
		chunks = append(chunks, out)
	}

	return chunks, nil
}

func filepathStem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
