package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

// DiscFormat selects the archive_task's folder_size_gb default (spec
// §4.5: "folder_size_gb=4 for DVD or 25 for BD").
type DiscFormat string

const (
	FormatDVD DiscFormat = "dvd"
	FormatBD  DiscFormat = "bd"
)

func (f DiscFormat) folderSizeGB() (float64, error) {
	switch f {
	case FormatDVD:
		return 4, nil
	case FormatBD:
		return 25, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// PreservationCodec selects the preservation-master transcode (spec
// §4.5's "chosen codec: none/copy, FFV1 archival, H.264 10-bit all-I,
// H.265 10-bit all-I").
type PreservationCodec string

const (
	CodecNone       PreservationCodec = "none"
	CodecFFV1       PreservationCodec = "ffv1"
	CodecH264AllI10 PreservationCodec = "h264_10bit_ai"
	CodecH265AllI10 PreservationCodec = "h265_10bit_ai"
)

func validCodec(c PreservationCodec) error {
	switch c {
	case CodecNone, CodecFFV1, CodecH264AllI10, CodecH265AllI10:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCodec, c)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeName(s string) string {
	cleaned := unsafeNameChars.ReplaceAllString(s, "_")
	if cleaned == "" {
		return "untitled"
	}
	return cleaned
}

// menuFolderName builds the "NN_title" prefix spec §6.1 requires,
// zero-padded to width 2 for both menu and button indices.
func menuFolderName(pageIndex int, title string) string {
	return fmt.Sprintf("%02d_%s", pageIndex+1, sanitizeName(title))
}

func buttonFileName(buttonIndex int, title string) string {
	return fmt.Sprintf("%02d_%s", buttonIndex+1, sanitizeName(title))
}

// projectLayout is the set of filesystem paths spec §6.1 names for one
// project build. When archiveRoot == streamingRoot, streaming content
// nests under a STREAMING sub-folder of the archive project to avoid
// collision (spec §4.5 step 2).
type projectLayout struct {
	dvdImageDir       string
	isoImageDir       string
	preservationRoot  string // <project>/preservation_master_<codec>
	streamingRoot     string // <streaming_root>/<project> or nested STREAMING
}

func newProjectLayout(archiveRoot, streamingRoot, project string, codec PreservationCodec) projectLayout {
	projectDir := filepath.Join(archiveRoot, project)
	streamDir := filepath.Join(streamingRoot, project)
	sameRoot, err := sameDir(archiveRoot, streamingRoot)
	if err == nil && sameRoot {
		streamDir = filepath.Join(projectDir, "STREAMING")
	}
	return projectLayout{
		dvdImageDir:      filepath.Join(projectDir, "dvd_image"),
		isoImageDir:      filepath.Join(projectDir, "iso_image"),
		preservationRoot: filepath.Join(projectDir, "preservation_master_"+string(codec)),
		streamingRoot:    streamDir,
	}
}

func sameDir(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}

// validateRoots checks spec §4.5 step 1's preconditions, all of which
// fail fast before any task is submitted. The archive and streaming
// roots are created here if missing; failing to create one is reported
// as ErrRootNotWritable.
func validateRoots(req BuildRequest) error {
	if info, err := os.Stat(req.DVDSourceFolder); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceMissing, req.DVDSourceFolder)
	}
	if info, err := os.Stat(req.ISOSourceFolder); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrISOSourceMissing, req.ISOSourceFolder)
	}
	for _, root := range []string{req.ArchiveRoot, req.StreamingRoot} {
		if err := os.MkdirAll(root, 0755); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrRootNotWritable, root, err)
		}
	}
	if err := validCodec(req.Codec); err != nil {
		return err
	}
	if _, err := req.DiscFormat.folderSizeGB(); err != nil {
		return err
	}
	return nil
}

// prepareProject creates (or purges then creates) the project folders,
// per spec §4.5 steps 2-3.
func prepareProject(layout projectLayout, overwrite bool) error {
	projectRoots := []string{layout.dvdImageDir, layout.isoImageDir, layout.preservationRoot, layout.streamingRoot}

	if !overwrite {
		for _, p := range projectRoots {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%w: %s", ErrProjectExists, p)
			}
		}
	} else {
		for _, p := range projectRoots {
			if err := os.RemoveAll(p); err != nil {
				return fmt.Errorf("archive: purge %s: %w", p, err)
			}
		}
	}

	for _, p := range projectRoots {
		if err := os.MkdirAll(p, 0755); err != nil {
			return fmt.Errorf("archive: create %s: %w", p, err)
		}
	}
	return nil
}

// copyTree recursively copies src into dst (spec §4.5 step 4's "copy
// DVD image and ISO"). Plain structural copy, not the checksum-verified
// VideoFileCopier pipeline: the DVD/ISO source trees are copied intact
// as a unit, not split or deduplicated by creation time.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFileContents(path, target, info.Mode())
	})
}

func copyFileContents(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
