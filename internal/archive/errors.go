package archive

import "errors"

// Sentinel errors for preflight/planning failures (spec §4.5 step 1-3),
// all of which must short-circuit before any task is submitted.
var (
	ErrSourceMissing    = errors.New("archive: source folder does not exist")
	ErrISOSourceMissing = errors.New("archive: iso source folder does not exist")
	ErrRootNotWritable  = errors.New("archive: root is not writeable")
	ErrProjectExists    = errors.New("archive: project folder already exists")
	ErrUnknownCodec     = errors.New("archive: unknown preservation codec")
	ErrUnknownFormat    = errors.New("archive: unknown disc format")
)
