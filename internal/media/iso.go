package media

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MakeISO builds a DVD-Video ISO image from inDir via genisoimage/mkisofs.
// The archive pipeline's archive task does not call it.
// ISO authoring tools occasionally fail transiently against slow or
// network-backed storage, so the call is wrapped in a short exponential
// backoff per SPEC_FULL.md's domain-stack wiring of
// github.com/cenkalti/backoff/v4 — grounded on livepeer-catalyst-api's
// use of the same library, not on anything in the teacher (shrinkray's
// hwaccel.go has no retry logic at all).
func (t *FFTool) MakeISO(ctx context.Context, inDir, outISO string) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 2 * time.Minute
	b := backoff.WithContext(backoff.WithMaxRetries(policy, 2), ctx)

	return backoff.Retry(func() error {
		args := []string{
			"-dvd-video", "-V", "DVD_ARCHIVE",
			"-o", outISO,
			inDir,
		}
		res, err := runExternal(ctx, nil, t.ISOTool, args)
		if cerr := resultToErr(res, err, "iso authoring"); cerr != nil {
			if IsKind(cerr, KindCancelled) {
				return backoff.Permanent(cerr)
			}
			return cerr
		}
		return nil
	}, b)
}
