package verify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"spacesaver/internal/probe"
)

// defaultDurationTolerance is applied when Criteria.DurationTolerance is
// zero, matching spec.md §4.2's default.
const defaultDurationTolerance = 1.0

// Criteria carries the reference values a candidate output is checked
// against: the codec the worker is encoding toward, and the size/duration
// of the original file it would replace.
type Criteria struct {
	TargetCodec       string
	OriginalSizeBytes int64
	OriginalDurationS float64
	DurationTolerance float64
}

// Output probes path and reports whether it is acceptable as a
// replacement for the original under criteria, along with the probe
// result (valid even on rejection, so callers can log it) and a
// human-readable rejection reason.
func Output(ctx context.Context, prober *probe.Prober, path string, criteria Criteria) (probe.MediaProbe, bool, string) {
	mp, err := prober.Full(ctx, path)
	if err != nil {
		return probe.MediaProbe{}, false, fmt.Sprintf("unreadable: %v", err)
	}
	if !strings.EqualFold(mp.Codec, criteria.TargetCodec) {
		return mp, false, fmt.Sprintf("codec %q does not match target %q", mp.Codec, criteria.TargetCodec)
	}
	if mp.SizeBytes >= criteria.OriginalSizeBytes {
		return mp, false, fmt.Sprintf("output size %d not smaller than original %d", mp.SizeBytes, criteria.OriginalSizeBytes)
	}
	tolerance := criteria.DurationTolerance
	if tolerance <= 0 {
		tolerance = defaultDurationTolerance
	}
	if math.Abs(mp.DurationS-criteria.OriginalDurationS) > tolerance {
		return mp, false, fmt.Sprintf("duration %.3fs outside tolerance of original %.3fs", mp.DurationS, criteria.OriginalDurationS)
	}
	if !ReadableEndToEnd(path) {
		return mp, false, "not readable end to end"
	}
	return mp, true, ""
}

// ReadableEndToEnd reports whether path can be streamed to completion
// without error, a minimal guard against a truncated or otherwise
// corrupt output slipping past the metadata checks above.
func ReadableEndToEnd(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = io.Copy(io.Discard, f)
	return err == nil
}
