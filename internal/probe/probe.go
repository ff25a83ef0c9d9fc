package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// MediaProbe is the combined result the catalog keys its decisions on: ffprobe
// metadata plus a content hash. Full probes (cheap probe skipped) also carry
// the OS-reported size and modification time so the scanner can short-circuit
// unchanged files without reading their contents.
type MediaProbe struct {
	Codec       string
	Resolution  int
	Width       int
	Height      int
	DurationS   float64
	BitRate     int64
	SizeBytes   int64
	ModTime     int64
	ContentHash string
}

// Prober wraps an external ffprobe-compatible binary and content hashing.
type Prober struct {
	Binary string
}

// New returns a Prober that shells out to the given ffprobe-compatible binary.
func New(binary string) *Prober {
	return &Prober{Binary: binary}
}

// Full runs ffprobe and computes a SHA-256 content hash of path. This is the
// expensive probe the scanner reserves for files whose cheap (size, mtime)
// signature changed.
func (p *Prober) Full(ctx context.Context, path string) (MediaProbe, error) {
	result, err := Inspect(ctx, p.Binary, path)
	if err != nil {
		return MediaProbe{}, fmt.Errorf("probe %s: %w", path, err)
	}

	hash, size, modTime, err := hashFile(path)
	if err != nil {
		return MediaProbe{}, fmt.Errorf("hash %s: %w", path, err)
	}

	width, height := 0, 0
	if stream, ok := result.PrimaryVideoStream(); ok {
		width, height = stream.Width, stream.Height
	}

	return MediaProbe{
		Codec:       result.VideoCodec(),
		Resolution:  result.LongSideResolution(),
		Width:       width,
		Height:      height,
		DurationS:   result.DurationSeconds(),
		BitRate:     result.BitRate(),
		SizeBytes:   size,
		ModTime:     modTime,
		ContentHash: hash,
	}, nil
}

// ContentHash computes only the SHA-256 content hash of path, used when the
// worker needs to confirm a source file has not mutated mid-flight without
// paying for a full ffprobe re-inspection.
func ContentHash(path string) (string, error) {
	hash, _, _, err := hashFile(path)
	return hash, err
}

// CheapSignature reports the size and modification time of path without
// reading its contents, letting the scanner skip a full probe when neither
// has changed since the last catalog record.
func CheapSignature(path string) (size int64, modTime int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return info.Size(), info.ModTime().UnixNano(), nil
}

func hashFile(path string) (hash string, size int64, modTime int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", 0, 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	written, err := io.Copy(hasher, f)
	if err != nil {
		return "", 0, 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), written, info.ModTime().UnixNano(), nil
}
