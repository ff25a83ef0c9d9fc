package catalog

import (
	"time"
)

const entryColumns = "id, path, content_hash, size_bytes, mod_time, codec, width, height, bitrate_bps, duration_s, category, state, attempts, last_error, workdir_path, pre_hash, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id         string
		path       string
		hash       string
		size       int64
		modTime    int64
		codec      string
		width      int
		height     int
		bitrate    int64
		duration   float64
		category   string
		state      string
		attempts   int
		lastError  string
		workdir    string
		preHash    string
		updatedRaw string
	)

	if err := scanner.Scan(
		&id, &path, &hash, &size, &modTime, &codec, &width, &height, &bitrate, &duration,
		&category, &state, &attempts, &lastError, &workdir, &preHash, &updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:          id,
		Path:        path,
		ContentHash: hash,
		SizeBytes:   size,
		ModTime:     modTime,
		Codec:       codec,
		Width:       width,
		Height:      height,
		BitrateBPS:  bitrate,
		DurationS:   duration,
		Category:    Category(category),
		State:       State(state),
		Attempts:    attempts,
		LastError:   lastError,
		WorkdirPath: workdir,
		PreHash:     preHash,
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
