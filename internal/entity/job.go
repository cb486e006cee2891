package entity

import (
	"strings"
	"time"
	"unicode/utf8"
)

type JobStatus string

const (
	StatusNone       JobStatus = "NONE"
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusLoaded     JobStatus = "LOADED"
	StatusFailed     JobStatus = "FAILED"
)

// Valid reports whether s is one of the persisted status values.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusNone, StatusPending, StatusProcessing, StatusLoaded, StatusFailed:
		return true
	}
	return false
}

// Terminal statuses are never left again by the pipeline itself.
func (s JobStatus) Terminal() bool {
	return s == StatusLoaded || s == StatusFailed
}

const (
	// FilePathSeparator joins the ordered file list into the single files column.
	FilePathSeparator = ","

	// MaxFilesChars is the width of the files column.
	MaxFilesChars = 65536

	// MaxFailureMessageBytes bounds failure_msg before it is written.
	MaxFailureMessageBytes = 4096

	SentinelFiles = "SENTINEL"
)

// EpochFloor is the watermark of the sentinel job: nothing older is ever scanned.
var EpochFloor = time.Date(2021, time.October, 9, 0, 0, 0, 0, time.UTC)

type Job struct {
	ID                 int64     `json:"id"`
	FilePaths          []string  `json:"file_paths"`
	TotalSizeBytes     int64     `json:"total_size_bytes"`
	LatestModifiedTime time.Time `json:"latest_modified_time"`
	Status             JobStatus `json:"status"`
	FailureMessage     *string   `json:"failure_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// JobDraft is a job that has been batched by the scanner but not persisted yet.
type JobDraft struct {
	FilePaths          []string
	TotalSizeBytes     int64
	LatestModifiedTime time.Time
}

// ObjectInfo describes one object discovered in the object store.
type ObjectInfo struct {
	Location     string
	ModifiedTime time.Time
	SizeBytes    int64
}

func JoinPaths(paths []string) string {
	return strings.Join(paths, FilePathSeparator)
}

func SplitPaths(files string) []string {
	if files == "" {
		return nil
	}
	return strings.Split(files, FilePathSeparator)
}

// TruncateMessage cuts msg to at most max bytes without splitting a rune.
func TruncateMessage(msg string, max int) string {
	if len(msg) <= max {
		return msg
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
