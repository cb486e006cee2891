package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"s3-etl-pipeline/internal/entity"
)

type apiError struct {
	Message string `json:"message"`
}

type jobResp struct {
	ID                 int64            `json:"id"`
	Files              []string         `json:"files"`
	TotalSizeBytes     int64            `json:"total_size_bytes"`
	LatestModifiedTime string           `json:"latest_modified_time"`
	Status             entity.JobStatus `json:"status"`
	FailureMessage     *string          `json:"failure_message,omitempty"`
	CreatedAt          string           `json:"created_at"`
	UpdatedAt          string           `json:"updated_at"`
}

type watermarkResp struct {
	Watermark string `json:"watermark"`
}

func toJobResp(j *entity.Job) jobResp {
	return jobResp{
		ID:                 j.ID,
		Files:              j.FilePaths,
		TotalSizeBytes:     j.TotalSizeBytes,
		LatestModifiedTime: j.LatestModifiedTime.UTC().Format(time.RFC3339),
		Status:             j.Status,
		FailureMessage:     j.FailureMessage,
		CreatedAt:          j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          j.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}
