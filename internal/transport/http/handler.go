package httptransport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"s3-etl-pipeline/internal/entity"
	"s3-etl-pipeline/internal/repository/postgresql"
	"s3-etl-pipeline/internal/service"
)

type Handler struct {
	jobSvc *service.JobService
	log    *zap.Logger
}

func NewHandler(jobSvc *service.JobService, log *zap.Logger) *Handler {
	return &Handler{jobSvc: jobSvc, log: log.Named("http")}
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeErr(w, http.StatusInternalServerError, "internal error")
}

// GetWatermark godoc
// @Summary Current watermark
// @Description Max latest_modified_time over all jobs, the sentinel and failed jobs included.
// @Tags pipeline
// @Produce json
// @Success 200 {object} watermarkResp
// @Failure 500 {object} apiError
// @Router /watermark [get]
func (h *Handler) GetWatermark(w http.ResponseWriter, r *http.Request) {
	wm, err := h.jobSvc.Watermark(r.Context())
	if err != nil {
		h.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, watermarkResp{Watermark: wm.UTC().Format(time.RFC3339Nano)})
}

// ListJobs godoc
// @Summary List jobs, newest first
// @Tags jobs
// @Produce json
// @Param status query string false "NONE, PENDING, PROCESSING, LOADED or FAILED"
// @Param limit query int false "max rows (default 50, max 500)"
// @Success 200 {array} jobResp
// @Failure 400 {object} apiError
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	req := service.ListJobsRequest{Status: entity.JobStatus(r.URL.Query().Get("status"))}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = n
	}

	jobs, err := h.jobSvc.ListJobs(r.Context(), req)
	if errors.Is(err, service.ErrInvalidStatus) {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.internal(w, r, err)
		return
	}

	out := make([]jobResp, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResp(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// JobStats godoc
// @Summary Job count per status
// @Tags jobs
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /jobs/stats [get]
func (h *Handler) JobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobSvc.Stats(r.Context())
	if err != nil {
		h.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Param id path int true "job id"
// @Success 200 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if errors.Is(err, postgresql.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResp(j))
}

// ResetJob godoc
// @Summary Return a stuck job to the queue
// @Description Moves a job left in PROCESSING by a crashed loader back to PENDING.
// @Tags jobs
// @Param id path int true "job id"
// @Success 204
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/reset [post]
func (h *Handler) ResetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	err := h.jobSvc.ResetStuckJob(r.Context(), id)
	switch {
	case errors.Is(err, postgresql.ErrNotFound):
		writeErr(w, http.StatusNotFound, "job not found")
	case errors.Is(err, postgresql.ErrInvalidTransition):
		writeErr(w, http.StatusConflict, "job is not PROCESSING")
	case err != nil:
		h.internal(w, r, err)
	default:
		h.log.Info("job reset to pending", zap.Int64("job_id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}

func jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
