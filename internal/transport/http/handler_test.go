package httptransport_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"s3-etl-pipeline/internal/entity"
	"s3-etl-pipeline/internal/repository/postgresql"
	"s3-etl-pipeline/internal/service"
	httptransport "s3-etl-pipeline/internal/transport/http"
)

// ---- fakes ----

type repoWithJobs struct {
	jobs      map[int64]*entity.Job
	lastLimit int
	failAll   error
}

func (r *repoWithJobs) GetByID(ctx context.Context, id int64) (*entity.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, postgresql.ErrNotFound
	}
	return j, nil
}

func (r *repoWithJobs) List(ctx context.Context, status entity.JobStatus, limit int) ([]entity.Job, error) {
	r.lastLimit = limit
	if r.failAll != nil {
		return nil, r.failAll
	}
	var out []entity.Job
	for id := int64(len(r.jobs) + 10); id > 0; id-- {
		j, ok := r.jobs[id]
		if ok && (status == "" || j.Status == status) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (r *repoWithJobs) CountByStatus(ctx context.Context) (map[entity.JobStatus]int64, error) {
	out := map[entity.JobStatus]int64{}
	for _, j := range r.jobs {
		out[j.Status]++
	}
	return out, nil
}

func (r *repoWithJobs) Watermark(ctx context.Context) (time.Time, error) {
	wm := entity.EpochFloor
	for _, j := range r.jobs {
		if j.LatestModifiedTime.After(wm) {
			wm = j.LatestModifiedTime
		}
	}
	return wm, nil
}

func (r *repoWithJobs) ResetToPending(ctx context.Context, id int64) error {
	j, ok := r.jobs[id]
	if !ok {
		return postgresql.ErrNotFound
	}
	if j.Status != entity.StatusProcessing {
		return postgresql.ErrInvalidTransition
	}
	j.Status = entity.StatusPending
	return nil
}

// ---- helpers ----

func seededRepo() *repoWithJobs {
	msg := "read s3://landing/2021/10/09/01/b.csv: object store: transient failure"
	return &repoWithJobs{jobs: map[int64]*entity.Job{
		1: {ID: 1, FilePaths: []string{entity.SentinelFiles}, LatestModifiedTime: entity.EpochFloor, Status: entity.StatusLoaded},
		2: {ID: 2, FilePaths: []string{"s3://landing/2021/10/09/01/a.csv"}, TotalSizeBytes: 120,
			LatestModifiedTime: entity.EpochFloor.Add(time.Hour), Status: entity.StatusProcessing},
		3: {ID: 3, FilePaths: []string{"s3://landing/2021/10/09/01/b.csv"}, TotalSizeBytes: 80,
			LatestModifiedTime: entity.EpochFloor.Add(2 * time.Hour), Status: entity.StatusFailed, FailureMessage: &msg},
	}}
}

func newTestRouter(repo service.JobRepository) http.Handler {
	svc := service.NewJobService(repo)
	h := httptransport.NewHandler(svc, zap.NewNop())
	return httptransport.Routes(h)
}

func do(router http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// ---- tests ----

func TestHTTP_GetJob_200(t *testing.T) {
	router := newTestRouter(seededRepo())

	rr := do(router, http.MethodGet, "/jobs/3")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		ID             int64    `json:"id"`
		Files          []string `json:"files"`
		Status         string   `json:"status"`
		FailureMessage *string  `json:"failure_message"`
		LatestModified string   `json:"latest_modified_time"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v, body=%s", err, rr.Body.String())
	}
	if resp.ID != 3 || resp.Status != "FAILED" {
		t.Fatalf("unexpected job %+v", resp)
	}
	if resp.FailureMessage == nil || !strings.Contains(*resp.FailureMessage, "transient") {
		t.Fatalf("expected failure message, got %v", resp.FailureMessage)
	}
	if resp.LatestModified != "2021-10-09T02:00:00Z" {
		t.Fatalf("unexpected latest_modified_time %q", resp.LatestModified)
	}
}

func TestHTTP_GetJob_404_And_400(t *testing.T) {
	router := newTestRouter(seededRepo())

	if rr := do(router, http.MethodGet, "/jobs/99"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := do(router, http.MethodGet, "/jobs/abc"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if rr := do(router, http.MethodGet, "/jobs/0"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for id 0, got %d", rr.Code)
	}
}

func TestHTTP_ListJobs_FilterAndValidation(t *testing.T) {
	repo := seededRepo()
	router := newTestRouter(repo)

	rr := do(router, http.MethodGet, "/jobs?status=PROCESSING&limit=5")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	var jobs []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != 2 {
		t.Fatalf("expected only job 2, got %+v", jobs)
	}
	if repo.lastLimit != 5 {
		t.Fatalf("expected limit=5, got %d", repo.lastLimit)
	}

	if rr := do(router, http.MethodGet, "/jobs?status=DONE"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
	if rr := do(router, http.MethodGet, "/jobs?limit=x"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rr.Code)
	}
}

func TestHTTP_ListJobs_EmptyIsArray(t *testing.T) {
	router := newTestRouter(&repoWithJobs{jobs: map[int64]*entity.Job{}})

	rr := do(router, http.MethodGet, "/jobs")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("expected [], got %s", got)
	}
}

func TestHTTP_ListJobs_StoreError_500(t *testing.T) {
	repo := seededRepo()
	repo.failAll = errors.New("connection refused")
	router := newTestRouter(repo)

	rr := do(router, http.MethodGet, "/jobs")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("store error leaked to client: %s", rr.Body.String())
	}
}

func TestHTTP_Stats(t *testing.T) {
	router := newTestRouter(seededRepo())

	rr := do(router, http.MethodGet, "/jobs/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var stats map[string]int64
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if stats["LOADED"] != 1 || stats["PROCESSING"] != 1 || stats["FAILED"] != 1 || stats["PENDING"] != 0 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestHTTP_Watermark(t *testing.T) {
	router := newTestRouter(seededRepo())

	rr := do(router, http.MethodGet, "/watermark")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Watermark string `json:"watermark"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	// failed jobs count toward the watermark
	if resp.Watermark != "2021-10-09T02:00:00Z" {
		t.Fatalf("unexpected watermark %q", resp.Watermark)
	}
}

func TestHTTP_ResetJob(t *testing.T) {
	repo := seededRepo()
	router := newTestRouter(repo)

	if rr := do(router, http.MethodPost, "/jobs/2/reset"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if repo.jobs[2].Status != entity.StatusPending {
		t.Fatalf("expected job 2 PENDING, got %s", repo.jobs[2].Status)
	}

	// already PENDING now, and FAILED is terminal
	if rr := do(router, http.MethodPost, "/jobs/2/reset"); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if rr := do(router, http.MethodPost, "/jobs/3/reset"); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for failed job, got %d", rr.Code)
	}
	if rr := do(router, http.MethodPost, "/jobs/42/reset"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	router := newTestRouter(seededRepo())

	if rr := do(router, http.MethodGet, "/health"); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}
	if rr := do(router, http.MethodGet, "/metrics"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rr.Code)
	}
}
