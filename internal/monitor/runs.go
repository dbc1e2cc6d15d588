package monitor

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harvestlab/topic-harvester/internal/history"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200

	repoTimeout = 3 * time.Second
)

// runsHandler serves run history over HTTP.
type runsHandler struct {
	repo   history.Repository
	logger *zap.Logger
}

func newRunsHandler(repo history.Repository, logger *zap.Logger) *runsHandler {
	return &runsHandler{repo: repo, logger: logger}
}

// runDTO is the JSON shape of one run.
type runDTO struct {
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Topics     int64      `json:"topics"`
	Requested  int64      `json:"requested"`
	Discovered int64      `json:"discovered"`
	Completed  int64      `json:"completed"`
	Failed     int64      `json:"failed"`
	Appended   int64      `json:"appended"`
	Note       string     `json:"note,omitempty"`
}

func toRunDTO(rec history.RunRecord) runDTO {
	dto := runDTO{
		RunID:      rec.ID,
		StartedAt:  rec.StartedAt,
		Status:     rec.Status,
		Topics:     rec.Topics,
		Requested:  rec.Requested,
		Discovered: rec.Discovered,
		Completed:  rec.Completed,
		Failed:     rec.Failed,
		Appended:   rec.Appended,
		Note:       rec.Note,
	}
	if !rec.FinishedAt.IsZero() {
		t := rec.FinishedAt
		dto.FinishedAt = &t
	}
	return dto
}

func (h *runsHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run history unavailable")
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), repoTimeout)
	defer cancel()

	recs, err := h.repo.Recent(ctx, limit)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	dtos := make([]runDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, toRunDTO(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

func (h *runsHandler) get(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run history unavailable")
		return
	}

	id := chi.URLParam(r, "run_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), repoTimeout)
	defer cancel()

	rec, err := h.repo.Get(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("get run failed", zap.Error(err), zap.String("run_id", id))
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, toRunDTO(rec))
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultRunsLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}
	return limit, nil
}
