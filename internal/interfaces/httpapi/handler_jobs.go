package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/propdesk/prop-pipeline/internal/usecase"
)

type internalSyncJobRequest struct {
	Sport     string `json:"sport" validate:"omitempty,min=2,max=16,lowercase"`
	DaysAhead int    `json:"days_ahead" validate:"omitempty,min=1,max=14"`
}

type sportSyncResultDTO struct {
	Sport   string `json:"sport"`
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
	Errors  int    `json:"errors"`
}

type syncJobResultDTO struct {
	From    string               `json:"from"`
	To      string               `json:"to"`
	Results []sportSyncResultDTO `json:"results"`
}

func (h *Handler) RunSyncJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunSyncJob")
	defer span.End()

	req, err := decodeInternalSyncJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validator.StructCtx(ctx, req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	if h.syncService == nil {
		writeError(ctx, w, fmt.Errorf("%w: sync service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	sports := h.defaultSports
	if sport := strings.TrimSpace(req.Sport); sport != "" {
		sports = []string{sport}
	}
	if len(sports) == 0 {
		writeError(ctx, w, fmt.Errorf("%w: no sports configured for sync", usecase.ErrInvalidInput))
		return
	}

	daysAhead := h.defaultDaysAhead
	if req.DaysAhead > 0 {
		daysAhead = req.DaysAhead
	}

	now := time.Now().UTC()
	dates := usecase.DateRange{
		From: now,
		To:   now.AddDate(0, 0, daysAhead),
	}

	results := make([]sportSyncResultDTO, 0, len(sports))
	for _, sport := range sports {
		stats, err := h.syncService.RunSync(ctx, sport, dates)
		if err != nil {
			h.logger.WarnContext(ctx, "sync job failed", "sport", sport, "error", err)
			writeError(ctx, w, err)
			return
		}
		results = append(results, sportSyncResultDTO{
			Sport:   sport,
			Added:   stats.Added,
			Updated: stats.Updated,
			Errors:  stats.Errors,
		})
	}

	writeSuccess(ctx, w, http.StatusOK, syncJobResultDTO{
		From:    dates.From.Format("2006-01-02"),
		To:      dates.To.Format("2006-01-02"),
		Results: results,
	})
}

type validationJobResultDTO struct {
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
	Remaining int `json:"remaining"`
}

func (h *Handler) RunValidationJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunValidationJob")
	defer span.End()

	if h.validationService == nil {
		writeError(ctx, w, fmt.Errorf("%w: validation service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	result, err := h.validationService.RunValidation(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "validation job failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, validationJobResultDTO{
		Updated:   result.Updated,
		Errors:    result.Errors,
		Remaining: result.Remaining,
	})
}

type sweepJobResultDTO struct {
	Marked int `json:"marked"`
	Purged int `json:"purged"`
	Errors int `json:"errors"`
}

func (h *Handler) RunPropSweepJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunPropSweepJob")
	defer span.End()

	if h.propService == nil {
		writeError(ctx, w, fmt.Errorf("%w: prop service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	stats, err := h.propService.Sweep(ctx, time.Now().UTC())
	if err != nil {
		h.logger.WarnContext(ctx, "prop sweep job failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, sweepJobResultDTO{
		Marked: stats.Marked,
		Purged: stats.Purged,
		Errors: stats.Errors,
	})
}

func decodeInternalSyncJobRequest(r *http.Request) (internalSyncJobRequest, error) {
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req internalSyncJobRequest
	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return internalSyncJobRequest{}, nil
		}
		return internalSyncJobRequest{}, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}

	return req, nil
}
