package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/propdesk/prop-pipeline/internal/domain/prop"
	"github.com/propdesk/prop-pipeline/internal/platform/logging"
	"github.com/propdesk/prop-pipeline/internal/usecase"
)

type Handler struct {
	propService       *usecase.PropService
	syncService       *usecase.SyncService
	validationService *usecase.ValidationService
	defaultSports     []string
	defaultDaysAhead  int
	logger            *logging.Logger
	validator         *validator.Validate
}

func NewHandler(
	propService *usecase.PropService,
	syncService *usecase.SyncService,
	validationService *usecase.ValidationService,
	defaultSports []string,
	defaultDaysAhead int,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if defaultDaysAhead <= 0 {
		defaultDaysAhead = 3
	}

	return &Handler{
		propService:       propService,
		syncService:       syncService,
		validationService: validationService,
		defaultSports:     defaultSports,
		defaultDaysAhead:  defaultDaysAhead,
		logger:            logger,
		validator:         validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

type listPropsQuery struct {
	Sport  string `validate:"omitempty,min=2,max=16,lowercase"`
	GameID string `validate:"omitempty,max=128"`
}

type propDTO struct {
	Fingerprint string    `json:"fingerprint"`
	GameID      string    `json:"game_id"`
	Sport       string    `json:"sport"`
	Player      string    `json:"player"`
	PropType    string    `json:"prop_type"`
	Pick        string    `json:"pick"`
	Threshold   float64   `json:"threshold"`
	Book        string    `json:"book"`
	Projection  float64   `json:"projection"`
	Probability float64   `json:"probability"`
	Edge        float64   `json:"edge"`
	Quality     float64   `json:"quality"`
	ExpiresAt   time.Time `json:"expires_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type propListDTO struct {
	Props     []propDTO         `json:"props"`
	Freshness usecase.Freshness `json:"freshness"`
}

func (h *Handler) ListProps(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListProps")
	defer span.End()

	query := listPropsQuery{
		Sport:  strings.TrimSpace(r.URL.Query().Get("sport")),
		GameID: strings.TrimSpace(r.URL.Query().Get("game_id")),
	}
	if err := h.validator.StructCtx(ctx, query); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	props, err := h.propService.Query(ctx, usecase.PropQuery{
		Sport:  query.Sport,
		GameID: query.GameID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "list props failed", "sport", query.Sport, "game_id", query.GameID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]propDTO, 0, len(props))
	for _, p := range props {
		items = append(items, propToDTO(p))
	}

	writeSuccess(ctx, w, http.StatusOK, propListDTO{
		Props:     items,
		Freshness: h.propService.LastFreshness(),
	})
}

func propToDTO(p prop.PlayerProp) propDTO {
	return propDTO{
		Fingerprint: p.Fingerprint,
		GameID:      p.GameID,
		Sport:       p.Sport,
		Player:      p.Player,
		PropType:    p.PropType,
		Pick:        p.Pick,
		Threshold:   p.Threshold,
		Book:        p.Book,
		Projection:  p.Projection,
		Probability: p.Probability,
		Edge:        p.Edge,
		Quality:     p.Quality,
		ExpiresAt:   p.ExpiresAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
