package sportsfeed

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/propdesk/prop-pipeline/internal/platform/logging"
	"github.com/propdesk/prop-pipeline/internal/platform/resilience"
	"github.com/propdesk/prop-pipeline/internal/usecase"
)

const (
	// ProviderName keys external-id maps for records originating here.
	ProviderName = "sportsfeed"

	defaultBaseURL = "https://api.sportsfeed.io/v1"
)

var apiKeyParamRegex = regexp.MustCompile(`api_key=[^&\s"']+`)
var errSportsfeedTransient = crerr.New("sportsfeed transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client covers the schedule, team, and score categories against the
// sportsfeed API. One client instance is safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		maxRetries:     maxRetries,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

type teamsEnvelope struct {
	Teams []teamPayload `json:"teams"`
}

type teamPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

type scheduleEnvelope struct {
	Games []gamePayload `json:"games"`
}

type gamePayload struct {
	ID       string `json:"id"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
	// StartTime is a full instant; some feeds only populate StartDate.
	StartTime string `json:"start_time"`
	StartDate string `json:"start_date"`
	Status    string `json:"status"`
}

type boxEnvelope struct {
	Game boxPayload `json:"game"`
}

type boxPayload struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	HomeScore   *int              `json:"home_score"`
	AwayScore   *int              `json:"away_score"`
	PlayerStats []statLinePayload `json:"player_stats"`
}

type statLinePayload struct {
	Player string  `json:"player"`
	Stat   string  `json:"stat"`
	Value  float64 `json:"value"`
}

func (c *Client) FetchTeams(ctx context.Context, sport string) ([]usecase.RawTeam, error) {
	sport = strings.ToLower(strings.TrimSpace(sport))
	if sport == "" {
		return nil, fmt.Errorf("%w: sport is required", usecase.ErrInvalidInput)
	}

	var envelope teamsEnvelope
	if err := c.doJSON(ctx, "/"+sport+"/teams", nil, &envelope); err != nil {
		return nil, fmt.Errorf("fetch teams sport=%s: %w", sport, err)
	}
	return mapTeams(sport, envelope.Teams), nil
}

func (c *Client) FetchSchedule(ctx context.Context, sport string, date time.Time) ([]usecase.RawGame, error) {
	sport = strings.ToLower(strings.TrimSpace(sport))
	if sport == "" {
		return nil, fmt.Errorf("%w: sport is required", usecase.ErrInvalidInput)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", usecase.ErrInvalidInput)
	}

	query := map[string]string{"date": date.UTC().Format("2006-01-02")}
	var envelope scheduleEnvelope
	if err := c.doJSON(ctx, "/"+sport+"/schedule", query, &envelope); err != nil {
		return nil, fmt.Errorf("fetch schedule sport=%s date=%s: %w", sport, query["date"], err)
	}
	return mapSchedule(sport, envelope.Games), nil
}

func (c *Client) FetchScore(ctx context.Context, sport, gameID string) (usecase.RawScore, error) {
	sport = strings.ToLower(strings.TrimSpace(sport))
	gameID = strings.TrimSpace(gameID)
	if sport == "" || gameID == "" {
		return usecase.RawScore{}, fmt.Errorf("%w: sport and game id are required", usecase.ErrInvalidInput)
	}

	var envelope boxEnvelope
	if err := c.doJSON(ctx, "/"+sport+"/games/"+url.PathEscape(gameID)+"/box", nil, &envelope); err != nil {
		return usecase.RawScore{}, fmt.Errorf("fetch box sport=%s game=%s: %w", sport, gameID, err)
	}
	return mapBox(envelope.Game), nil
}

func mapTeams(sport string, payloads []teamPayload) []usecase.RawTeam {
	out := make([]usecase.RawTeam, 0, len(payloads))
	for _, item := range payloads {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		out = append(out, usecase.RawTeam{
			Provider:     ProviderName,
			ExternalID:   strings.TrimSpace(item.ID),
			Sport:        sport,
			Name:         name,
			Abbreviation: strings.TrimSpace(item.Abbreviation),
		})
	}
	return out
}

func mapSchedule(sport string, payloads []gamePayload) []usecase.RawGame {
	out := make([]usecase.RawGame, 0, len(payloads))
	for _, item := range payloads {
		kickoff, ok := parseKickoff(item)
		if !ok {
			continue
		}
		out = append(out, usecase.RawGame{
			Provider:   ProviderName,
			ExternalID: strings.TrimSpace(item.ID),
			Sport:      sport,
			HomeName:   strings.TrimSpace(item.HomeTeam),
			AwayName:   strings.TrimSpace(item.AwayTeam),
			Kickoff:    kickoff,
			Status:     item.Status,
		})
	}
	return out
}

// parseKickoff classifies what the feed actually knows: a real instant when
// start_time parses, otherwise a bare display date.
func parseKickoff(item gamePayload) (usecase.RawKickoff, bool) {
	if value := strings.TrimSpace(item.StartTime); value != "" {
		if parsed, err := time.Parse(time.RFC3339, value); err == nil {
			return usecase.RawKickoff{Value: parsed, Convention: usecase.ConventionInstant}, true
		}
	}
	if value := strings.TrimSpace(item.StartDate); value != "" {
		if parsed, err := time.Parse("2006-01-02", value); err == nil {
			return usecase.RawKickoff{Value: parsed, Convention: usecase.ConventionDisplayDate}, true
		}
	}
	return usecase.RawKickoff{}, false
}

func mapBox(payload boxPayload) usecase.RawScore {
	stats := make([]usecase.RawStatLine, 0, len(payload.PlayerStats))
	for _, line := range payload.PlayerStats {
		if strings.TrimSpace(line.Player) == "" {
			continue
		}
		stats = append(stats, usecase.RawStatLine{
			Player:   strings.TrimSpace(line.Player),
			StatType: strings.TrimSpace(line.Stat),
			Value:    line.Value,
		})
	}
	return usecase.RawScore{
		Provider:    ProviderName,
		ExternalID:  strings.TrimSpace(payload.ID),
		Status:      payload.Status,
		HomeScore:   payload.HomeScore,
		AwayScore:   payload.AwayScore,
		PlayerStats: stats,
	}
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "sportsfeed circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: sport data provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	values.Set("api_key", c.token)

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	key := path + "?" + values.Encode()
	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && isCircuitFailure(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errSportsfeedTransient, sanitizeSensitiveText(err.Error(), c.token))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 6<<20))
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", errSportsfeedTransient, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else if isRetryableStatus(resp.StatusCode) {
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errSportsfeedTransient, resp.StatusCode, abbreviateBody(raw))
			} else {
				// Permanent failure: do not retry.
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "sportsfeed request failed", "url", redactAPIURL(fullURL), "error", lastErr)
	return nil, lastErr
}

func isCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errSportsfeedTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sanitizeSensitiveText(value, token string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if token != "" {
		value = strings.ReplaceAll(value, token, "REDACTED")
	}
	return apiKeyParamRegex.ReplaceAllString(value, "api_key=REDACTED")
}

func redactAPIURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	if query.Has("api_key") {
		query.Set("api_key", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
