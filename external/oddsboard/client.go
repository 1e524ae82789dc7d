package oddsboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"

	"github.com/propdesk/prop-pipeline/internal/platform/cache"
	"github.com/propdesk/prop-pipeline/internal/platform/logging"
	"github.com/propdesk/prop-pipeline/internal/platform/ratebudget"
	"github.com/propdesk/prop-pipeline/internal/platform/resilience"
	"github.com/propdesk/prop-pipeline/internal/usecase"
)

const (
	// ProviderName keys external-id maps for records originating here.
	ProviderName = "oddsboard"

	defaultBaseURL = "https://api.oddsboard.com/v2"
)

var errOddsboardTransient = crerr.New("oddsboard transient failure")

type ClientConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	Budget         *ratebudget.Budget
	Cache          *cache.Store
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client covers the odds/props category. The upstream meters calls, so every
// request passes the rate budget first; exhaustion serves the last good
// payload flagged as fallback instead of failing the run.
type Client struct {
	http           *fasthttp.Client
	baseURL        string
	token          string
	timeout        time.Duration
	maxRetries     int
	logger         *logging.Logger
	budget         *ratebudget.Budget
	cache          *cache.Store
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	store := cfg.Cache
	if store == nil {
		// Last-good payloads never expire on their own; staleness is the
		// caller's to judge via the fallback flag.
		store = cache.NewStore(0)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		http: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		timeout:        timeout,
		maxRetries:     maxRetries,
		logger:         logger,
		budget:         cfg.Budget,
		cache:          store,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

type eventsEnvelope struct {
	Events []eventPayload `json:"events"`
}

type eventPayload struct {
	ID       string        `json:"id"`
	HomeTeam string        `json:"home_team"`
	AwayTeam string        `json:"away_team"`
	Props    []propPayload `json:"props"`
}

type propPayload struct {
	Player      string  `json:"player"`
	Type        string  `json:"type"`
	Pick        string  `json:"pick"`
	Threshold   float64 `json:"threshold"`
	Book        string  `json:"book"`
	Projection  float64 `json:"projection"`
	Probability float64 `json:"probability"`
	Edge        float64 `json:"edge"`
	Quality     float64 `json:"quality"`
	ExpiresAt   string  `json:"expires_at"`
}

// FetchProps lists current player props for a sport, optionally narrowed to
// one event. Budget exhaustion returns the cached page flagged Fallback; a
// hard error only surfaces when there is nothing cached to serve.
func (c *Client) FetchProps(ctx context.Context, sport, eventID string) (usecase.PropsPage, error) {
	sport = strings.ToLower(strings.TrimSpace(sport))
	if sport == "" {
		return usecase.PropsPage{}, fmt.Errorf("%w: sport is required", usecase.ErrInvalidInput)
	}
	cacheKey := "props:" + sport + ":" + strings.TrimSpace(eventID)

	if c.budget != nil {
		if err := c.budget.Allow(); err != nil {
			return c.serveFallback(ctx, cacheKey, err)
		}
	}
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			return c.serveFallback(ctx, cacheKey, err)
		}
	}

	raw, err := c.execute(ctx, sport, eventID)
	if c.circuitEnabled {
		if err != nil && stderrors.Is(err, errOddsboardTransient) {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	if err != nil {
		if stderrors.Is(err, errOddsboardTransient) {
			return c.serveFallback(ctx, cacheKey, err)
		}
		return usecase.PropsPage{}, err
	}

	var envelope eventsEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return usecase.PropsPage{}, fmt.Errorf("decode provider payload: %w", err)
	}
	props := mapEvents(sport, envelope.Events)
	c.cache.Set(ctx, cacheKey, props)
	return usecase.PropsPage{Props: props}, nil
}

// serveFallback fails soft when the fresh path is closed: the last good
// payload goes out flagged, and only an empty cache turns into an error.
func (c *Client) serveFallback(ctx context.Context, cacheKey string, cause error) (usecase.PropsPage, error) {
	cached, storedAt, ok := c.cache.Get(ctx, cacheKey)
	if !ok {
		if stderrors.Is(cause, ratebudget.ErrBudgetExceeded) {
			return usecase.PropsPage{}, fmt.Errorf("%w: no cached props to serve", cause)
		}
		return usecase.PropsPage{}, fmt.Errorf("%w: odds provider is unavailable and nothing is cached", usecase.ErrDependencyUnavailable)
	}
	props, _ := cached.([]usecase.RawProp)
	c.logger.WarnContext(ctx, "serving cached props as fallback",
		"cache_key", cacheKey, "cached_at", storedAt.UTC().Format(time.RFC3339), "cause", cause)
	return usecase.PropsPage{Props: props, Fallback: true}, nil
}

func mapEvents(sport string, events []eventPayload) []usecase.RawProp {
	out := make([]usecase.RawProp, 0, len(events)*4)
	for _, event := range events {
		for _, item := range event.Props {
			if strings.TrimSpace(item.Player) == "" {
				continue
			}
			raw := usecase.RawProp{
				Provider:        ProviderName,
				EventExternalID: strings.TrimSpace(event.ID),
				Sport:           sport,
				HomeName:        strings.TrimSpace(event.HomeTeam),
				AwayName:        strings.TrimSpace(event.AwayTeam),
				Player:          strings.TrimSpace(item.Player),
				PropType:        strings.TrimSpace(item.Type),
				Pick:            strings.ToLower(strings.TrimSpace(item.Pick)),
				Threshold:       item.Threshold,
				Book:            strings.TrimSpace(item.Book),
				Projection:      item.Projection,
				Probability:     item.Probability,
				Edge:            item.Edge,
				Quality:         item.Quality,
			}
			if raw.Book == "" {
				raw.Book = ProviderName
			}
			if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(item.ExpiresAt)); err == nil {
				raw.ExpiresAt = parsed
			}
			out = append(out, raw)
		}
	}
	return out
}

func (c *Client) execute(ctx context.Context, sport, eventID string) ([]byte, error) {
	values := url.Values{}
	values.Set("sport", sport)
	if eventID = strings.TrimSpace(eventID); eventID != "" {
		values.Set("event_id", eventID)
	}
	fullURL := c.baseURL + "/props?" + values.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		req.SetRequestURI(fullURL)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("accept", "application/json")
		req.Header.Set("x-api-key", c.token)

		err := c.http.DoTimeout(req, resp, c.timeout)
		status := resp.StatusCode()
		var raw []byte
		if err == nil {
			raw = append(raw, resp.Body()...)
		}
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		switch {
		case err != nil:
			lastErr = fmt.Errorf("%w: send request: %v", errOddsboardTransient, err)
		case status >= 200 && status < 300:
			return raw, nil
		case status == fasthttp.StatusTooManyRequests || status >= fasthttp.StatusInternalServerError:
			lastErr = fmt.Errorf("%w: provider status=%d", errOddsboardTransient, status)
		default:
			// Permanent failure: do not retry.
			return nil, fmt.Errorf("provider status=%d body=%s", status, abbreviateBody(raw))
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
	c.logger.WarnContext(ctx, "oddsboard request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
