package sportsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/propdesk/prop-pipeline/internal/usecase"
)

func TestParseKickoffClassifiesConvention(t *testing.T) {
	t.Parallel()

	kickoff, ok := parseKickoff(gamePayload{StartTime: "2025-11-06T03:00:00Z"})
	if !ok {
		t.Fatal("expected start_time to parse")
	}
	if kickoff.Convention != usecase.ConventionInstant {
		t.Fatalf("expected instant convention, got %s", kickoff.Convention)
	}
	if !kickoff.Value.Equal(time.Date(2025, time.November, 6, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected instant %s", kickoff.Value)
	}

	kickoff, ok = parseKickoff(gamePayload{StartDate: "2025-11-05"})
	if !ok {
		t.Fatal("expected start_date to parse")
	}
	if kickoff.Convention != usecase.ConventionDisplayDate {
		t.Fatalf("expected display-date convention, got %s", kickoff.Convention)
	}

	// A garbage start_time with a usable start_date falls back to the date.
	kickoff, ok = parseKickoff(gamePayload{StartTime: "tonight", StartDate: "2025-11-05"})
	if !ok || kickoff.Convention != usecase.ConventionDisplayDate {
		t.Fatalf("expected fallback to display date, got %v %v", kickoff.Convention, ok)
	}

	if _, ok := parseKickoff(gamePayload{}); ok {
		t.Fatal("expected unparseable payload to be rejected")
	}
}

func TestMapScheduleSkipsEntriesWithoutKickoff(t *testing.T) {
	t.Parallel()

	games := mapSchedule("nfl", []gamePayload{
		{ID: "1", HomeTeam: "Patriots", AwayTeam: "Bills", StartTime: "2025-11-06T03:00:00Z", Status: "scheduled"},
		{ID: "2", HomeTeam: "Jets", AwayTeam: "Dolphins"},
	})
	if len(games) != 1 {
		t.Fatalf("expected one usable game, got %d", len(games))
	}
	if games[0].Provider != ProviderName || games[0].ExternalID != "1" {
		t.Fatalf("unexpected mapping: %+v", games[0])
	}
}

func TestMapBox(t *testing.T) {
	t.Parallel()

	home, away := 27, 24
	score := mapBox(boxPayload{
		ID:        "884211",
		Status:    "final",
		HomeScore: &home,
		AwayScore: &away,
		PlayerStats: []statLinePayload{
			{Player: "Drake Maye", Stat: "passing_yards", Value: 261},
			{Player: "", Stat: "passing_yards", Value: 12},
		},
	})
	if score.Status != "final" || *score.HomeScore != 27 || *score.AwayScore != 24 {
		t.Fatalf("unexpected score mapping: %+v", score)
	}
	if len(score.PlayerStats) != 1 || score.PlayerStats[0].Value != 261 {
		t.Fatalf("blank players must be dropped: %+v", score.PlayerStats)
	}
}

func TestFetchScheduleRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"games":[{"id":"1","home_team":"Patriots","away_team":"Bills","start_time":"2025-11-06T03:00:00Z","status":"scheduled"}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "secret", MaxRetries: 2})
	games, err := client.FetchSchedule(context.Background(), "nfl", time.Date(2025, time.November, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("expected one game, got %d", len(games))
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestFetchScheduleDoesNotRetryPermanentFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "secret", MaxRetries: 3})
	if _, err := client.FetchSchedule(context.Background(), "nfl", time.Now()); err == nil {
		t.Fatal("expected error on 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls.Load())
	}
}

func TestRedactAPIURL(t *testing.T) {
	t.Parallel()

	redacted := redactAPIURL("https://api.sportsfeed.io/v1/nfl/teams?api_key=supersecret&date=2025-11-05")
	if got := redacted; got != "https://api.sportsfeed.io/v1/nfl/teams?api_key=REDACTED&date=2025-11-05" {
		t.Fatalf("unexpected redaction: %s", got)
	}
	if sanitizeSensitiveText("dial error api_key=supersecret", "supersecret") != "dial error api_key=REDACTED" {
		t.Fatal("token must be scrubbed from error text")
	}
}
