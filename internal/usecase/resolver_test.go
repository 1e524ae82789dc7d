package usecase

import (
	"testing"
	"time"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
	"github.com/propdesk/prop-pipeline/internal/domain/team"
)

func resolverFixtureTeams() []team.Team {
	return []team.Team{
		{
			ID:           "nfl-new-england-patriots",
			Sport:        "nfl",
			Name:         "New England Patriots",
			Abbreviation: "NE",
			ExternalIDs:  map[string]string{"sportsfeed": "134920"},
		},
		{
			ID:           "nba-charlotte-hornets",
			Sport:        "nba",
			Name:         "Charlotte Hornets",
			Abbreviation: "CHA",
		},
		{
			ID:           "nba-chicago-bulls",
			Sport:        "nba",
			Name:         "Chicago Bulls",
			Abbreviation: "CHI",
		},
	}
}

func TestResolveTeamByExternalID(t *testing.T) {
	resolver := NewEntityResolver(resolverFixtureTeams(), nil, 0)

	got, ok := resolver.ResolveTeamByExternalID("sportsfeed", "134920")
	if !ok {
		t.Fatal("expected external id match")
	}
	if got.ID != "nfl-new-england-patriots" {
		t.Fatalf("unexpected team %q", got.ID)
	}
	if _, ok := resolver.ResolveTeamByExternalID("sportsfeed", "999"); ok {
		t.Fatal("expected no match for unknown external id")
	}
}

func TestResolveTeamNameTiers(t *testing.T) {
	resolver := NewEntityResolver(resolverFixtureTeams(), nil, 0)

	// Containment: short form against the full canonical name.
	got, ok := resolver.ResolveTeam("Patriots", "nfl")
	if !ok || got.ID != "nfl-new-england-patriots" {
		t.Fatalf("expected Patriots to resolve, got %v %v", got.ID, ok)
	}
	// Exact normalized match.
	got, ok = resolver.ResolveTeam("new england patriots", "nfl")
	if !ok || got.ID != "nfl-new-england-patriots" {
		t.Fatalf("expected exact match, got %v %v", got.ID, ok)
	}
	// Abbreviation.
	got, ok = resolver.ResolveTeam("CHA", "nba")
	if !ok || got.ID != "nba-charlotte-hornets" {
		t.Fatalf("expected abbreviation match, got %v %v", got.ID, ok)
	}
	// City prefixes must not cross-match similar-looking names.
	got, ok = resolver.ResolveTeam("Chicago", "nba")
	if !ok || got.ID != "nba-chicago-bulls" {
		t.Fatalf("expected Chicago to resolve to the Bulls, got %v %v", got.ID, ok)
	}
	if got.ID == "nba-charlotte-hornets" {
		t.Fatal("Chicago must never resolve to Charlotte")
	}
}

func TestResolveTeamRefusesToGuess(t *testing.T) {
	resolver := NewEntityResolver(resolverFixtureTeams(), nil, 0)

	if _, ok := resolver.ResolveTeam("Springfield Isotopes", "nba"); ok {
		t.Fatal("expected no match for unknown team")
	}
	if _, ok := resolver.ResolveTeam("Patriots", "nba"); ok {
		t.Fatal("sport must scope team resolution")
	}
	if _, ok := resolver.ResolveTeam("  ", "nfl"); ok {
		t.Fatal("expected no match for blank name")
	}
}

func TestResolveGame(t *testing.T) {
	kickoff := time.Date(2025, time.November, 6, 3, 0, 0, 0, time.UTC)
	games := []game.Game{
		{
			ID:          "g-1",
			Sport:       "nfl",
			StartsAt:    kickoff,
			HomeName:    "New England Patriots",
			AwayName:    "Buffalo Bills",
			ExternalIDs: map[string]string{"oddsboard": "ev-77"},
		},
		{
			ID:       "g-2",
			Sport:    "nfl",
			StartsAt: kickoff.Add(7 * 24 * time.Hour),
			HomeName: "New England Patriots",
			AwayName: "Buffalo Bills",
		},
	}
	resolver := NewEntityResolver(resolverFixtureTeams(), games, 0)

	got, ok := resolver.ResolveGame(GameCandidate{Provider: "oddsboard", ExternalID: "ev-77"}, "nfl", time.Time{})
	if !ok || got.ID != "g-1" {
		t.Fatalf("expected external id match on g-1, got %v %v", got.ID, ok)
	}

	candidate := GameCandidate{HomeName: "Patriots", AwayName: "Bills"}
	got, ok = resolver.ResolveGame(candidate, "nfl", kickoff.Add(6*time.Hour))
	if !ok || got.ID != "g-1" {
		t.Fatalf("expected tolerance-window match on g-1, got %v %v", got.ID, ok)
	}

	// Same pairing a week later must pick the rematch, not the original.
	got, ok = resolver.ResolveGame(candidate, "nfl", kickoff.Add(7*24*time.Hour))
	if !ok || got.ID != "g-2" {
		t.Fatalf("expected closest-in-time match on g-2, got %v %v", got.ID, ok)
	}

	// Outside the window nothing qualifies.
	if _, ok := resolver.ResolveGame(candidate, "nfl", kickoff.Add(30*24*time.Hour)); ok {
		t.Fatal("expected no match outside the tolerance window")
	}
}
