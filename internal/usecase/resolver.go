package usecase

import (
	"strings"
	"time"
	"unicode"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
	"github.com/propdesk/prop-pipeline/internal/domain/team"
)

// DefaultGameTolerance bounds how far a candidate's start instant may drift
// from the approximate instant before a name-based game match is rejected.
const DefaultGameTolerance = 3 * 24 * time.Hour

// GameCandidate carries the identifiers a provider knows a game by.
type GameCandidate struct {
	Provider   string
	ExternalID string
	HomeName   string
	AwayName   string
}

// EntityResolver maps provider team and game references onto canonical
// records. It is rebuilt from the store at the start of each run; lookups
// never guess past the declared match tiers.
type EntityResolver struct {
	teams          []team.Team
	games          []game.Game
	teamByExternal map[string]team.Team
	teamByName     map[string]team.Team
	gameByExternal map[string]game.Game
	tolerance      time.Duration
}

func NewEntityResolver(teams []team.Team, games []game.Game, tolerance time.Duration) *EntityResolver {
	if tolerance <= 0 {
		tolerance = DefaultGameTolerance
	}
	r := &EntityResolver{
		teams:          teams,
		games:          games,
		teamByExternal: make(map[string]team.Team, len(teams)),
		teamByName:     make(map[string]team.Team, len(teams)),
		gameByExternal: make(map[string]game.Game, len(games)),
		tolerance:      tolerance,
	}
	for _, t := range teams {
		for provider, id := range t.ExternalIDs {
			r.teamByExternal[externalKey(provider, id)] = t
		}
		if key := normalizeName(t.Name); key != "" {
			r.teamByName[key] = t
		}
		if key := normalizeName(t.Abbreviation); key != "" {
			if _, exists := r.teamByName[key]; !exists {
				r.teamByName[key] = t
			}
		}
	}
	for _, g := range games {
		for provider, id := range g.ExternalIDs {
			r.gameByExternal[externalKey(provider, id)] = g
		}
	}
	return r
}

// ResolveGameByExternalValue matches a bare provider id without knowing
// which provider issued it. Used when a stored reference turns out not to be
// a canonical id.
func (r *EntityResolver) ResolveGameByExternalValue(externalID string) (game.Game, bool) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return game.Game{}, false
	}
	for key, g := range r.gameByExternal {
		if key[strings.IndexByte(key, ':')+1:] == externalID {
			return g, true
		}
	}
	return game.Game{}, false
}

// ResolveTeamByExternalID is the first match tier: an exact provider-id hit
// against the external-id map.
func (r *EntityResolver) ResolveTeamByExternalID(provider, externalID string) (team.Team, bool) {
	t, ok := r.teamByExternal[externalKey(provider, externalID)]
	return t, ok
}

// ResolveTeam matches a provider team name or abbreviation against canonical
// teams: exact normalized name, then containment, then token overlap. No
// match returns false.
func (r *EntityResolver) ResolveTeam(nameOrAbbr, sport string) (team.Team, bool) {
	key := normalizeName(nameOrAbbr)
	if key == "" {
		return team.Team{}, false
	}
	sport = strings.ToLower(strings.TrimSpace(sport))

	if t, ok := r.teamByName[key]; ok && t.Sport == sport {
		return t, true
	}
	for _, t := range r.teams {
		if t.Sport != sport {
			continue
		}
		if nameMatches(nameOrAbbr, t.Name) || nameMatches(nameOrAbbr, t.Abbreviation) {
			return t, true
		}
	}
	return team.Team{}, false
}

// ResolveGame matches a candidate by provider id first, then by home/away
// name pairs among games whose start instant falls within the tolerance
// window of approx. When several games qualify the closest in time wins.
func (r *EntityResolver) ResolveGame(candidate GameCandidate, sport string, approx time.Time) (game.Game, bool) {
	if candidate.Provider != "" && candidate.ExternalID != "" {
		if g, ok := r.gameByExternal[externalKey(candidate.Provider, candidate.ExternalID)]; ok {
			return g, true
		}
	}

	if normalizeName(candidate.HomeName) == "" || normalizeName(candidate.AwayName) == "" {
		return game.Game{}, false
	}
	sport = strings.ToLower(strings.TrimSpace(sport))

	var (
		best      game.Game
		bestDrift time.Duration
		found     bool
	)
	for _, g := range r.games {
		if g.Sport != sport {
			continue
		}
		if !approx.IsZero() {
			drift := g.StartsAt.Sub(approx)
			if drift < 0 {
				drift = -drift
			}
			if drift > r.tolerance {
				continue
			}
			if found && drift >= bestDrift {
				continue
			}
			if gameNamesMatch(g, candidate) {
				best, bestDrift, found = g, drift, true
			}
			continue
		}
		if gameNamesMatch(g, candidate) {
			return g, true
		}
	}
	return best, found
}

func gameNamesMatch(g game.Game, candidate GameCandidate) bool {
	return nameMatches(candidate.HomeName, g.HomeName) && nameMatches(candidate.AwayName, g.AwayName)
}

func externalKey(provider, id string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + ":" + strings.TrimSpace(id)
}

// normalizeName lowercases and strips everything except letters and digits.
func normalizeName(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nameMatches applies the name tiers beyond provider ids: exact normalized
// match, containment, then token overlap requiring a shared token longer than
// three characters.
func nameMatches(rawA, rawB string) bool {
	a, b := normalizeName(rawA), normalizeName(rawB)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return sharedLongToken(rawA, rawB)
}

func sharedLongToken(a, b string) bool {
	for _, tok := range longTokens(a) {
		for _, other := range longTokens(b) {
			if tok == other {
				return true
			}
		}
	}
	return false
}

func longTokens(value string) []string {
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 3 {
			out = append(out, f)
		}
	}
	return out
}
