package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/propdesk/prop-pipeline/internal/domain/prop"
	qb "github.com/propdesk/prop-pipeline/internal/platform/querybuilder"
)

type PropRepository struct {
	db *sqlx.DB
}

func NewPropRepository(db *sqlx.DB) *PropRepository {
	return &PropRepository{db: db}
}

func (r *PropRepository) Put(ctx context.Context, item prop.PlayerProp) error {
	query, args, err := qb.InsertModel("player_props", propToInsertModel(item), `ON CONFLICT (fingerprint)
DO UPDATE SET
    game_id = EXCLUDED.game_id,
    sport = EXCLUDED.sport,
    player = EXCLUDED.player,
    prop_type = EXCLUDED.prop_type,
    pick = EXCLUDED.pick,
    threshold = EXCLUDED.threshold,
    book = EXCLUDED.book,
    projection = EXCLUDED.projection,
    probability = EXCLUDED.probability,
    edge = EXCLUDED.edge,
    quality = EXCLUDED.quality,
    expires_at = EXCLUDED.expires_at,
    stale = EXCLUDED.stale,
    updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("build upsert prop query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert prop %q: %w", item.Fingerprint, err)
	}
	return nil
}

func (r *PropRepository) List(ctx context.Context, filter prop.Filter) ([]prop.PlayerProp, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var conditions []qb.Condition
	if sport := strings.ToLower(strings.TrimSpace(filter.Sport)); sport != "" {
		conditions = append(conditions, qb.Eq("sport", sport))
	}
	if gameID := strings.TrimSpace(filter.GameID); gameID != "" {
		conditions = append(conditions, qb.Eq("game_id", gameID))
	}
	if !filter.IncludeStale {
		conditions = append(conditions, qb.Eq("stale", false))
	}
	if !filter.IncludeExpired {
		conditions = append(conditions, qb.Expr("expires_at > ?", now))
	}

	builder := qb.Select("*").From("player_props").OrderBy("game_id", "fingerprint")
	if len(conditions) > 0 {
		builder = builder.Where(conditions...)
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select props query: %w", err)
	}

	var rows []propTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select props: %w", err)
	}

	out := make([]prop.PlayerProp, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *PropRepository) MarkStale(ctx context.Context, fingerprints []string, at time.Time) error {
	if len(fingerprints) == 0 {
		return nil
	}

	values := make([]any, 0, len(fingerprints))
	for _, fp := range fingerprints {
		values = append(values, fp)
	}

	query, args, err := qb.Update("player_props").
		Set("stale", true).
		Set("updated_at", at.UTC()).
		Where(
			qb.In("fingerprint", values),
			qb.Eq("stale", false),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark props stale query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark props stale: %w", err)
	}
	return nil
}

func (r *PropRepository) PurgeStaleBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `DELETE FROM player_props WHERE stale = TRUE AND updated_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge stale props: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge stale props rows affected: %w", err)
	}
	return int(affected), nil
}
