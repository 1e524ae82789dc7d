package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/propdesk/prop-pipeline/internal/domain/game"
	qb "github.com/propdesk/prop-pipeline/internal/platform/querybuilder"
)

type GameRepository struct {
	db *sqlx.DB
}

func NewGameRepository(db *sqlx.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) ListBySport(ctx context.Context, sport string) ([]game.Game, error) {
	builder := qb.Select("*").From("games").OrderBy("starts_at", "id")
	if sport = strings.ToLower(strings.TrimSpace(sport)); sport != "" {
		builder = builder.Where(qb.Eq("sport", sport))
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select games by sport query: %w", err)
	}

	return r.selectGames(ctx, query, args)
}

func (r *GameRepository) ListByDateRange(ctx context.Context, sport string, from, to time.Time) ([]game.Game, error) {
	conditions := []qb.Condition{
		qb.Expr("starts_at >= ?", from.UTC()),
		qb.Expr("starts_at <= ?", to.UTC()),
	}
	if sport = strings.ToLower(strings.TrimSpace(sport)); sport != "" {
		conditions = append(conditions, qb.Eq("sport", sport))
	}

	query, args, err := qb.Select("*").From("games").
		Where(conditions...).
		OrderBy("starts_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select games by date range query: %w", err)
	}

	return r.selectGames(ctx, query, args)
}

func (r *GameRepository) GetByID(ctx context.Context, id string) (game.Game, bool, error) {
	query, args, err := qb.Select("*").From("games").
		Where(qb.Eq("id", id)).
		Limit(1).
		ToSQL()
	if err != nil {
		return game.Game{}, false, fmt.Errorf("build select game by id query: %w", err)
	}

	var row gameTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return game.Game{}, false, nil
		}
		return game.Game{}, false, fmt.Errorf("select game by id: %w", err)
	}

	item, err := row.toDomain()
	if err != nil {
		return game.Game{}, false, fmt.Errorf("map game row %q: %w", row.ID, err)
	}
	return item, true, nil
}

func (r *GameRepository) Upsert(ctx context.Context, items []game.Game) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert games: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range items {
		insertModel, err := gameToInsertModel(item)
		if err != nil {
			return fmt.Errorf("map game %q: %w", item.ID, err)
		}

		query, args, err := qb.InsertModel("games", insertModel, `ON CONFLICT (id)
DO UPDATE SET
    sport = EXCLUDED.sport,
    starts_at = EXCLUDED.starts_at,
    start_confidence = EXCLUDED.start_confidence,
    status = EXCLUDED.status,
    home_team_id = EXCLUDED.home_team_id,
    away_team_id = EXCLUDED.away_team_id,
    home_name = EXCLUDED.home_name,
    away_name = EXCLUDED.away_name,
    home_score = EXCLUDED.home_score,
    away_score = EXCLUDED.away_score,
    external_ids = EXCLUDED.external_ids,
    updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("build upsert game query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert game %q: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert games: %w", err)
	}
	return nil
}

func (r *GameRepository) selectGames(ctx context.Context, query string, args []any) ([]game.Game, error) {
	var rows []gameTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}

	out := make([]game.Game, 0, len(rows))
	for _, row := range rows {
		item, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("map game row %q: %w", row.ID, err)
		}
		out = append(out, item)
	}

	return out, nil
}
