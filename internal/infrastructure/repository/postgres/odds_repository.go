package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/propdesk/prop-pipeline/internal/domain/odds"
	qb "github.com/propdesk/prop-pipeline/internal/platform/querybuilder"
)

type oddsSnapshotTableModel struct {
	ID         int64     `db:"id"`
	GameID     string    `db:"game_id"`
	Book       string    `db:"book"`
	Market     string    `db:"market"`
	CapturedAt time.Time `db:"captured_at"`
	Lines      string    `db:"lines"`
}

type oddsSnapshotInsertModel struct {
	GameID     string    `db:"game_id"`
	Book       string    `db:"book"`
	Market     string    `db:"market"`
	CapturedAt time.Time `db:"captured_at"`
	Lines      string    `db:"lines"`
}

type OddsRepository struct {
	db *sqlx.DB
}

func NewOddsRepository(db *sqlx.DB) *OddsRepository {
	return &OddsRepository{db: db}
}

func (r *OddsRepository) Append(ctx context.Context, items []odds.Snapshot) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx append odds snapshots: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, item := range items {
		lines, err := encodeFloatMap(item.Lines)
		if err != nil {
			return fmt.Errorf("map odds snapshot for game %q: %w", item.GameID, err)
		}

		query, args, err := qb.InsertModel("odds_snapshots", oddsSnapshotInsertModel{
			GameID:     item.GameID,
			Book:       item.Book,
			Market:     item.Market,
			CapturedAt: item.CapturedAt.UTC(),
			Lines:      lines,
		}, "")
		if err != nil {
			return fmt.Errorf("build insert odds snapshot query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert odds snapshot for game %q: %w", item.GameID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append odds snapshots: %w", err)
	}
	return nil
}

func (r *OddsRepository) ListByGame(ctx context.Context, gameID string) ([]odds.Snapshot, error) {
	query, args, err := qb.Select("*").From("odds_snapshots").
		Where(qb.Eq("game_id", gameID)).
		OrderBy("captured_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select odds snapshots query: %w", err)
	}

	var rows []oddsSnapshotTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select odds snapshots by game: %w", err)
	}

	out := make([]odds.Snapshot, 0, len(rows))
	for _, row := range rows {
		lines, err := decodeFloatMap(row.Lines)
		if err != nil {
			return nil, fmt.Errorf("map odds snapshot row %d: %w", row.ID, err)
		}
		out = append(out, odds.Snapshot{
			GameID:     row.GameID,
			Book:       row.Book,
			Market:     row.Market,
			CapturedAt: row.CapturedAt.UTC(),
			Lines:      lines,
		})
	}

	return out, nil
}
