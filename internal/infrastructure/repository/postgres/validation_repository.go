package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/propdesk/prop-pipeline/internal/domain/validation"
	qb "github.com/propdesk/prop-pipeline/internal/platform/querybuilder"
)

type ValidationRepository struct {
	db *sqlx.DB
}

func NewValidationRepository(db *sqlx.DB) *ValidationRepository {
	return &ValidationRepository{db: db}
}

func (r *ValidationRepository) Create(ctx context.Context, item validation.PropValidation) error {
	query, args, err := qb.InsertModel("prop_validations", validationToInsertModel(item), "")
	if err != nil {
		return fmt.Errorf("build insert validation query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert validation %q: %w", item.ID, err)
	}
	return nil
}

func (r *ValidationRepository) GetByFingerprint(ctx context.Context, fingerprint string) (validation.PropValidation, bool, error) {
	query, args, err := qb.Select("*").From("prop_validations").
		Where(qb.Eq("fingerprint", fingerprint)).
		Limit(1).
		ToSQL()
	if err != nil {
		return validation.PropValidation{}, false, fmt.Errorf("build select validation by fingerprint query: %w", err)
	}

	var row validationTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return validation.PropValidation{}, false, nil
		}
		return validation.PropValidation{}, false, fmt.Errorf("select validation by fingerprint: %w", err)
	}

	return row.toDomain(), true, nil
}

func (r *ValidationRepository) ListOpen(ctx context.Context, sport string) ([]validation.PropValidation, error) {
	conditions := []qb.Condition{
		qb.In("status", []any{validation.StatusPending, validation.StatusNeedsReview}),
	}
	if sport = strings.ToLower(strings.TrimSpace(sport)); sport != "" {
		conditions = append(conditions, qb.Eq("sport", sport))
	}

	query, args, err := qb.Select("*").From("prop_validations").
		Where(conditions...).
		OrderBy("created_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select open validations query: %w", err)
	}

	var rows []validationTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select open validations: %w", err)
	}

	out := make([]validation.PropValidation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *ValidationRepository) Update(ctx context.Context, item validation.PropValidation) error {
	query, args, err := qb.Update("prop_validations").
		Set("game_id", item.GameID).
		Set("actual", nullableFloat(item.Actual)).
		Set("result", item.Result).
		Set("status", item.Status).
		Set("attempts", item.Attempts).
		Set("updated_at", item.UpdatedAt.UTC()).
		Set("resolved_at", item.ResolvedAt).
		Where(qb.Eq("id", item.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update validation query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update validation %q: %w", item.ID, err)
	}
	return nil
}
