package postgres

import (
	"database/sql"
	"fmt"

	sonic "github.com/bytedance/sonic"
)

func isNotFound(err error) bool {
	return err == sql.ErrNoRows
}

func nullableInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func intPointer(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func nullableFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func floatPointer(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

func encodeStringMap(values map[string]string) (string, error) {
	if len(values) == 0 {
		return "{}", nil
	}
	encoded, err := sonic.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode string map: %w", err)
	}
	return string(encoded), nil
}

func decodeStringMap(raw string) (map[string]string, error) {
	if raw == "" || raw == "{}" {
		return map[string]string{}, nil
	}
	out := make(map[string]string)
	if err := sonic.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode string map: %w", err)
	}
	return out, nil
}

func encodeFloatMap(values map[string]float64) (string, error) {
	if len(values) == 0 {
		return "{}", nil
	}
	encoded, err := sonic.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode float map: %w", err)
	}
	return string(encoded), nil
}

func decodeFloatMap(raw string) (map[string]float64, error) {
	if raw == "" || raw == "{}" {
		return map[string]float64{}, nil
	}
	out := make(map[string]float64)
	if err := sonic.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode float map: %w", err)
	}
	return out, nil
}
