package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Sequential human-readable codes are scoped by year (e.g. ENR-2026-00017).
// The max scan runs row-locked inside the caller's insert transaction and
// the caller retries on unique violation, so concurrent writers cannot
// silently share a code.

const uniqueViolation = pq.ErrorCode("23505")

// IsUniqueViolation reports whether err is a PostgreSQL duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

func nextSequentialCode(ctx context.Context, tx *sqlx.Tx, table, prefix string) (string, error) {
	query := fmt.Sprintf(`SELECT code FROM %s WHERE code LIKE $1 ORDER BY code DESC LIMIT 1 FOR UPDATE`, table)
	var last string
	err := tx.GetContext(ctx, &last, query, prefix+"%")
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Sprintf("%s%05d", prefix, 1), nil
		}
		return "", fmt.Errorf("scan last code: %w", err)
	}

	seq, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
	if err != nil {
		return "", fmt.Errorf("malformed code %q: %w", last, err)
	}
	return fmt.Sprintf("%s%05d", prefix, seq+1), nil
}
