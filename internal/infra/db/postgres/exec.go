package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/ports/repository"
	"giftcard-service/internal/infra/metrics"
)

// Postgres SQLSTATE codes we branch on.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
)

func execSQL(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgconn.CommandTag, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	ct, err := ex.Exec(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func pickRow(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgx.Row, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.QueryRow(ctx, q, args...), nil
}

func queryRows(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgx.Rows, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.Query(ctx, q, args...)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// dbErr maps driver errors onto the domain taxonomy. Missing rows become
// ErrNotFound; everything unclassified becomes ErrPersistence.
func dbErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case errors.Is(err, domain.ErrInvalidExecCtx):
		return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
	}
	switch pgCode(err) {
	case codeCheckViolation:
		return fmt.Errorf("%w: %s: %v", domain.ErrValidation, op, err)
	case codeInvalidText:
		// malformed uuid in a lookup
		return domain.ErrNotFound
	}
	metrics.IncDBError(op)
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}
