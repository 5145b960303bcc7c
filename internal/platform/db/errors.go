package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/careorbit/clinic/internal/domain"
)

// Postgres SQLSTATE codes the repositories react to.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeCheckViolation      = "23514"
	CodeNotNullViolation    = "23502"
	CodeInvalidText         = "22P02"
	CodeInvalidDatetime     = "22007"
	CodeDatetimeOverflow    = "22008"
	CodeRaiseException      = "P0001"
)

// MapError converts a pgx error into one of the domain error kinds. The
// driver error stays in the chain for logging. Anything not recognised,
// including context cancellation and network failures, becomes ErrStore.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if isDomainKind(err) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case CodeUniqueViolation:
			return fmt.Errorf("%w: %w", domain.ErrDuplicate, err)
		case CodeForeignKeyViolation:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		case CodeCheckViolation, CodeNotNullViolation, CodeInvalidText, CodeInvalidDatetime, CodeDatetimeOverflow:
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		case CodeRaiseException:
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrStore, err)
}

// UniqueViolation reports whether err is a unique violation on constraint.
// An empty constraint matches any unique violation.
func UniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isDomainKind(err error) bool {
	for _, k := range []error{
		domain.ErrValidation, domain.ErrNotFound, domain.ErrDuplicate,
		domain.ErrConflict, domain.ErrStore, domain.ErrForbidden, domain.ErrUnauthorized,
	} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
