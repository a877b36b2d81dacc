// Package repository provides PostgreSQL data access for the marketing
// attribution core. All SQL lives here; services depend on narrow,
// consumer-driven slices of this repository.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repository provides data access backed by a pgx connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a repository instance.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
