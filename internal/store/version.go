// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store provides PostgreSQL access to the versions table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"smartbuilder/internal/models"
)

const (
	// DefaultListLimit is how many versions the history list shows.
	DefaultListLimit = 20
	// maxListLimit caps caller-supplied limits.
	maxListLimit = 100
)

// versionColumns lists all columns for versions SELECTs.
const versionColumns = `id, prompt, page_route, html_preview, html_live,
	instructions, created_at, published_at`

// VersionStore provides access to version snapshots in PostgreSQL.
// Every failure is wrapped with models.ErrStoreUnavailable, except missing
// rows which return models.ErrNotFound.
type VersionStore struct {
	db *sql.DB
}

// NewVersionStore creates a new VersionStore backed by the given database.
func NewVersionStore(db *sql.DB) *VersionStore {
	return &VersionStore{db: db}
}

// scanVersion scans a single versions row into a Version.
func scanVersion(scanner interface{ Scan(...any) error }) (*models.Version, error) {
	var v models.Version
	err := scanner.Scan(
		&v.ID, &v.Prompt, &v.PageRoute, &v.HTMLPreview, &v.HTMLLive,
		&v.Instructions, &v.CreatedAt, &v.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// unavailable wraps a driver error with the store taxonomy.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}

// ListRecent returns up to limit versions for a page route, newest first.
// A limit of zero or less means DefaultListLimit. No rows is an empty slice.
func (s *VersionStore) ListRecent(ctx context.Context, pageRoute string, limit int) ([]models.Version, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+versionColumns+`
		FROM versions
		WHERE page_route = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, routeOrDefault(pageRoute), limit)
	if err != nil {
		return nil, unavailable("list versions", err)
	}
	defer rows.Close()

	versions := []models.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, unavailable("scan version", err)
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list versions", err)
	}
	return versions, nil
}

// Insert creates a new version and returns it with its assigned ID and
// creation time. created_at is kept strictly increasing within the route:
// a per-route advisory lock serialises concurrent inserts and the new
// timestamp is bumped past the current maximum if the clock did not move.
func (s *VersionStore) Insert(ctx context.Context, nv models.NewVersion) (*models.Version, error) {
	route := routeOrDefault(nv.PageRoute)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("insert version", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, route); err != nil {
		return nil, unavailable("insert version lock", err)
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO versions (prompt, page_route, html_preview, instructions, created_at)
		SELECT $1, $2, $3, $4,
		       GREATEST(clock_timestamp(), MAX(created_at) + interval '1 microsecond')
		FROM versions
		WHERE page_route = $2
		RETURNING `+versionColumns,
		nv.Prompt, route, nv.HTMLPreview, nv.Instructions,
	)
	v, err := scanVersion(row)
	if err != nil {
		return nil, unavailable("insert version", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("insert version commit", err)
	}
	return v, nil
}

// FindByID returns a single version by its ID.
func (s *VersionStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM versions
		WHERE id = $1
	`, id)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find version %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("find version", err)
	}
	return v, nil
}

// Publish copies the version's html_preview into html_live and stamps
// published_at, in a single statement. The returned row reflects the
// published state.
func (s *VersionStore) Publish(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE versions
		SET html_live = html_preview, published_at = clock_timestamp()
		WHERE id = $1
		RETURNING `+versionColumns,
		id,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("publish version %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("publish version", err)
	}
	return v, nil
}

// Latest returns the newest version of a page route, i.e. its current preview.
func (s *VersionStore) Latest(ctx context.Context, pageRoute string) (*models.Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM versions
		WHERE page_route = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, routeOrDefault(pageRoute))
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest version of %q: %w", pageRoute, models.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("latest version", err)
	}
	return v, nil
}

// Live returns the most recently published version of a page route.
func (s *VersionStore) Live(ctx context.Context, pageRoute string) (*models.Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM versions
		WHERE page_route = $1 AND published_at IS NOT NULL
		ORDER BY published_at DESC
		LIMIT 1
	`, routeOrDefault(pageRoute))
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("live version of %q: %w", pageRoute, models.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("live version", err)
	}
	return v, nil
}

// Routes returns every page route with its version count, most recently
// edited first.
func (s *VersionStore) Routes(ctx context.Context) ([]models.RouteSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_route, COUNT(*), MAX(created_at), BOOL_OR(published_at IS NOT NULL)
		FROM versions
		GROUP BY page_route
		ORDER BY MAX(created_at) DESC
	`)
	if err != nil {
		return nil, unavailable("list routes", err)
	}
	defer rows.Close()

	routes := []models.RouteSummary{}
	for rows.Next() {
		var r models.RouteSummary
		if err := rows.Scan(&r.PageRoute, &r.Versions, &r.UpdatedAt, &r.Published); err != nil {
			return nil, unavailable("scan route", err)
		}
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list routes", err)
	}
	return routes, nil
}

func routeOrDefault(route string) string {
	if route == "" {
		return models.DefaultPageRoute
	}
	return route
}
