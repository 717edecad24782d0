package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lib/pq"

	"github.com/Keksclan/linkSquirrel/linkpage"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id           TEXT PRIMARY KEY,
    username     TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    bio          TEXT NOT NULL DEFAULT '',
    avatar_url   TEXT NOT NULL DEFAULT '',
    theme        TEXT NOT NULL DEFAULT '',
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
    id         TEXT PRIMARY KEY,
    profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    title      TEXT NOT NULL,
    url        TEXT NOT NULL,
    style      TEXT NOT NULL DEFAULT '',
    position   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS links_profile_position ON links (profile_id, position);

CREATE TABLE IF NOT EXISTS ai_pages (
    id             TEXT PRIMARY KEY,
    slug           TEXT NOT NULL UNIQUE,
    owner_username TEXT NOT NULL,
    prompt         TEXT NOT NULL DEFAULT '',
    html           TEXT NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);
`

// Postgres is an [Accessor] on a Postgres database reached through lib/pq.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens a pool for dsn and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks the connection pool.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// FindProfile implements [linkpage.ProfileStore].
func (p *Postgres) FindProfile(ctx context.Context, username string) (*linkpage.Profile, bool, error) {
	var prof linkpage.Profile
	err := p.db.QueryRowContext(ctx, `
        SELECT id, username, display_name, bio, avatar_url, theme, updated_at
        FROM profiles WHERE username = $1`, username,
	).Scan(&prof.ID, &prof.Username, &prof.DisplayName, &prof.Bio, &prof.AvatarURL, &prof.Theme, &prof.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find profile %q: %w", username, err)
	}

	rows, err := p.db.QueryContext(ctx, `
        SELECT id, title, url, style, position
        FROM links WHERE profile_id = $1 ORDER BY position`, prof.ID)
	if err != nil {
		return nil, false, fmt.Errorf("find links of %q: %w", username, err)
	}
	defer rows.Close()

	prof.Links = []linkpage.Link{}
	for rows.Next() {
		var l linkpage.Link
		if err := rows.Scan(&l.ID, &l.Title, &l.URL, &l.Style, &l.Position); err != nil {
			return nil, false, fmt.Errorf("scan link: %w", err)
		}
		prof.Links = append(prof.Links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("find links of %q: %w", username, err)
	}
	return &prof, true, nil
}

// SaveProfile implements [linkpage.ProfileStore]. The profile row and its
// links are replaced in one transaction.
func (p *Postgres) SaveProfile(ctx context.Context, prof *linkpage.Profile) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, `
        INSERT INTO profiles (id, username, display_name, bio, avatar_url, theme, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (username) DO UPDATE SET
            display_name = EXCLUDED.display_name,
            bio          = EXCLUDED.bio,
            avatar_url   = EXCLUDED.avatar_url,
            theme        = EXCLUDED.theme,
            updated_at   = EXCLUDED.updated_at
        RETURNING id`,
		prof.ID, prof.Username, prof.DisplayName, prof.Bio, prof.AvatarURL, prof.Theme, prof.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	prof.ID = id

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE profile_id = $1`, id); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("links", "id", "profile_id", "title", "url", "style", "position"))
	if err != nil {
		return fmt.Errorf("prepare link copy: %w", err)
	}
	for _, l := range prof.Links {
		if _, err := stmt.ExecContext(ctx, l.ID, id, l.Title, l.URL, l.Style, l.Position); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("copy link: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("flush links: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

// FindAIPage implements [linkpage.AIPageStore].
func (p *Postgres) FindAIPage(ctx context.Context, slug string) (*linkpage.AIPage, bool, error) {
	var page linkpage.AIPage
	err := p.db.QueryRowContext(ctx, `
        SELECT id, slug, owner_username, prompt, html, updated_at
        FROM ai_pages WHERE slug = $1`, slug,
	).Scan(&page.ID, &page.Slug, &page.OwnerUsername, &page.Prompt, &page.HTML, &page.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find ai page %q: %w", slug, err)
	}
	return &page, true, nil
}

// SaveAIPage implements [linkpage.AIPageStore].
func (p *Postgres) SaveAIPage(ctx context.Context, page *linkpage.AIPage) error {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO ai_pages (id, slug, owner_username, prompt, html, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (slug) DO UPDATE SET
            prompt     = EXCLUDED.prompt,
            html       = EXCLUDED.html,
            updated_at = EXCLUDED.updated_at`,
		page.ID, page.Slug, page.OwnerUsername, page.Prompt, page.HTML, page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert ai page: %w", err)
	}
	return nil
}

// DeleteAIPage implements [linkpage.AIPageStore].
func (p *Postgres) DeleteAIPage(ctx context.Context, slug string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM ai_pages WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("delete ai page: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Transient reports whether err is worth retrying: a dropped connection, a
// network error, or a Postgres error in the connection, resource or
// transaction-rollback classes.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
