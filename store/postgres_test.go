package store

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Keksclan/linkSquirrel/linkpage"
)

func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	p, err := OpenPostgres(t.Context(), dsn, 4)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	if err := p.Migrate(t.Context()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return p
}

func TestPostgres_ProfileRoundTrip(t *testing.T) {
	p := newTestPostgres(t)
	ctx := t.Context()
	username := "it_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		_, _ = p.db.Exec(`DELETE FROM profiles WHERE username = $1`, username)
	})

	if _, ok, err := p.FindProfile(ctx, username); err != nil || ok {
		t.Fatalf("FindProfile before save = (%v, %v)", ok, err)
	}

	prof := &linkpage.Profile{
		ID:        uuid.NewString(),
		Username:  username,
		Bio:       "hello",
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Links: []linkpage.Link{
			{ID: uuid.NewString(), Title: "a", URL: "https://a.example", Position: 0},
			{ID: uuid.NewString(), Title: "b", URL: "https://b.example", Position: 1},
		},
	}
	if err := p.SaveProfile(ctx, prof); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	// Replacing drops the old links.
	prof.Links = prof.Links[1:]
	prof.Links[0].Position = 0
	if err := p.SaveProfile(ctx, prof); err != nil {
		t.Fatalf("SaveProfile (replace): %v", err)
	}

	got, ok, err := p.FindProfile(ctx, username)
	if err != nil || !ok {
		t.Fatalf("FindProfile = (%v, %v)", ok, err)
	}
	if got.Bio != "hello" || len(got.Links) != 1 || got.Links[0].Title != "b" {
		t.Fatalf("unexpected profile %+v", got)
	}
}

func TestPostgres_AIPageLifecycle(t *testing.T) {
	p := newTestPostgres(t)
	ctx := t.Context()
	slug := "it-" + uuid.NewString()[:8]

	page := &linkpage.AIPage{ID: uuid.NewString(), Slug: slug, OwnerUsername: "squirrel", HTML: "<p>x</p>", UpdatedAt: time.Now()}
	if err := p.SaveAIPage(ctx, page); err != nil {
		t.Fatalf("SaveAIPage: %v", err)
	}
	got, ok, err := p.FindAIPage(ctx, slug)
	if err != nil || !ok || got.HTML != "<p>x</p>" {
		t.Fatalf("FindAIPage = (%+v, %v, %v)", got, ok, err)
	}
	if err := p.DeleteAIPage(ctx, slug); err != nil {
		t.Fatalf("DeleteAIPage: %v", err)
	}
	if err := p.DeleteAIPage(ctx, slug); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{&pq.Error{Code: "08006"}, true},  // connection_failure
		{&pq.Error{Code: "40001"}, true},  // serialization_failure
		{&pq.Error{Code: "23505"}, false}, // unique_violation
		{ErrNotFound, false},
	}
	for _, c := range cases {
		if got := Transient(c.err); got != c.want {
			t.Errorf("Transient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
