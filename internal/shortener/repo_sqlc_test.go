package shortener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sundayezeilo/shortlinks/internal/db"
	"github.com/sundayezeilo/shortlinks/internal/errx"
)

/***************
 * Mocks / Stubs
 ***************/

// mockQueries implements the querier interface for testing.
type mockQueries struct {
	createLinkFunc      func(ctx context.Context, params db.CreateLinkParams) (db.Link, error)
	getLinkBySlugFunc   func(ctx context.Context, slug string) (db.Link, error)
	resolveAndTrackFunc func(ctx context.Context, slug string) (db.Link, error)
	updateLinkFunc      func(ctx context.Context, params db.UpdateLinkParams) (db.Link, error)
	deleteLinkFunc      func(ctx context.Context, id uuid.UUID) (int64, error)
	listByAuthorFunc    func(ctx context.Context, params db.ListLinksByAuthorParams) ([]db.LinkWithAuthor, error)
	countByAuthorFunc   func(ctx context.Context, authorID uuid.UUID) (int64, error)
}

func (m *mockQueries) CreateLink(ctx context.Context, params db.CreateLinkParams) (db.Link, error) {
	if m.createLinkFunc != nil {
		return m.createLinkFunc(ctx, params)
	}
	return db.Link{}, nil
}

func (m *mockQueries) GetLinkBySlug(ctx context.Context, slug string) (db.Link, error) {
	if m.getLinkBySlugFunc != nil {
		return m.getLinkBySlugFunc(ctx, slug)
	}
	return db.Link{}, pgx.ErrNoRows
}

func (m *mockQueries) ResolveAndTrackLink(ctx context.Context, slug string) (db.Link, error) {
	if m.resolveAndTrackFunc != nil {
		return m.resolveAndTrackFunc(ctx, slug)
	}
	return db.Link{}, pgx.ErrNoRows
}

func (m *mockQueries) UpdateLink(ctx context.Context, params db.UpdateLinkParams) (db.Link, error) {
	if m.updateLinkFunc != nil {
		return m.updateLinkFunc(ctx, params)
	}
	return db.Link{}, pgx.ErrNoRows
}

func (m *mockQueries) DeleteLink(ctx context.Context, id uuid.UUID) (int64, error) {
	if m.deleteLinkFunc != nil {
		return m.deleteLinkFunc(ctx, id)
	}
	return 0, nil
}

func (m *mockQueries) ListLinksByAuthor(ctx context.Context, params db.ListLinksByAuthorParams) ([]db.LinkWithAuthor, error) {
	if m.listByAuthorFunc != nil {
		return m.listByAuthorFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockQueries) CountLinksByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error) {
	if m.countByAuthorFunc != nil {
		return m.countByAuthorFunc(ctx, authorID)
	}
	return 0, nil
}

// stubIDGen lets tests control generated IDs deterministically.
type stubIDGen struct {
	id    uuid.UUID
	err   error
	calls int
}

func (g *stubIDGen) Generate() (uuid.UUID, error) {
	g.calls++
	return g.id, g.err
}

/***************
 * Helpers
 ***************/

func makeValidTimestamp(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func makeTestDBLink(now time.Time) db.Link {
	return db.Link{
		ID:          uuid.New(),
		OriginalUrl: "https://example.com",
		Slug:        "test-slug",
		Name:        "example.com",
		IsPublic:    true,
		LikeCount:   2,
		AuthorID:    uuid.New(),
		CreatedAt:   makeValidTimestamp(now),
		UpdatedAt:   makeValidTimestamp(now),
	}
}

func newTestRepo(q querier) Repository {
	return NewRepository(q, &RepositoryConfig{IDGenerator: &stubIDGen{id: uuid.New()}})
}

/***************
 * Unit tests: helpers
 ***************/

func TestMustTime(t *testing.T) {
	t.Run("returns time when timestamp is valid", func(t *testing.T) {
		now := time.Now()

		got, err := mustTime(makeValidTimestamp(now), "test_field")
		if err != nil {
			t.Fatalf("mustTime() unexpected error: %v", err)
		}
		if !got.Equal(now) {
			t.Errorf("mustTime() = %v, want %v", got, now)
		}
	})

	t.Run("returns error when timestamp is invalid", func(t *testing.T) {
		_, err := mustTime(pgtype.Timestamptz{}, "test_field")
		if err == nil {
			t.Fatal("mustTime() expected error, got nil")
		}
		if want := "test_field unexpectedly NULL"; err.Error() != want {
			t.Errorf("mustTime() error = %q, want %q", err.Error(), want)
		}
	})
}

func TestToDomainLink(t *testing.T) {
	t.Run("copies every column", func(t *testing.T) {
		now := time.Now()
		row := makeTestDBLink(now)
		row.Description = "docs"
		row.AccessCount = 5
		row.LastAccessedAt = makeValidTimestamp(now.Add(-time.Hour))

		got, err := toDomainLink(row)
		if err != nil {
			t.Fatalf("toDomainLink() unexpected error: %v", err)
		}

		if got.ID != row.ID || got.Slug != row.Slug || got.OriginalURL != row.OriginalUrl {
			t.Errorf("toDomainLink() identity = %+v, want from %+v", got, row)
		}
		if got.Name != row.Name || got.Description != row.Description || got.IsPublic != row.IsPublic {
			t.Errorf("toDomainLink() details = %+v, want from %+v", got, row)
		}
		if got.LikeCount != 2 || got.AccessCount != 5 {
			t.Errorf("counts = (%d, %d), want (2, 5)", got.LikeCount, got.AccessCount)
		}
		if got.AuthorID != row.AuthorID {
			t.Errorf("AuthorID = %v, want %v", got.AuthorID, row.AuthorID)
		}
		if got.LastAccessedAt == nil {
			t.Error("LastAccessedAt = nil, want non-nil")
		}
	})

	t.Run("handles NULL last_accessed_at", func(t *testing.T) {
		got, err := toDomainLink(makeTestDBLink(time.Now()))
		if err != nil {
			t.Fatalf("toDomainLink() unexpected error: %v", err)
		}
		if got.LastAccessedAt != nil {
			t.Errorf("LastAccessedAt = %v, want nil", got.LastAccessedAt)
		}
	})

	t.Run("returns error when CreatedAt is invalid", func(t *testing.T) {
		row := makeTestDBLink(time.Now())
		row.CreatedAt = pgtype.Timestamptz{}

		if _, err := toDomainLink(row); err == nil {
			t.Fatal("toDomainLink() expected error for invalid CreatedAt, got nil")
		}
	})
}

func TestMapRepoError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errx.Kind
	}{
		{"no rows", pgx.ErrNoRows, errx.NotFound},
		{"slug unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "links_slug_unique"}, errx.Conflict},
		{"other unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_pkey"}, errx.Unavailable},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, errx.NotFound},
		{"other postgres error", &pgconn.PgError{Code: "42P01"}, errx.Unavailable},
		{"generic error", errors.New("connection refused"), errx.Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapRepoError("test.op", tt.err)
			if errx.KindOf(err) != tt.want {
				t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), tt.want)
			}
			if errx.OpOf(err) != "test.op" {
				t.Errorf("OpOf(err) = %q, want %q", errx.OpOf(err), "test.op")
			}
		})
	}
}

/***************
 * Unit tests: repo methods
 ***************/

func TestRepoCreate(t *testing.T) {
	t.Run("generates ID when link.ID is zero", func(t *testing.T) {
		now := time.Now()
		wantID := uuid.New()
		gen := &stubIDGen{id: wantID}

		var captured db.CreateLinkParams
		mock := &mockQueries{
			createLinkFunc: func(_ context.Context, params db.CreateLinkParams) (db.Link, error) {
				captured = params
				row := makeTestDBLink(now)
				row.ID = params.ID
				return row, nil
			},
		}

		r := NewRepository(mock, &RepositoryConfig{IDGenerator: gen})
		author := uuid.New()

		got, err := r.Create(context.Background(), Link{
			Slug:        "abc",
			OriginalURL: "https://example.com",
			Name:        "n",
			IsPublic:    true,
			AuthorID:    author,
		})
		if err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}
		if gen.calls != 1 {
			t.Errorf("generator calls = %d, want 1", gen.calls)
		}
		if captured.ID != wantID || got.ID != wantID {
			t.Errorf("ID = %v (param %v), want %v", got.ID, captured.ID, wantID)
		}
		if captured.AuthorID != author || !captured.IsPublic || captured.Name != "n" {
			t.Errorf("params = %+v, want author, public, name carried", captured)
		}
	})

	t.Run("respects pre-set ID", func(t *testing.T) {
		gen := &stubIDGen{id: uuid.New()}
		preset := uuid.New()

		mock := &mockQueries{
			createLinkFunc: func(_ context.Context, params db.CreateLinkParams) (db.Link, error) {
				row := makeTestDBLink(time.Now())
				row.ID = params.ID
				return row, nil
			},
		}

		got, err := NewRepository(mock, &RepositoryConfig{IDGenerator: gen}).Create(context.Background(), Link{ID: preset})
		if err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}
		if gen.calls != 0 {
			t.Errorf("generator calls = %d, want 0", gen.calls)
		}
		if got.ID != preset {
			t.Errorf("ID = %v, want %v", got.ID, preset)
		}
	})

	t.Run("maps unknown author to NotFound", func(t *testing.T) {
		mock := &mockQueries{
			createLinkFunc: func(context.Context, db.CreateLinkParams) (db.Link, error) {
				return db.Link{}, &pgconn.PgError{Code: "23503"}
			},
		}

		_, err := newTestRepo(mock).Create(context.Background(), Link{Slug: "abc"})
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.NotFound)
		}
	})

	t.Run("returns Unavailable error when generator fails", func(t *testing.T) {
		gen := &stubIDGen{err: errors.New("entropy")}

		_, err := NewRepository(&mockQueries{}, &RepositoryConfig{IDGenerator: gen}).Create(context.Background(), Link{})
		if errx.KindOf(err) != errx.Unavailable {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Unavailable)
		}
	})

	t.Run("returns Internal when a row is malformed", func(t *testing.T) {
		mock := &mockQueries{
			createLinkFunc: func(context.Context, db.CreateLinkParams) (db.Link, error) {
				return db.Link{ID: uuid.New()}, nil
			},
		}

		_, err := newTestRepo(mock).Create(context.Background(), Link{Slug: "abc"})
		if errx.KindOf(err) != errx.Internal {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Internal)
		}
	})
}

func TestRepoLookups(t *testing.T) {
	row := makeTestDBLink(time.Now())
	mock := &mockQueries{
		getLinkBySlugFunc: func(_ context.Context, slug string) (db.Link, error) {
			if slug == row.Slug {
				return row, nil
			}
			return db.Link{}, pgx.ErrNoRows
		},
		resolveAndTrackFunc: func(_ context.Context, slug string) (db.Link, error) {
			if slug == row.Slug {
				tracked := row
				tracked.AccessCount++
				return tracked, nil
			}
			return db.Link{}, pgx.ErrNoRows
		},
	}
	r := newTestRepo(mock)

	t.Run("GetBySlug finds the link", func(t *testing.T) {
		got, err := r.GetBySlug(context.Background(), row.Slug)
		if err != nil {
			t.Fatalf("GetBySlug() unexpected error: %v", err)
		}
		if got.ID != row.ID {
			t.Errorf("GetBySlug() ID = %v, want %v", got.ID, row.ID)
		}
	})

	t.Run("ResolveAndTrack returns the counted row", func(t *testing.T) {
		got, err := r.ResolveAndTrack(context.Background(), row.Slug)
		if err != nil {
			t.Fatalf("ResolveAndTrack() unexpected error: %v", err)
		}
		if got.AccessCount != 1 {
			t.Errorf("AccessCount = %d, want 1", got.AccessCount)
		}
	})

	t.Run("missing slugs are NotFound", func(t *testing.T) {
		_, err := r.GetBySlug(context.Background(), "missing")
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("GetBySlug KindOf(err) = %v, want %v", errx.KindOf(err), errx.NotFound)
		}
		_, err = r.ResolveAndTrack(context.Background(), "missing")
		if errx.OpOf(err) != "shortener.repo.ResolveAndTrack" {
			t.Errorf("OpOf(err) = %q, want %q", errx.OpOf(err), "shortener.repo.ResolveAndTrack")
		}
	})
}

func TestRepoUpdate(t *testing.T) {
	var captured db.UpdateLinkParams
	mock := &mockQueries{
		updateLinkFunc: func(_ context.Context, params db.UpdateLinkParams) (db.Link, error) {
			captured = params
			row := makeTestDBLink(time.Now())
			row.ID = params.ID
			row.Name = params.Name
			return row, nil
		},
	}

	link := Link{ID: uuid.New(), OriginalURL: "https://new.example.com", Name: "renamed", Description: "d", IsPublic: false}
	got, err := newTestRepo(mock).Update(context.Background(), link)
	if err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	if captured.ID != link.ID || captured.OriginalUrl != link.OriginalURL || captured.IsPublic {
		t.Errorf("params = %+v, want from %+v", captured, link)
	}
	if got.Name != "renamed" {
		t.Errorf("Name = %q, want %q", got.Name, "renamed")
	}
}

func TestRepoDelete(t *testing.T) {
	t.Run("deletes by id", func(t *testing.T) {
		id := uuid.New()
		mock := &mockQueries{
			deleteLinkFunc: func(_ context.Context, got uuid.UUID) (int64, error) {
				if got != id {
					t.Errorf("id = %v, want %v", got, id)
				}
				return 1, nil
			},
		}

		if err := newTestRepo(mock).Delete(context.Background(), id); err != nil {
			t.Fatalf("Delete() unexpected error: %v", err)
		}
	})

	t.Run("returns NotFound when no row was deleted", func(t *testing.T) {
		err := newTestRepo(&mockQueries{}).Delete(context.Background(), uuid.New())
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.NotFound)
		}
		if errx.OpOf(err) != "shortener.repo.Delete" {
			t.Errorf("OpOf(err) = %q, want %q", errx.OpOf(err), "shortener.repo.Delete")
		}
	})
}

func TestRepoListByAuthor(t *testing.T) {
	author := uuid.New()

	t.Run("returns rows with author names and the total", func(t *testing.T) {
		var captured db.ListLinksByAuthorParams
		mock := &mockQueries{
			listByAuthorFunc: func(_ context.Context, params db.ListLinksByAuthorParams) ([]db.LinkWithAuthor, error) {
				captured = params
				return []db.LinkWithAuthor{
					{Link: makeTestDBLink(time.Now()), AuthorName: "ada"},
				}, nil
			},
			countByAuthorFunc: func(context.Context, uuid.UUID) (int64, error) { return 7, nil },
		}

		links, total, err := newTestRepo(mock).ListByAuthor(context.Background(), author, 5, 10)
		if err != nil {
			t.Fatalf("ListByAuthor() unexpected error: %v", err)
		}
		if captured.AuthorID != author || captured.Limit != 5 || captured.Offset != 10 {
			t.Errorf("params = %+v, want author, 5, 10", captured)
		}
		if total != 7 {
			t.Errorf("total = %d, want 7", total)
		}
		if len(links) != 1 || links[0].AuthorName != "ada" {
			t.Errorf("links = %+v, want one link by ada", links)
		}
	})

	t.Run("maps query failures to Unavailable", func(t *testing.T) {
		mock := &mockQueries{
			countByAuthorFunc: func(context.Context, uuid.UUID) (int64, error) {
				return 0, errors.New("connection reset")
			},
		}

		_, _, err := newTestRepo(mock).ListByAuthor(context.Background(), author, 5, 0)
		if errx.KindOf(err) != errx.Unavailable {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Unavailable)
		}
	})
}

func TestNewRepository_DefaultsToUUIDv7(t *testing.T) {
	var captured uuid.UUID
	mock := &mockQueries{
		createLinkFunc: func(_ context.Context, params db.CreateLinkParams) (db.Link, error) {
			captured = params.ID
			row := makeTestDBLink(time.Now())
			row.ID = params.ID
			return row, nil
		},
	}

	if _, err := NewRepository(mock, nil).Create(context.Background(), Link{Slug: "abc"}); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if captured.Version() != 7 {
		t.Fatalf("default generator UUID version=%d want 7", captured.Version())
	}
}
