package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/hatefsystems/search-engine-core-sub000/store"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// profileRow represents a profile row in the database
type profileRow struct {
	ID             string  `db:"id"`
	Type           string  `db:"type"`
	Slug           string  `db:"slug"`
	PreviousSlugs  string  `db:"previous_slugs"`
	SlugChangedAt  *string `db:"slug_changed_at"`
	DisplayName    string  `db:"display_name"`
	Body           *string `db:"body"`
	OwnerTokenHash string  `db:"owner_token_hash"`
	CreatedAt      string  `db:"created_at"`
	UpdatedAt      string  `db:"updated_at"`
	DeletedAt      *string `db:"deleted_at"`
}

func rowToProfile(row *profileRow) (*model.Profile, error) {
	p := &model.Profile{
		ID:             row.ID,
		Type:           model.ProfileType(row.Type),
		Slug:           row.Slug,
		DisplayName:    row.DisplayName,
		OwnerTokenHash: row.OwnerTokenHash,
	}

	if err := json.Unmarshal([]byte(row.PreviousSlugs), &p.PreviousSlugs); err != nil {
		return nil, store.NewStoreError("rowToProfile", "profile", row.ID, "failed to parse previous slugs", store.ErrInvalidData)
	}
	if row.Body != nil && *row.Body != "" {
		p.Body = json.RawMessage(*row.Body)
	}

	var err error
	if p.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return nil, store.NewStoreError("rowToProfile", "profile", row.ID, "invalid created_at", store.ErrInvalidData)
	}
	if p.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return nil, store.NewStoreError("rowToProfile", "profile", row.ID, "invalid updated_at", store.ErrInvalidData)
	}
	if p.SlugChangedAt, err = parseTimePtr(row.SlugChangedAt); err != nil {
		return nil, store.NewStoreError("rowToProfile", "profile", row.ID, "invalid slug_changed_at", store.ErrInvalidData)
	}
	if p.DeletedAt, err = parseTimePtr(row.DeletedAt); err != nil {
		return nil, store.NewStoreError("rowToProfile", "profile", row.ID, "invalid deleted_at", store.ErrInvalidData)
	}
	return p, nil
}

func encodeSlugs(slugs []string) (string, error) {
	if slugs == nil {
		slugs = []string{}
	}
	data, err := json.Marshal(slugs)
	return string(data), err
}

func bodyValue(body json.RawMessage) *string {
	if len(body) == 0 {
		return nil
	}
	s := string(body)
	return &s
}

func getProfile(ctx context.Context, exec executor, op, id string) (*model.Profile, error) {
	var row profileRow
	if err := exec.GetContext(ctx, &row, `SELECT * FROM profiles WHERE id = ?`, id); err != nil {
		return nil, wrap(op, "profile", id, err)
	}
	return rowToProfile(&row)
}

// CreateProfile inserts the profile and its current slug claim in one transaction
func (s *Store) CreateProfile(ctx context.Context, p *model.Profile) error {
	previous, err := encodeSlugs(p.PreviousSlugs)
	if err != nil {
		return store.NewStoreError("CreateProfile", "profile", p.ID, "failed to serialize previous slugs", store.ErrInvalidData)
	}

	return s.withTx(ctx, "CreateProfile", func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO profiles (
				id, type, slug, previous_slugs, slug_changed_at, display_name, body,
				owner_token_hash, created_at, updated_at, deleted_at
			) VALUES (
				:id, :type, :slug, :previous_slugs, :slug_changed_at, :display_name, :body,
				:owner_token_hash, :created_at, :updated_at, NULL
			)`

		row := map[string]any{
			"id":               p.ID,
			"type":             string(p.Type),
			"slug":             p.Slug,
			"previous_slugs":   previous,
			"slug_changed_at":  formatTimePtr(p.SlugChangedAt),
			"display_name":     p.DisplayName,
			"body":             bodyValue(p.Body),
			"owner_token_hash": p.OwnerTokenHash,
			"created_at":       formatTime(p.CreatedAt),
			"updated_at":       formatTime(p.UpdatedAt),
		}

		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return wrap("CreateProfile", "profile", p.ID, err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO slug_claims (slug, profile_id, kind) VALUES (?, ?, 'current')`,
			p.Slug, p.ID)
		if err != nil {
			if isClaimConflict(err) {
				return store.NewStoreError("CreateProfile", "profile", p.Slug, "slug already claimed", store.ErrSlugConflict)
			}
			return wrap("CreateProfile", "profile", p.ID, err)
		}
		return nil
	})
}

// isClaimConflict reports a duplicate key on slug_claims, whose slug column
// is the primary key.
func isClaimConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// GetProfile returns a live profile
func (s *Store) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM profiles WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, wrap("GetProfile", "profile", id, err)
	}
	return rowToProfile(&row)
}

// GetProfileAny returns a profile, soft-deleted ones included
func (s *Store) GetProfileAny(ctx context.Context, id string) (*model.Profile, error) {
	return getProfile(ctx, s.db, "GetProfileAny", id)
}

func (s *Store) findByClaim(ctx context.Context, op, slug, kind string) (*model.Profile, error) {
	query := `
		SELECT p.* FROM profiles p
		JOIN slug_claims c ON c.profile_id = p.id
		WHERE c.slug = ? AND c.kind = ? AND p.deleted_at IS NULL`

	var row profileRow
	if err := s.db.GetContext(ctx, &row, query, slug, kind); err != nil {
		return nil, wrap(op, "profile", slug, err)
	}
	return rowToProfile(&row)
}

// FindBySlug returns the live profile currently at slug
func (s *Store) FindBySlug(ctx context.Context, slug string) (*model.Profile, error) {
	return s.findByClaim(ctx, "FindBySlug", slug, "current")
}

// FindByPreviousSlug returns the live profile that previously used slug
func (s *Store) FindByPreviousSlug(ctx context.Context, slug string) (*model.Profile, error) {
	return s.findByClaim(ctx, "FindByPreviousSlug", slug, "previous")
}

// IsSlugTaken reports whether any profile claims slug
func (s *Store) IsSlugTaken(ctx context.Context, slug string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM slug_claims WHERE slug = ?`, slug); err != nil {
		return false, wrap("IsSlugTaken", "profile", slug, err)
	}
	return n > 0, nil
}

// UpdateProfile persists display name, body and updatedAt of a live profile
func (s *Store) UpdateProfile(ctx context.Context, p *model.Profile) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET display_name = ?, body = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		p.DisplayName, bodyValue(p.Body), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return wrap("UpdateProfile", "profile", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NewStoreError("UpdateProfile", "profile", p.ID, "profile not found", store.ErrNotFound)
	}
	return nil
}

// UpdateSlug moves the profile to newSlug in one transaction
func (s *Store) UpdateSlug(ctx context.Context, id, newSlug string, at time.Time) (*model.Profile, error) {
	var updated *model.Profile

	err := s.withTx(ctx, "UpdateSlug", func(tx *sqlx.Tx) error {
		cur, err := getProfile(ctx, tx, "UpdateSlug", id)
		if err != nil {
			return err
		}
		if cur.IsDeleted() {
			return store.NewStoreError("UpdateSlug", "profile", id, "profile deleted", store.ErrNotFound)
		}
		if cur.Slug == newSlug {
			updated = cur
			return nil
		}

		var owner string
		err = tx.GetContext(ctx, &owner, `SELECT profile_id FROM slug_claims WHERE slug = ?`, newSlug)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO slug_claims (slug, profile_id, kind) VALUES (?, ?, 'current')`, newSlug, id); err != nil {
				if isClaimConflict(err) {
					return store.NewStoreError("UpdateSlug", "profile", newSlug, "slug already claimed", store.ErrSlugConflict)
				}
				return wrap("UpdateSlug", "profile", id, err)
			}
		case err != nil:
			return wrap("UpdateSlug", "profile", id, err)
		case owner != id:
			return store.NewStoreError("UpdateSlug", "profile", newSlug, "slug already claimed", store.ErrSlugConflict)
		default:
			// Moving back to one of its own previous slugs
			if _, err := tx.ExecContext(ctx,
				`UPDATE slug_claims SET kind = 'current' WHERE slug = ?`, newSlug); err != nil {
				return wrap("UpdateSlug", "profile", id, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE slug_claims SET kind = 'previous' WHERE slug = ? AND profile_id = ?`, cur.Slug, id); err != nil {
			return wrap("UpdateSlug", "profile", id, err)
		}

		cur.PreviousSlugs = append(withoutSlug(cur.PreviousSlugs, newSlug), cur.Slug)
		cur.Slug = newSlug
		changed := at
		cur.SlugChangedAt = &changed
		cur.UpdatedAt = at

		previous, err := encodeSlugs(cur.PreviousSlugs)
		if err != nil {
			return store.NewStoreError("UpdateSlug", "profile", id, "failed to serialize previous slugs", store.ErrInvalidData)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE profiles SET slug = ?, previous_slugs = ?, slug_changed_at = ?, updated_at = ?
			WHERE id = ?`,
			cur.Slug, previous, formatTime(at), formatTime(at), id); err != nil {
			return wrap("UpdateSlug", "profile", id, err)
		}

		updated = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDeleteProfile marks a live profile deleted. Its slug claims are kept.
func (s *Store) SoftDeleteProfile(ctx context.Context, id string, at time.Time) (*model.Profile, error) {
	var deleted *model.Profile

	err := s.withTx(ctx, "SoftDeleteProfile", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE profiles SET deleted_at = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL`,
			formatTime(at), formatTime(at), id)
		if err != nil {
			return wrap("SoftDeleteProfile", "profile", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.NewStoreError("SoftDeleteProfile", "profile", id, "profile not found", store.ErrNotFound)
		}

		deleted, err = getProfile(ctx, tx, "SoftDeleteProfile", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// RestoreProfile clears the deletion marker
func (s *Store) RestoreProfile(ctx context.Context, id string) (*model.Profile, error) {
	var restored *model.Profile

	err := s.withTx(ctx, "RestoreProfile", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE profiles SET deleted_at = NULL, updated_at = ?
			WHERE id = ? AND deleted_at IS NOT NULL`,
			formatTime(time.Now()), id); err != nil {
			return wrap("RestoreProfile", "profile", id, err)
		}

		var err error
		restored, err = getProfile(ctx, tx, "RestoreProfile", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// PurgeDeletedProfiles hard-deletes profiles soft-deleted before the cutoff.
// Slug claims and links go with them through ON DELETE CASCADE.
func (s *Store) PurgeDeletedProfiles(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE deleted_at IS NOT NULL AND deleted_at < ?`, formatTime(before))
	if err != nil {
		return 0, wrap("PurgeDeletedProfiles", "profile", "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("PurgeDeletedProfiles", "profile", "", err)
	}
	return n, nil
}

// ListProfiles returns live profiles, newest first
func (s *Store) ListProfiles(ctx context.Context, offset, limit int) ([]*model.Profile, int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM profiles WHERE deleted_at IS NULL`); err != nil {
		return nil, 0, wrap("ListProfiles", "profile", "", err)
	}

	profiles := []*model.Profile{}
	if limit <= 0 {
		return profiles, total, nil
	}

	var rows []profileRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM profiles WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, wrap("ListProfiles", "profile", "", err)
	}

	for i := range rows {
		p, err := rowToProfile(&rows[i])
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, p)
	}
	return profiles, total, nil
}

func withoutSlug(slugs []string, slug string) []string {
	out := make([]string, 0, len(slugs)+1)
	for _, s := range slugs {
		if s != slug {
			out = append(out, s)
		}
	}
	return out
}
