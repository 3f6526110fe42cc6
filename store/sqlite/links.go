package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/hatefsystems/search-engine-core-sub000/store"
)

// linkRow represents a link_blocks row
type linkRow struct {
	ID          string  `db:"id"`
	ProfileID   string  `db:"profile_id"`
	URL         string  `db:"url"`
	Title       string  `db:"title"`
	Description string  `db:"description"`
	IconURL     string  `db:"icon_url"`
	Tags        string  `db:"tags"`
	SortOrder   int     `db:"sort_order"`
	Privacy     string  `db:"privacy"`
	IsActive    bool    `db:"is_active"`
	CreatedAt   string  `db:"created_at"`
	UpdatedAt   string  `db:"updated_at"`
	DeletedAt   *string `db:"deleted_at"`
}

func rowToLink(row *linkRow) (*model.LinkBlock, error) {
	l := &model.LinkBlock{
		ID:          row.ID,
		ProfileID:   row.ProfileID,
		URL:         row.URL,
		Title:       row.Title,
		Description: row.Description,
		IconURL:     row.IconURL,
		SortOrder:   row.SortOrder,
		Privacy:     model.LinkPrivacy(row.Privacy),
		IsActive:    row.IsActive,
	}

	if err := json.Unmarshal([]byte(row.Tags), &l.Tags); err != nil {
		return nil, store.NewStoreError("rowToLink", "link", row.ID, "failed to parse tags", store.ErrInvalidData)
	}

	var err error
	if l.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return nil, store.NewStoreError("rowToLink", "link", row.ID, "invalid created_at", store.ErrInvalidData)
	}
	if l.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return nil, store.NewStoreError("rowToLink", "link", row.ID, "invalid updated_at", store.ErrInvalidData)
	}
	if l.DeletedAt, err = parseTimePtr(row.DeletedAt); err != nil {
		return nil, store.NewStoreError("rowToLink", "link", row.ID, "invalid deleted_at", store.ErrInvalidData)
	}
	return l, nil
}

func linkParams(op string, l *model.LinkBlock) (map[string]any, error) {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, store.NewStoreError(op, "link", l.ID, "failed to serialize tags", store.ErrInvalidData)
	}

	return map[string]any{
		"id":          l.ID,
		"profile_id":  l.ProfileID,
		"url":         l.URL,
		"title":       l.Title,
		"description": l.Description,
		"icon_url":    l.IconURL,
		"tags":        string(tagsJSON),
		"sort_order":  l.SortOrder,
		"privacy":     string(l.Privacy),
		"is_active":   l.IsActive,
		"created_at":  formatTime(l.CreatedAt),
		"updated_at":  formatTime(l.UpdatedAt),
		"deleted_at":  formatTimePtr(l.DeletedAt),
	}, nil
}

// CreateLink inserts a link block
func (s *Store) CreateLink(ctx context.Context, l *model.LinkBlock) error {
	row, err := linkParams("CreateLink", l)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO link_blocks (
			id, profile_id, url, title, description, icon_url, tags, sort_order,
			privacy, is_active, created_at, updated_at, deleted_at
		) VALUES (
			:id, :profile_id, :url, :title, :description, :icon_url, :tags, :sort_order,
			:privacy, :is_active, :created_at, :updated_at, :deleted_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return wrap("CreateLink", "link", l.ID, err)
	}
	return nil
}

// GetLink returns a link block, soft-deleted ones included
func (s *Store) GetLink(ctx context.Context, id string) (*model.LinkBlock, error) {
	var row linkRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM link_blocks WHERE id = ?`, id); err != nil {
		return nil, wrap("GetLink", "link", id, err)
	}
	return rowToLink(&row)
}

// UpdateLink overwrites the mutable fields of a link block
func (s *Store) UpdateLink(ctx context.Context, l *model.LinkBlock) error {
	row, err := linkParams("UpdateLink", l)
	if err != nil {
		return err
	}

	query := `
		UPDATE link_blocks SET
			url = :url, title = :title, description = :description, icon_url = :icon_url,
			tags = :tags, sort_order = :sort_order, privacy = :privacy, is_active = :is_active,
			updated_at = :updated_at, deleted_at = :deleted_at
		WHERE id = :id`

	res, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return wrap("UpdateLink", "link", l.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NewStoreError("UpdateLink", "link", l.ID, "link not found", store.ErrNotFound)
	}
	return nil
}

// DeleteLink deactivates a link and stamps its deletion time
func (s *Store) DeleteLink(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE link_blocks SET is_active = 0, deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(at), formatTime(at), id)
	if err != nil {
		return wrap("DeleteLink", "link", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NewStoreError("DeleteLink", "link", id, "link not found", store.ErrNotFound)
	}
	return nil
}

// ListLinks returns a profile's links ordered by sortOrder, then createdAt
func (s *Store) ListLinks(ctx context.Context, profileID string, filter model.LinkFilter) ([]*model.LinkBlock, error) {
	query := `SELECT * FROM link_blocks WHERE profile_id = ?`
	args := []any{profileID}
	if !filter.IncludeHidden {
		query += ` AND privacy != ?`
		args = append(args, string(model.LinkPrivacyHidden))
	}
	if !filter.IncludeInactive {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY sort_order ASC, created_at ASC, id ASC`

	var rows []linkRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrap("ListLinks", "link", profileID, err)
	}

	links := make([]*model.LinkBlock, 0, len(rows))
	for i := range rows {
		l, err := rowToLink(&rows[i])
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

// DeactivateProfileLinks cascades a profile soft delete to its active links
func (s *Store) DeactivateProfileLinks(ctx context.Context, profileID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE link_blocks SET is_active = 0, deleted_at = ?, updated_at = ?
		WHERE profile_id = ? AND is_active = 1`,
		formatTime(at), formatTime(at), profileID)
	if err != nil {
		return 0, wrap("DeactivateProfileLinks", "link", profileID, err)
	}
	return res.RowsAffected()
}

// ReactivateProfileLinks re-activates the links deactivated by the cascade at deletedAt
func (s *Store) ReactivateProfileLinks(ctx context.Context, profileID string, deletedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE link_blocks SET is_active = 1, deleted_at = NULL, updated_at = ?
		WHERE profile_id = ? AND deleted_at = ?`,
		formatTime(time.Now()), profileID, formatTime(deletedAt))
	if err != nil {
		return 0, wrap("ReactivateProfileLinks", "link", profileID, err)
	}
	return res.RowsAffected()
}
