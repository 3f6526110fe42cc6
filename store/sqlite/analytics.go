package sqlite

import (
	"context"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/hatefsystems/search-engine-core-sub000/store"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type accessColumns struct {
	Country       string `db:"country"`
	City          string `db:"city"`
	BrowserFamily string `db:"browser_family"`
	OSFamily      string `db:"os_family"`
	DeviceClass   string `db:"device_class"`
	ReferrerHost  string `db:"referrer_host"`
}

func (a accessColumns) event() model.AccessEvent {
	return model.AccessEvent{
		Country:       a.Country,
		City:          a.City,
		BrowserFamily: a.BrowserFamily,
		OSFamily:      a.OSFamily,
		DeviceClass:   a.DeviceClass,
		ReferrerHost:  a.ReferrerHost,
	}
}

type clickRow struct {
	ID        string `db:"id"`
	LinkID    string `db:"link_id"`
	ProfileID string `db:"profile_id"`
	ClickedAt int64  `db:"clicked_at"`
	accessColumns
}

type viewRow struct {
	ID        string `db:"id"`
	ProfileID string `db:"profile_id"`
	ViewedAt  int64  `db:"viewed_at"`
	accessColumns
}

func accessParams(a model.AccessEvent) map[string]any {
	return map[string]any{
		"country":        a.Country,
		"city":           a.City,
		"browser_family": a.BrowserFamily,
		"os_family":      a.OSFamily,
		"device_class":   a.DeviceClass,
		"referrer_host":  a.ReferrerHost,
	}
}

// RecordClick inserts a click event
func (s *Store) RecordClick(ctx context.Context, e *model.ClickEvent) error {
	e.ClickedAt = e.ClickedAt.Truncate(time.Millisecond)

	row := accessParams(e.AccessEvent)
	row["id"] = e.ID
	row["link_id"] = e.LinkID
	row["profile_id"] = e.ProfileID
	row["clicked_at"] = store.EventMillis(e.ClickedAt)

	query := `
		INSERT INTO link_click_events (
			id, link_id, profile_id, clicked_at, country, city,
			browser_family, os_family, device_class, referrer_host
		) VALUES (
			:id, :link_id, :profile_id, :clicked_at, :country, :city,
			:browser_family, :os_family, :device_class, :referrer_host
		)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return wrap("RecordClick", "click", e.ID, err)
	}
	return nil
}

// RecordView inserts a view event
func (s *Store) RecordView(ctx context.Context, e *model.ViewEvent) error {
	e.ViewedAt = e.ViewedAt.Truncate(time.Millisecond)

	row := accessParams(e.AccessEvent)
	row["id"] = e.ID
	row["profile_id"] = e.ProfileID
	row["viewed_at"] = store.EventMillis(e.ViewedAt)

	query := `
		INSERT INTO profile_view_events (
			id, profile_id, viewed_at, country, city,
			browser_family, os_family, device_class, referrer_host
		) VALUES (
			:id, :profile_id, :viewed_at, :country, :city,
			:browser_family, :os_family, :device_class, :referrer_host
		)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return wrap("RecordView", "view", e.ID, err)
	}
	return nil
}

// clickWhere builds the filter for click queries: link wins over profile
func clickWhere(q model.AnalyticsQuery) (string, []any) {
	where, args := ` WHERE profile_id = ?`, []any{q.ProfileID}
	if q.LinkID != "" {
		where, args = ` WHERE link_id = ?`, []any{q.LinkID}
	}
	return withWindow(where, args, "clicked_at", q)
}

func viewWhere(q model.AnalyticsQuery) (string, []any) {
	return withWindow(` WHERE profile_id = ?`, []any{q.ProfileID}, "viewed_at", q)
}

// withWindow appends the since (inclusive) and until (exclusive) bounds
func withWindow(where string, args []any, column string, q model.AnalyticsQuery) (string, []any) {
	if !q.Since.IsZero() {
		where += ` AND ` + column + ` >= ?`
		args = append(args, store.CutoffMillis(q.Since))
	}
	if !q.Until.IsZero() {
		where += ` AND ` + column + ` < ?`
		args = append(args, store.CutoffMillis(q.Until))
	}
	return where, args
}

// CountClicks counts clicks for a link or a profile within the window
func (s *Store) CountClicks(ctx context.Context, q model.AnalyticsQuery) (int64, error) {
	where, args := clickWhere(q)
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM link_click_events`+where, args...); err != nil {
		return 0, wrap("CountClicks", "click", q.ProfileID, err)
	}
	return n, nil
}

// CountViews counts profile views within the window
func (s *Store) CountViews(ctx context.Context, q model.AnalyticsQuery) (int64, error) {
	where, args := viewWhere(q)
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM profile_view_events`+where, args...); err != nil {
		return 0, wrap("CountViews", "view", q.ProfileID, err)
	}
	return n, nil
}

// RecentClicks returns up to limit clicks, newest first
func (s *Store) RecentClicks(ctx context.Context, q model.AnalyticsQuery, limit int) ([]model.ClickEvent, error) {
	events := []model.ClickEvent{}
	if limit <= 0 {
		return events, nil
	}

	where, args := clickWhere(q)
	var rows []clickRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM link_click_events`+where+` ORDER BY clicked_at DESC, id DESC LIMIT ?`,
		append(args, limit)...)
	if err != nil {
		return nil, wrap("RecentClicks", "click", q.ProfileID, err)
	}

	for _, r := range rows {
		events = append(events, model.ClickEvent{
			ID:          r.ID,
			LinkID:      r.LinkID,
			ProfileID:   r.ProfileID,
			ClickedAt:   time.UnixMilli(r.ClickedAt).UTC(),
			AccessEvent: r.event(),
		})
	}
	return events, nil
}

// RecentViews returns up to limit views, newest first
func (s *Store) RecentViews(ctx context.Context, q model.AnalyticsQuery, limit int) ([]model.ViewEvent, error) {
	events := []model.ViewEvent{}
	if limit <= 0 {
		return events, nil
	}

	where, args := viewWhere(q)
	var rows []viewRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM profile_view_events`+where+` ORDER BY viewed_at DESC, id DESC LIMIT ?`,
		append(args, limit)...)
	if err != nil {
		return nil, wrap("RecentViews", "view", q.ProfileID, err)
	}

	for _, r := range rows {
		events = append(events, model.ViewEvent{
			ID:          r.ID,
			ProfileID:   r.ProfileID,
			ViewedAt:    time.UnixMilli(r.ViewedAt).UTC(),
			AccessEvent: r.event(),
		})
	}
	return events, nil
}

// PurgeBefore deletes events older than cutoff from both event tables in one transaction
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	bound := store.CutoffMillis(cutoff)
	var purged int64

	err := s.withTx(ctx, "PurgeBefore", func(tx *sqlx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM link_click_events WHERE clicked_at < ?`,
			`DELETE FROM profile_view_events WHERE viewed_at < ?`,
		} {
			res, err := tx.ExecContext(ctx, stmt, bound)
			if err != nil {
				return wrap("PurgeBefore", "analytics", "", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return wrap("PurgeBefore", "analytics", "", err)
			}
			purged += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("Analytics retention sweep finished")
	return purged, nil
}
