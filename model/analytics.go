package model

import "time"

// AccessEvent holds the privacy-filtered fields shared by clicks and views.
// It never carries an IP address, a user-agent string or coordinates.
type AccessEvent struct {
	Country       string `json:"country,omitempty"`       // ISO country code
	City          string `json:"city,omitempty"`          // English city name
	BrowserFamily string `json:"browserFamily,omitempty"` // e.g. Chrome, Firefox
	OSFamily      string `json:"osFamily,omitempty"`      // e.g. Android, Windows
	DeviceClass   string `json:"deviceClass,omitempty"`   // mobile, tablet, desktop or bot
	ReferrerHost  string `json:"referrerHost,omitempty"`  // Host part of the Referer header only
}

// ClickEvent records one /l/{linkId} redirect
type ClickEvent struct {
	ID        string    `json:"id"` // ULID
	LinkID    string    `json:"linkId"`
	ProfileID string    `json:"profileId"`
	ClickedAt time.Time `json:"clickedAt"`
	AccessEvent
}

// ViewEvent records one public profile view
type ViewEvent struct {
	ID        string    `json:"id"` // ULID
	ProfileID string    `json:"profileId"`
	ViewedAt  time.Time `json:"viewedAt"`
	AccessEvent
}

// AnalyticsQuery selects events by owner and time window.
// Exactly one of LinkID or ProfileID is used; LinkID wins when both are set.
type AnalyticsQuery struct {
	ProfileID string
	LinkID    string
	Since     time.Time // Inclusive, zero means unbounded
	Until     time.Time // Exclusive, zero means now
}

// LinkAnalytics is the body of GET /api/profiles/{id}/links/analytics
type LinkAnalytics struct {
	ProfileID    string       `json:"profileId"`
	LinkID       string       `json:"linkId,omitempty"`
	Since        time.Time    `json:"since"`
	Until        time.Time    `json:"until"`
	TotalClicks  int64        `json:"totalClicks"`
	TotalViews   int64        `json:"totalViews"`
	LinkClicks   []LinkCount  `json:"linkClicks,omitempty"` // Per-link click counts when no linkId filter is given
	RecentClicks []ClickEvent `json:"recentClicks"`
	RecentViews  []ViewEvent  `json:"recentViews,omitempty"`
}

// LinkCount is the click count of one link
type LinkCount struct {
	LinkID string `json:"linkId"`
	Title  string `json:"title"`
	Clicks int64  `json:"clicks"`
}

// PurgeResult is returned by the internal maintenance endpoints
type PurgeResult struct {
	Purged int64     `json:"purged"`
	Cutoff time.Time `json:"cutoff"`
}
