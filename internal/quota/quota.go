// Package quota enforces per-organization weekly usage limits.
//
// Usage is counted against rolling 7-day windows opened lazily on the first
// admission check. The window's limit is snapshotted from the organization's
// plan at open time: a mid-window plan change takes effect on the next
// window, never retroactively.
package quota

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrOrgNotFound    = errors.New("quota: organization not found")
	ErrOrgSuspended   = errors.New("quota: organization suspended")
	ErrQuotaExceeded  = errors.New("quota: weekly limit exceeded")
	ErrWindowNotFound = errors.New("quota: no open window")
)

// WindowLength is the span of a usage window.
const WindowLength = 7 * 24 * time.Hour

// Window counts an organization's job usage over a bounded period.
type Window struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	Limit       int       `json:"limit"`
	Used        int       `json:"used"`
}

// Remaining returns how many admissions are left in the window.
func (w *Window) Remaining() int {
	if w.Used >= w.Limit {
		return 0
	}
	return w.Limit - w.Used
}

// Covers reports whether the window is open at the given instant.
func (w *Window) Covers(now time.Time) bool {
	return !now.Before(w.WindowStart) && now.Before(w.WindowEnd)
}

// Store persists quota windows and runs the admission check atomically.
type Store interface {
	// Admit finds or opens the organization's current window and increments
	// its used count. The whole sequence is a single atomic read-modify-write
	// per organization: concurrent admissions never over-admit. On denial it
	// returns ErrOrgSuspended or ErrQuotaExceeded; a window opened on the way
	// to a denial is kept.
	Admit(ctx context.Context, orgID string, now time.Time) (*Window, error)

	// Release undoes one admission against the organization's open window,
	// compensating for a failed hand-off after admission. Used never drops
	// below zero.
	Release(ctx context.Context, orgID string, now time.Time) error

	// CurrentWindow returns the window covering now, or ErrWindowNotFound.
	CurrentWindow(ctx context.Context, orgID string, now time.Time) (*Window, error)
}
