package domain

import (
	"strings"
	"time"
)

// ─── Report Windows ─────────────────────────────────────────────────────────

// ReportWindow is a trailing interval for balance-change reports.
type ReportWindow string

const (
	WindowDay   ReportWindow = "day"
	WindowWeek  ReportWindow = "week"
	WindowMonth ReportWindow = "month"
	WindowYear  ReportWindow = "year"
)

// Windows lists the supported report windows, shortest first.
var Windows = []ReportWindow{WindowDay, WindowWeek, WindowMonth, WindowYear}

// ParseWindow resolves a user supplied window name.
func ParseWindow(s string) (ReportWindow, error) {
	w := ReportWindow(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := w.lookback(); !ok {
		return "", ErrInvalidWindow
	}
	return w, nil
}

// Lookback returns the fixed duration covered by the window.
func (w ReportWindow) Lookback() time.Duration {
	d, _ := w.lookback()
	return d
}

// Since returns the inclusive lower bound of the window ending at now.
func (w ReportWindow) Since(now time.Time) time.Time {
	return now.Add(-w.Lookback())
}

func (w ReportWindow) lookback() (time.Duration, bool) {
	switch w {
	case WindowDay:
		return 24 * time.Hour, true
	case WindowWeek:
		return 7 * 24 * time.Hour, true
	case WindowMonth:
		return 30 * 24 * time.Hour, true
	case WindowYear:
		return 365 * 24 * time.Hour, true
	}
	return 0, false
}

// ─── Pagination ─────────────────────────────────────────────────────────────
// Pages are 0-indexed. An empty list still has one (empty) page so a view
// can always render something.

// DefaultPageSize is the number of feed items per page.
const DefaultPageSize = 5

// Direction is a navigation event emitted by a paged view.
type Direction string

const (
	DirFirst Direction = "first"
	DirPrev  Direction = "prev"
	DirNext  Direction = "next"
	DirLast  Direction = "last"
)

// ParseDirection resolves a navigation event name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirFirst, DirPrev, DirNext, DirLast:
		return d, nil
	}
	return "", ErrInvalidArgument
}

// PageCount returns ceil(count/size), with a minimum of one page.
func PageCount(count, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if count <= 0 {
		return 1
	}
	return (count + size - 1) / size
}

// ClampPage bounds page to [0, total-1].
func ClampPage(page, total int) int {
	if page >= total {
		page = total - 1
	}
	if page < 0 {
		page = 0
	}
	return page
}

// Paginate returns page k of items: the slice [k*size, k*size+size).
// Out-of-range pages are clamped first.
func Paginate[T any](items []T, page, size int) []T {
	if size <= 0 {
		size = DefaultPageSize
	}
	page = ClampPage(page, PageCount(len(items), size))
	start := page * size
	if start >= len(items) {
		return items[:0:0]
	}
	end := min(start+size, len(items))
	return items[start:end]
}

// Navigate applies a navigation event to the current page. It is a pure
// function of its inputs and never leaves [0, total-1].
func Navigate(current int, dir Direction, total int) int {
	if total <= 0 {
		total = 1
	}
	switch dir {
	case DirFirst:
		current = 0
	case DirPrev:
		current--
	case DirNext:
		current++
	case DirLast:
		current = total - 1
	}
	return ClampPage(current, total)
}
