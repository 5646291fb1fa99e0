// Package pagination implements the page-state controller shared by every
// list view: bounded navigation, raw text page input and the visible row
// range rendered as "Showing X to Y of Z".
package pagination

import (
	"fmt"
	"strconv"
	"strings"
)

// State tracks the current page window over a known total. The invariant
// 1 <= Page <= TotalPages() holds after every operation; out-of-range
// navigation is clamped to a no-op rather than rejected.
type State struct {
	Page       int
	PageSize   int
	TotalItems int
}

// New returns a state positioned on the first page.
func New(pageSize, totalItems int) State {
	if pageSize <= 0 {
		pageSize = 10
	}
	if totalItems < 0 {
		totalItems = 0
	}
	return State{Page: 1, PageSize: pageSize, TotalItems: totalItems}
}

// TotalPages derives the page count, floored at 1 so an empty result set
// still renders a single (empty) page.
func (s State) TotalPages() int {
	if s.PageSize <= 0 {
		return 1
	}
	pages := (s.TotalItems + s.PageSize - 1) / s.PageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// GoTo navigates to the given page. Requests outside [1, TotalPages] leave
// the state untouched and report false. Navigation never errors.
func (s *State) GoTo(page int) bool {
	if page < 1 || page > s.TotalPages() {
		return false
	}
	s.Page = page
	return true
}

// Next advances one page, guarded by GoTo's bounds check.
func (s *State) Next() bool {
	return s.GoTo(s.Page + 1)
}

// Previous steps back one page, guarded by GoTo's bounds check.
func (s *State) Previous() bool {
	return s.GoTo(s.Page - 1)
}

// GoToInput parses free-form page input from the user. Garbage or
// out-of-range input is absorbed silently: the state stays where it was.
func (s *State) GoToInput(raw string) bool {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return s.GoTo(page)
}

// SetTotal updates the known item count and clamps the current page back
// into range when the result set shrank underneath it.
func (s *State) SetTotal(totalItems int) {
	if totalItems < 0 {
		totalItems = 0
	}
	s.TotalItems = totalItems
	if s.Page > s.TotalPages() {
		s.Page = s.TotalPages()
	}
	if s.Page < 1 {
		s.Page = 1
	}
}

// Range returns the 1-based start and end of the visible row window. An
// empty result set yields (0, 0), not (1, 0).
func (s State) Range() (start, end int) {
	if s.TotalItems == 0 {
		return 0, 0
	}
	start = (s.Page-1)*s.PageSize + 1
	end = s.Page * s.PageSize
	if end > s.TotalItems {
		end = s.TotalItems
	}
	return start, end
}

// Offset returns the zero-based index of the first visible row, for
// slicing client-side filtered lists.
func (s State) Offset() int {
	return (s.Page - 1) * s.PageSize
}

// Showing renders the display contract used under every list table.
func (s State) Showing() string {
	start, end := s.Range()
	return fmt.Sprintf("Showing %d to %d of %d", start, end, s.TotalItems)
}

// Meta converts the state into response pagination metadata.
func (s State) Meta() (page, pageSize, total int) {
	return s.Page, s.PageSize, s.TotalItems
}
