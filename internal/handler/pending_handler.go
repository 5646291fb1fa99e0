package handler

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/internal/filter"
	"github.com/scoutbase/portal-api/internal/middleware"
	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/pagination"
	"github.com/scoutbase/portal-api/internal/service"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
	"github.com/scoutbase/portal-api/pkg/response"
)

// PendingHandler serves the unified pending-submission review surface.
// Per-session state (debouncers here, list views in the review service) is
// released on revocation via Evict and swept once idle past maxIdle, so
// expired sessions do not accumulate state for the process lifetime.
type PendingHandler struct {
	reviews *service.ReviewService
	roster  *service.RosterService
	settle  time.Duration
	maxIdle time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu         sync.Mutex
	debouncers map[string]*sessionSearch

	stop     chan struct{}
	stopOnce sync.Once
}

// sessionSearch is the per-session type-ahead state: the debouncer plus
// the upstream token and page size of the most recent request, captured
// for the background refetch the settled search triggers.
type sessionSearch struct {
	debouncer *filter.Debouncer
	mu        sync.Mutex
	token     string
	pageSize  int

	lastUsed time.Time // guarded by the handler mutex
}

// NewPendingHandler constructs the review handler. maxIdle bounds how long
// a session's in-process state outlives its last request; pass the session
// TTL so both expire together.
func NewPendingHandler(reviews *service.ReviewService, roster *service.RosterService, settle, maxIdle time.Duration, logger *zap.Logger) *PendingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	h := &PendingHandler{
		reviews:    reviews,
		roster:     roster,
		settle:     settle,
		maxIdle:    maxIdle,
		logger:     logger,
		now:        time.Now,
		debouncers: make(map[string]*sessionSearch),
		stop:       make(chan struct{}),
	}
	go h.janitor()
	return h
}

// List returns one page of the unified submission list.
//
// With typeahead=true the request feeds the session's debouncer and the
// current snapshot is returned immediately; once the search text settles,
// a single background refetch lands and subsequent polls see it. Rapid
// keystrokes therefore cost one upstream call, not one per keystroke.
func (h *PendingHandler) List(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 0)
	filters := filtersFromQuery(c)

	if c.Query("typeahead") == "true" {
		h.typeahead(c, sess, pageSize, filters)
		return
	}

	gen := h.reviews.NextGeneration(sess.ID)
	result, err := h.reviews.LoadPage(c.Request.Context(), sess.ID, sess.UpstreamToken, service.LoadRequest{
		Page:       page,
		PageSize:   pageSize,
		Filters:    filters,
		Generation: gen,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.respondPage(c, sess.ID, result)
}

func (h *PendingHandler) typeahead(c *gin.Context, sess *models.Session, pageSize int, filters filter.State) {
	search := h.sessionSearch(sess.ID)
	search.mu.Lock()
	search.token = sess.UpstreamToken
	search.pageSize = pageSize
	search.mu.Unlock()
	search.debouncer.Search(filters.Search)

	snapshot := h.reviews.Snapshot(sess.ID)
	if snapshot == nil {
		snapshot = &models.PendingPage{Submissions: []models.Submission{}, Page: 1}
	}
	meta := map[string]interface{}{
		"phase":   string(h.reviews.Phase(sess.ID)),
		"showing": showingFor(snapshot),
	}
	response.JSON(c, http.StatusOK, snapshot, &models.Pagination{
		Page:       snapshot.Page,
		PageSize:   snapshot.PageSize,
		TotalCount: snapshot.TotalItems,
	}, meta)
}

// sessionSearch returns the per-session debouncer, creating it on first
// use. A settled search always refetches page 1: a changed filter must
// never strand the user on an out-of-range page.
func (h *PendingHandler) sessionSearch(sessionID string) *sessionSearch {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.debouncers[sessionID]; ok {
		existing.lastUsed = h.now()
		return existing
	}

	search := &sessionSearch{lastUsed: h.now()}
	search.debouncer = filter.NewDebouncer(h.settle, func(trigger filter.Trigger) {
		search.mu.Lock()
		token := search.token
		pageSize := search.pageSize
		search.mu.Unlock()

		gen := h.reviews.NextGeneration(sessionID)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := h.reviews.LoadPage(ctx, sessionID, token, service.LoadRequest{
			Page:       1,
			PageSize:   pageSize,
			Filters:    trigger.State,
			Generation: gen,
		}); err != nil {
			h.logger.Debug("typeahead refetch failed", zap.Error(err))
		}
	})
	h.debouncers[sessionID] = search
	return search
}

// Detail serves a single submission from the session's loaded page.
func (h *PendingHandler) Detail(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	sub, err := h.reviews.Detail(sess.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Approve accepts a submission, then refetches the current page with the
// caller's unchanged list parameters and returns both.
func (h *PendingHandler) Approve(c *gin.Context) {
	h.decide(c, h.reviews.Approve)
}

// Reject declines a submission with the same refetch discipline.
func (h *PendingHandler) Reject(c *gin.Context) {
	h.decide(c, h.reviews.Reject)
}

func (h *PendingHandler) decide(c *gin.Context, action func(context.Context, string, string, string) (string, error)) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}

	message, err := action(c.Request.Context(), sess.ID, sess.UpstreamToken, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.roster.InvalidateStats(c.Request.Context())

	// refetch the page the caller was looking at, parameters unchanged
	gen := h.reviews.NextGeneration(sess.ID)
	result, err := h.reviews.LoadPage(c.Request.Context(), sess.ID, sess.UpstreamToken, service.LoadRequest{
		Page:       intQuery(c, "page", 1),
		PageSize:   intQuery(c, "page_size", 0),
		Filters:    filtersFromQuery(c),
		Generation: gen,
	})
	if err != nil {
		// the decision stuck; report it even though the refetch failed
		h.logger.Warn("refetch after decision failed", zap.Error(err))
		response.JSON(c, http.StatusOK, gin.H{"message": message}, nil)
		return
	}

	meta := map[string]interface{}{"message": message, "showing": showingFor(result)}
	response.JSON(c, http.StatusOK, result, &models.Pagination{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalItems,
	}, meta)
}

// Stats serves roster-wide pending statistics.
func (h *PendingHandler) Stats(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
		return
	}
	stats, err := h.roster.PendingStats(c.Request.Context(), sess.UpstreamToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Evict drops everything held for a session. Wired to the revocation
// watcher, so a logout in any tab or instance frees this instance's state
// for the session immediately.
func (h *PendingHandler) Evict(sessionID string) {
	h.mu.Lock()
	if search, ok := h.debouncers[sessionID]; ok {
		search.debouncer.Stop()
		delete(h.debouncers, sessionID)
	}
	h.mu.Unlock()
	h.reviews.Release(sessionID)
}

// Close stops the janitor and releases every session debouncer.
func (h *PendingHandler) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, search := range h.debouncers {
		search.debouncer.Stop()
	}
	h.debouncers = make(map[string]*sessionSearch)
}

func (h *PendingHandler) janitor() {
	interval := h.maxIdle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.sweepIdle()
		}
	}
}

// sweepIdle drops debouncers and review views idle past maxIdle. Sessions
// that log out are evicted eagerly; this catches the ones that simply
// expire.
func (h *PendingHandler) sweepIdle() {
	cutoff := h.now().Add(-h.maxIdle)

	h.mu.Lock()
	var expired []string
	for id, search := range h.debouncers {
		if search.lastUsed.Before(cutoff) {
			search.debouncer.Stop()
			delete(h.debouncers, id)
			expired = append(expired, id)
		}
	}
	h.mu.Unlock()

	for _, id := range expired {
		h.reviews.Release(id)
	}
	views := h.reviews.ReleaseIdle(h.maxIdle)
	if len(expired) > 0 || views > 0 {
		h.logger.Debug("idle session state swept",
			zap.Int("debouncers", len(expired)),
			zap.Int("views", views))
	}
}

func (h *PendingHandler) respondPage(c *gin.Context, sessionID string, result *models.PendingPage) {
	meta := map[string]interface{}{
		"phase":   string(h.reviews.Phase(sessionID)),
		"showing": showingFor(result),
	}
	response.JSON(c, http.StatusOK, result, &models.Pagination{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalItems,
	}, meta)
}

func showingFor(page *models.PendingPage) string {
	st := pagination.State{Page: page.Page, PageSize: page.PageSize, TotalItems: page.TotalItems}
	if st.Page < 1 {
		st.Page = 1
	}
	if st.PageSize <= 0 {
		st.PageSize = 10
	}
	return st.Showing()
}

func filtersFromQuery(c *gin.Context) filter.State {
	return filter.State{
		Search:       c.Query("search"),
		Status:       c.Query("status"),
		Type:         c.Query("type"),
		Section:      c.Query("section"),
		StateCouncil: c.Query("state_council"),
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
