package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/internal/filter"
	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/normalize"
	"github.com/scoutbase/portal-api/internal/pagination"
	"github.com/scoutbase/portal-api/internal/upstream"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

// reviewBoundary is the slice of the membership client the review workflow
// depends on.
type reviewBoundary interface {
	PendingSubmissions(ctx context.Context, token string, q upstream.PendingQuery) (*upstream.PendingBatch, error)
	AcceptItem(ctx context.Context, token, id string) (string, error)
	RejectItem(ctx context.Context, token, id string) (string, error)
}

// ReviewPhase tracks where a session's review surface sits in its
// load/submit cycle.
type ReviewPhase string

const (
	PhaseIdle       ReviewPhase = "idle"
	PhaseLoading    ReviewPhase = "loading"
	PhaseLoaded     ReviewPhase = "loaded"
	PhaseSubmitting ReviewPhase = "submitting"
)

// LoadRequest scopes one unified-list fetch. Generation carries the token
// issued when the request was dispatched; responses belonging to an older
// generation than the newest dispatched one are discarded.
type LoadRequest struct {
	Page       int
	PageSize   int
	Filters    filter.State
	Generation uint64
}

// reviewView is one session's list state: its loaded snapshot, phase and
// generation counter. Sessions never see each other's views, so one user's
// navigation cannot stale-out or leak rows into another's.
type reviewView struct {
	mu       sync.Mutex
	latest   uint64
	phase    ReviewPhase
	snapshot *models.PendingPage

	lastUsed time.Time // guarded by the service mutex, not v.mu
}

// ReviewService drives the pending-submission review workflow: loading the
// unified list, approving or rejecting individual records, and serving
// detail views from the last loaded page. Approve/reject never mutate the
// loaded rows; the caller refetches with unchanged parameters on success.
// All state is keyed by session ID.
type ReviewService struct {
	upstream        reviewBoundary
	defaultPageSize int
	logger          *zap.Logger
	now             func() time.Time

	mu    sync.Mutex
	views map[string]*reviewView
}

// ReviewServiceParams bundles review service dependencies.
type ReviewServiceParams struct {
	Upstream        reviewBoundary
	DefaultPageSize int
	Logger          *zap.Logger
}

// NewReviewService constructs the review workflow service.
func NewReviewService(params ReviewServiceParams) *ReviewService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := params.DefaultPageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	return &ReviewService{
		upstream:        params.Upstream,
		defaultPageSize: pageSize,
		logger:          logger,
		now:             time.Now,
		views:           make(map[string]*reviewView),
	}
}

// view returns the session's state, creating it on first use.
func (s *ReviewService) view(sessionID string) *reviewView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[sessionID]
	if !ok {
		v = &reviewView{phase: PhaseIdle}
		s.views[sessionID] = v
	}
	v.lastUsed = s.now()
	return v
}

// Release drops a session's list state. Called when the session is revoked
// or swept after expiry.
func (s *ReviewService) Release(sessionID string) {
	s.mu.Lock()
	delete(s.views, sessionID)
	s.mu.Unlock()
}

// ReleaseIdle drops every view untouched for longer than maxIdle and
// reports how many were dropped. Sessions expire out of the store on their
// own; this keeps the in-process mirror from outliving them.
func (s *ReviewService) ReleaseIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, v := range s.views {
		if v.lastUsed.Before(cutoff) {
			delete(s.views, id)
			dropped++
		}
	}
	return dropped
}

// NextGeneration issues the session's next monotonically increasing token.
// Callers stamp it on the LoadRequest they dispatch; only responses
// carrying the session's newest token are allowed to land.
func (s *ReviewService) NextGeneration(sessionID string) uint64 {
	v := s.view(sessionID)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.latest++
	return v.latest
}

// Phase reports the session's current workflow phase.
func (s *ReviewService) Phase(sessionID string) ReviewPhase {
	v := s.view(sessionID)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.phase
}

// LoadPage fetches one page of the unified submission list for a session.
// The four record arrays arrive in a single upstream call and are flattened
// in fixed type order. TotalItems is the sum of the four server-reported
// counts; the length of the flattened array is exposed separately as
// UnifiedCount.
//
// A response that lost the race to a newer request from the same session
// returns ErrStaleRequest and leaves the previously loaded page untouched.
// The generation check happens under the same lock as the snapshot write,
// so a superseded response can never land between check and write.
func (s *ReviewService) LoadPage(ctx context.Context, sessionID, token string, req LoadRequest) (*models.PendingPage, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = s.defaultPageSize
	}

	v := s.view(sessionID)
	v.setPhase(PhaseLoading)

	batch, err := s.upstream.PendingSubmissions(ctx, token, upstream.PendingQuery{
		Page:         req.Page,
		Limit:        req.PageSize,
		Search:       req.Filters.Search,
		Status:       req.Filters.Status,
		Type:         req.Filters.Type,
		Section:      req.Filters.Section,
		StateCouncil: req.Filters.StateCouncil,
	})
	if err != nil {
		v.restorePhase()
		return nil, err
	}

	submissions := normalize.Submissions(batch.Events, batch.Trainings, batch.Awards, batch.ActivityLogs)
	total := batch.Counts.EventsCount + batch.Counts.TrainingsCount + batch.Counts.AwardsCount + batch.Counts.LogsCount

	st := pagination.New(req.PageSize, total)
	if !st.GoTo(req.Page) {
		st.GoTo(st.TotalPages())
	}

	page := &models.PendingPage{
		Submissions:  submissions,
		Page:         st.Page,
		PageSize:     st.PageSize,
		TotalItems:   total,
		UnifiedCount: len(submissions),
	}

	v.mu.Lock()
	if req.Generation != 0 && req.Generation < v.latest {
		latest := v.latest
		v.restorePhaseLocked()
		v.mu.Unlock()
		s.logger.Debug("discarding stale submission page",
			zap.String("session_id", sessionID),
			zap.Uint64("generation", req.Generation),
			zap.Uint64("latest", latest))
		return nil, appErrors.Clone(appErrors.ErrStaleRequest, "a newer request superseded this response")
	}
	v.snapshot = page
	v.phase = PhaseLoaded
	v.mu.Unlock()

	return page, nil
}

// Snapshot returns the session's last successfully loaded page, or nil
// before its first load.
func (s *ReviewService) Snapshot(sessionID string) *models.PendingPage {
	v := s.view(sessionID)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot
}

// Detail looks a submission up in the session's last loaded page. Detail
// views render from already-fetched rows; nothing is refetched per record,
// and a row another session loaded is not visible here.
func (s *ReviewService) Detail(sessionID, id string) (*models.Submission, error) {
	v := s.view(sessionID)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.snapshot != nil {
		for i := range v.snapshot.Submissions {
			if v.snapshot.Submissions[i].ID == id {
				sub := v.snapshot.Submissions[i]
				return &sub, nil
			}
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "submission is not part of the loaded page")
}

// Approve accepts a submission upstream. On failure the session's loaded
// page is left exactly as it was; on success the caller refetches the
// current page with unchanged parameters.
func (s *ReviewService) Approve(ctx context.Context, sessionID, token, id string) (string, error) {
	return s.decide(ctx, sessionID, token, id, s.upstream.AcceptItem)
}

// Reject declines a submission upstream with the same state discipline as
// Approve.
func (s *ReviewService) Reject(ctx context.Context, sessionID, token, id string) (string, error) {
	return s.decide(ctx, sessionID, token, id, s.upstream.RejectItem)
}

func (s *ReviewService) decide(ctx context.Context, sessionID, token, id string, call func(context.Context, string, string) (string, error)) (string, error) {
	v := s.view(sessionID)
	v.setPhase(PhaseSubmitting)
	message, err := call(ctx, token, id)
	v.restorePhase()
	if err != nil {
		s.logger.Warn("submission decision failed", zap.String("id", id), zap.Error(err))
		return "", err
	}
	return message, nil
}

func (v *reviewView) setPhase(phase ReviewPhase) {
	v.mu.Lock()
	v.phase = phase
	v.mu.Unlock()
}

func (v *reviewView) restorePhase() {
	v.mu.Lock()
	v.restorePhaseLocked()
	v.mu.Unlock()
}

// restorePhaseLocked returns to Loaded when a page has been fetched before,
// Idle otherwise.
func (v *reviewView) restorePhaseLocked() {
	if v.snapshot != nil {
		v.phase = PhaseLoaded
	} else {
		v.phase = PhaseIdle
	}
}
