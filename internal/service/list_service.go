package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/internal/filter"
	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/normalize"
	"github.com/scoutbase/portal-api/internal/pagination"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

// listBoundary is the slice of the membership client the list views use.
type listBoundary interface {
	List(ctx context.Context, token string, resource models.ListResource, query url.Values) ([]json.RawMessage, int, error)
}

// serverFiltered marks the resources whose endpoints accept search and
// facet parameters. The rest only support a plain page fetch, so those
// views pull one bulk page and filter locally.
var serverFiltered = map[models.ListResource]bool{
	models.ResourceUsers:  true,
	models.ResourceEvents: true,
}

// ListService serves the generic admin list views. Rows pass through as raw
// JSON; the gateway only owns pagination, filtering strategy and, for the
// audit trail, timestamp rendering.
type ListService struct {
	upstream        listBoundary
	bulkLimit       int
	defaultPageSize int
	logger          *zap.Logger
}

// NewListService constructs the list service.
func NewListService(boundary listBoundary, bulkLimit, defaultPageSize int, logger *zap.Logger) *ListService {
	if bulkLimit <= 0 {
		bulkLimit = 500
	}
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListService{upstream: boundary, bulkLimit: bulkLimit, defaultPageSize: defaultPageSize, logger: logger}
}

// Load fetches one page of an admin list. For server-filtered resources the
// search and facets travel upstream and the server total is trusted. For
// the rest a bulk page is fetched and filtered locally; the reported total
// then counts filtered rows, keeping "Showing X to Y of Z" consistent with
// what is actually visible.
func (s *ListService) Load(ctx context.Context, token string, resource models.ListResource, page, pageSize int, f filter.State) (*models.ListPage, error) {
	if !validResource(resource) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown list resource")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}

	if serverFiltered[resource] {
		return s.loadServerFiltered(ctx, token, resource, page, pageSize, f)
	}
	return s.loadClientFiltered(ctx, token, resource, page, pageSize, f)
}

func (s *ListService) loadServerFiltered(ctx context.Context, token string, resource models.ListResource, page, pageSize int, f filter.State) (*models.ListPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(pageSize))
	if f.Search != "" {
		query.Set("search", f.Search)
	}
	if f.Status != "" {
		query.Set("status", f.Status)
	}
	if f.Section != "" {
		query.Set("section", f.Section)
	}
	if f.StateCouncil != "" {
		query.Set("stateCouncil", f.StateCouncil)
	}

	rows, total, err := s.upstream.List(ctx, token, resource, query)
	if err != nil {
		return nil, err
	}

	st := pagination.New(pageSize, total)
	st.GoTo(page)
	return &models.ListPage{
		Items:      rows,
		Pagination: models.Pagination{Page: st.Page, PageSize: st.PageSize, TotalCount: total},
	}, nil
}

func (s *ListService) loadClientFiltered(ctx context.Context, token string, resource models.ListResource, page, pageSize int, f filter.State) (*models.ListPage, error) {
	rows, err := s.bulkFetch(ctx, token, resource)
	if err != nil {
		return nil, err
	}

	filtered := filterRows(rows, f)

	st := pagination.New(pageSize, len(filtered))
	if !st.GoTo(page) {
		st.GoTo(st.TotalPages())
	}

	start := st.Offset()
	end := start + st.PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	return &models.ListPage{
		Items:      filtered[start:end],
		Pagination: models.Pagination{Page: st.Page, PageSize: st.PageSize, TotalCount: len(filtered)},
	}, nil
}

func (s *ListService) bulkFetch(ctx context.Context, token string, resource models.ListResource) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set("page", "1")
	query.Set("limit", strconv.Itoa(s.bulkLimit))

	rows, total, err := s.upstream.List(ctx, token, resource, query)
	if err != nil {
		return nil, err
	}
	if total > len(rows) {
		s.logger.Warn("bulk fetch truncated",
			zap.String("resource", string(resource)),
			zap.Int("fetched", len(rows)),
			zap.Int("total", total))
	}
	return rows, nil
}

// AuditTrail serves the admin audit log: bulk fetched, filtered locally and
// rendered with the time-of-day timestamp format, which submission dates
// never use.
func (s *ListService) AuditTrail(ctx context.Context, token string, page, pageSize int, f filter.State) ([]models.AuditEntry, models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}

	rows, err := s.bulkFetch(ctx, token, models.ResourceAudit)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	filtered := filterRows(rows, f)

	st := pagination.New(pageSize, len(filtered))
	if !st.GoTo(page) {
		st.GoTo(st.TotalPages())
	}

	start := st.Offset()
	end := start + st.PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	entries := make([]models.AuditEntry, 0, end-start)
	for _, raw := range filtered[start:end] {
		entries = append(entries, decodeAuditRow(raw))
	}

	return entries, models.Pagination{Page: st.Page, PageSize: st.PageSize, TotalCount: len(filtered)}, nil
}

// auditRow tolerates the actor appearing either inline or as a nested user
// object.
type auditRow struct {
	ID       string `json:"_id"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Actor    string `json:"actor"`
	User     struct {
		Name string `json:"name"`
	} `json:"user"`
	CreatedAt string `json:"createdAt"`
}

func decodeAuditRow(raw json.RawMessage) models.AuditEntry {
	var row auditRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return models.AuditEntry{When: normalize.Placeholder}
	}

	actor := row.Actor
	if actor == "" {
		actor = row.User.Name
	}

	entry := models.AuditEntry{
		ID:       row.ID,
		Actor:    actor,
		Action:   row.Action,
		Resource: row.Resource,
		When:     normalize.Placeholder,
	}
	if t, err := time.Parse(time.RFC3339, row.CreatedAt); err == nil {
		entry.Timestamp = t
		entry.When = normalize.FormatTimestamp(t)
	}
	return entry
}

// filterRows applies search and status locally: search is a case-folded
// substring match over every string value in the row, status an exact match
// on the row's status field.
func filterRows(rows []json.RawMessage, f filter.State) []json.RawMessage {
	if f.Search == "" && f.Status == "" {
		return rows
	}

	needle := strings.ToLower(f.Search)
	out := make([]json.RawMessage, 0, len(rows))
	for _, raw := range rows {
		var fields map[string]interface{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		if f.Status != "" && !strings.EqualFold(stringField(fields, "status"), f.Status) {
			continue
		}
		if needle != "" && !anyStringContains(fields, needle) {
			continue
		}
		out = append(out, raw)
	}
	return out
}

func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func anyStringContains(value interface{}, needle string) bool {
	switch v := value.(type) {
	case string:
		return strings.Contains(strings.ToLower(v), needle)
	case map[string]interface{}:
		for _, nested := range v {
			if anyStringContains(nested, needle) {
				return true
			}
		}
	case []interface{}:
		for _, nested := range v {
			if anyStringContains(nested, needle) {
				return true
			}
		}
	}
	return false
}

func validResource(resource models.ListResource) bool {
	switch resource {
	case models.ResourceUsers, models.ResourceEvents, models.ResourceMessages, models.ResourceAudit:
		return true
	}
	return false
}
