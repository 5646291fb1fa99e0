package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/scoutbase/portal-api/internal/models"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

// Creator identifies the scout a record belongs to.
type Creator struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Event mirrors the membership API's event record. Approval is a boolean
// here, unlike every other record kind.
type Event struct {
	ID          string  `json:"_id"`
	Title       string  `json:"title"`
	Location    string  `json:"location"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Approved    bool    `json:"approved"`
	CreatedBy   Creator `json:"createdBy"`
	CreatedAt   string  `json:"createdAt"`
}

// Training mirrors a training/certificate record.
type Training struct {
	ID             string  `json:"_id"`
	TrainingType   string  `json:"trainingType"`
	TrainingDate   string  `json:"trainingDate"`
	Description    string  `json:"description"`
	CertificateURL string  `json:"certificateUrl"`
	Status         string  `json:"status"`
	Scout          Creator `json:"scout"`
	CreatedAt      string  `json:"createdAt"`
}

// Award mirrors an award record.
type Award struct {
	ID          string  `json:"_id"`
	AwardName   string  `json:"awardName"`
	AwardDate   string  `json:"awardDate"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Status      string  `json:"status"`
	Scout       Creator `json:"scout"`
	CreatedAt   string  `json:"createdAt"`
}

// ActivityLog mirrors a logbook entry.
type ActivityLog struct {
	ID          string  `json:"_id"`
	Title       string  `json:"title"`
	LogDate     string  `json:"logDate"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Status      string  `json:"status"`
	Scout       Creator `json:"scout"`
	CreatedAt   string  `json:"createdAt"`
}

// PendingCounts carries the per-type totals the membership service reports
// alongside a pending-submissions page.
type PendingCounts struct {
	EventsCount    int `json:"eventsCount"`
	TrainingsCount int `json:"trainingsCount"`
	AwardsCount    int `json:"awardsCount"`
	LogsCount      int `json:"logsCount"`
	CurrentPage    int `json:"currentPage"`
	Limit          int `json:"limit"`
}

// PendingBatch is the raw material for one unified submission page.
type PendingBatch struct {
	Events       []Event
	Trainings    []Training
	Awards       []Award
	ActivityLogs []ActivityLog
	Counts       PendingCounts
}

// PendingQuery scopes a pending-submissions fetch.
type PendingQuery struct {
	Page         int
	Limit        int
	Search       string
	Status       string
	Type         string
	Section      string
	StateCouncil string
}

// Profile is the upstream user record returned on credential verification.
type Profile struct {
	ID           string          `json:"_id"`
	Email        string          `json:"email"`
	FullName     string          `json:"name"`
	Role         models.UserRole `json:"role"`
	Section      string          `json:"section"`
	StateCouncil string          `json:"stateCouncil"`
}

// PendingSubmissions fetches the four record-type arrays in one logical
// request, scoped by the combined filter and pagination parameters.
func (c *Client) PendingSubmissions(ctx context.Context, token string, q PendingQuery) (*PendingBatch, error) {
	query := url.Values{}
	if q.Status == "" {
		q.Status = "pending"
	}
	query.Set("status", q.Status)
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	if q.Type != "" {
		query.Set("type", q.Type)
	}
	if q.Section != "" {
		query.Set("section", q.Section)
	}
	if q.StateCouncil != "" {
		query.Set("stateCouncil", q.StateCouncil)
	}

	raw, err := c.do(ctx, http.MethodGet, "/pending-submissions", query, nil, token)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Status bool `json:"status"`
		Data   struct {
			Events       []Event       `json:"events"`
			Trainings    []Training    `json:"trainings"`
			Awards       []Award       `json:"awards"`
			ActivityLogs []ActivityLog `json:"activityLogs"`
		} `json:"data"`
		Pagination PendingCounts `json:"pagination"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "malformed pending-submissions response")
	}

	return &PendingBatch{
		Events:       envelope.Data.Events,
		Trainings:    envelope.Data.Trainings,
		Awards:       envelope.Data.Awards,
		ActivityLogs: envelope.Data.ActivityLogs,
		Counts:       envelope.Pagination,
	}, nil
}

// AcceptItem approves a submitted record.
func (c *Client) AcceptItem(ctx context.Context, token, id string) (string, error) {
	return c.patchDecision(ctx, token, id, "accept")
}

// RejectItem rejects a submitted record.
func (c *Client) RejectItem(ctx context.Context, token, id string) (string, error) {
	return c.patchDecision(ctx, token, id, "reject")
}

func (c *Client) patchDecision(ctx context.Context, token, id, verb string) (string, error) {
	if id == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "submission id is required")
	}
	raw, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/items/%s/%s", url.PathEscape(id), verb), nil, nil, token)
	if err != nil {
		return "", err
	}

	var envelope struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "malformed decision response")
	}
	if !envelope.Status {
		return "", appErrors.Clone(appErrors.ErrUpstreamRejected, envelope.Message)
	}
	return envelope.Message, nil
}

// PendingStats fetches roster-wide review statistics.
func (c *Client) PendingStats(ctx context.Context, token string) (*models.RosterPendingStats, error) {
	raw, err := c.do(ctx, http.MethodGet, "/roster/pending-stats", nil, nil, token)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Status bool                      `json:"status"`
		Data   models.RosterPendingStats `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "malformed pending-stats response")
	}
	return &envelope.Data, nil
}

// VerifyCredentials exchanges user credentials for an upstream token pair.
func (c *Client) VerifyCredentials(ctx context.Context, email, password string) (*Profile, string, error) {
	payload := map[string]string{"email": email, "password": password}
	raw, err := c.do(ctx, http.MethodPost, "/auth/login", nil, payload, "")
	if err != nil {
		return nil, "", err
	}

	var envelope struct {
		Status bool `json:"status"`
		Data   struct {
			User  Profile `json:"user"`
			Token string  `json:"token"`
		} `json:"data"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "malformed login response")
	}
	if !envelope.Status || envelope.Data.Token == "" {
		return nil, "", appErrors.Clone(appErrors.ErrInvalidCredentials, envelope.Message)
	}
	return &envelope.Data.User, envelope.Data.Token, nil
}

// totalKeys are tried in order when extracting a list total: the generic
// list endpoints are inconsistent about the field name.
var totalKeys = []string{"total", "totalCount", "totalItems", "totalUsers", "totalEvents", "totalMessages", "totalLogs", "count"}

// List fetches one page of a generic admin list resource. The returned
// total tolerates the per-endpoint pagination field-name drift.
func (c *Client) List(ctx context.Context, token string, resource models.ListResource, query url.Values) ([]json.RawMessage, int, error) {
	raw, err := c.do(ctx, http.MethodGet, "/"+string(resource), query, nil, token)
	if err != nil {
		return nil, 0, err
	}

	var envelope struct {
		Status     bool                       `json:"status"`
		Data       []json.RawMessage          `json:"data"`
		Pagination map[string]json.RawMessage `json:"pagination"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "malformed list response")
	}

	total := totalFromPagination(envelope.Pagination)
	if total < len(envelope.Data) {
		// a missing or bogus total must never undercount the rows we hold
		total = len(envelope.Data)
	}
	return envelope.Data, total, nil
}

// totalFromPagination digs the item total out of whichever key the endpoint
// chose, accepting both numeric and quoted values.
func totalFromPagination(pagination map[string]json.RawMessage) int {
	for _, key := range totalKeys {
		raw, ok := pagination[key]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if parsed, err := strconv.Atoi(s); err == nil {
				return parsed
			}
		}
	}
	return 0
}
