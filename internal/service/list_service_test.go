package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutbase/portal-api/internal/filter"
	"github.com/scoutbase/portal-api/internal/models"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

type mockListBoundary struct {
	listFunc func(ctx context.Context, token string, resource models.ListResource, query url.Values) ([]json.RawMessage, int, error)
}

func (m *mockListBoundary) List(ctx context.Context, token string, resource models.ListResource, query url.Values) ([]json.RawMessage, int, error) {
	return m.listFunc(ctx, token, resource, query)
}

func rawRows(rows ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, json.RawMessage(r))
	}
	return out
}

func TestLoadUsersPassesFiltersUpstream(t *testing.T) {
	var gotQuery url.Values
	boundary := &mockListBoundary{
		listFunc: func(_ context.Context, _ string, resource models.ListResource, query url.Values) ([]json.RawMessage, int, error) {
			assert.Equal(t, models.ResourceUsers, resource)
			gotQuery = query
			return rawRows(`{"_id":"u1","name":"Alex"}`), 42, nil
		},
	}
	svc := NewListService(boundary, 500, 20, nil)

	page, err := svc.Load(context.Background(), "tok", models.ResourceUsers, 2, 20, filter.State{Search: "alex", Status: "active"})
	require.NoError(t, err)

	assert.Equal(t, "alex", gotQuery.Get("search"))
	assert.Equal(t, "active", gotQuery.Get("status"))
	assert.Equal(t, "2", gotQuery.Get("page"))
	assert.Equal(t, 42, page.Pagination.TotalCount)
	assert.Len(t, page.Items, 1)
}

func TestLoadMessagesFiltersLocally(t *testing.T) {
	var gotQuery url.Values
	boundary := &mockListBoundary{
		listFunc: func(_ context.Context, _ string, resource models.ListResource, query url.Values) ([]json.RawMessage, int, error) {
			assert.Equal(t, models.ResourceMessages, resource)
			gotQuery = query
			return rawRows(
				`{"_id":"m1","subject":"Camp packing list","status":"sent"}`,
				`{"_id":"m2","subject":"Badge ceremony","status":"draft"}`,
				`{"_id":"m3","subject":"Camp permission forms","status":"sent"}`,
			), 3, nil
		},
	}
	svc := NewListService(boundary, 500, 20, nil)

	page, err := svc.Load(context.Background(), "tok", models.ResourceMessages, 1, 20, filter.State{Search: "camp", Status: "sent"})
	require.NoError(t, err)

	// the bulk fetch never forwards search or status upstream
	assert.Empty(t, gotQuery.Get("search"))
	assert.Empty(t, gotQuery.Get("status"))
	assert.Equal(t, "500", gotQuery.Get("limit"))

	require.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Pagination.TotalCount, "total must count filtered rows, not fetched rows")
}

func TestLoadClientFilteredPaginatesLocally(t *testing.T) {
	rows := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		rows = append(rows, fmt.Sprintf(`{"_id":"m%d","subject":"note %d"}`, i, i))
	}
	boundary := &mockListBoundary{
		listFunc: func(_ context.Context, _ string, _ models.ListResource, _ url.Values) ([]json.RawMessage, int, error) {
			return rawRows(rows...), 25, nil
		},
	}
	svc := NewListService(boundary, 500, 20, nil)

	page, err := svc.Load(context.Background(), "tok", models.ResourceMessages, 2, 10, filter.State{})
	require.NoError(t, err)

	require.Len(t, page.Items, 10)
	assert.Equal(t, 2, page.Pagination.Page)
	assert.Equal(t, 25, page.Pagination.TotalCount)
	assert.JSONEq(t, `{"_id":"m10","subject":"note 10"}`, string(page.Items[0]))
}

func TestLoadClampsPageBeyondFilteredRange(t *testing.T) {
	boundary := &mockListBoundary{
		listFunc: func(_ context.Context, _ string, _ models.ListResource, _ url.Values) ([]json.RawMessage, int, error) {
			return rawRows(`{"_id":"m1","subject":"only row"}`), 1, nil
		},
	}
	svc := NewListService(boundary, 500, 20, nil)

	page, err := svc.Load(context.Background(), "tok", models.ResourceMessages, 9, 10, filter.State{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Len(t, page.Items, 1)
}

func TestLoadRejectsUnknownResource(t *testing.T) {
	svc := NewListService(&mockListBoundary{}, 500, 20, nil)

	_, err := svc.Load(context.Background(), "tok", models.ListResource("payments"), 1, 10, filter.State{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuditTrailRendersTimestamps(t *testing.T) {
	boundary := &mockListBoundary{
		listFunc: func(_ context.Context, _ string, resource models.ListResource, _ url.Values) ([]json.RawMessage, int, error) {
			assert.Equal(t, models.ResourceAudit, resource)
			return rawRows(
				`{"_id":"a1","action":"APPROVE","resource":"training","user":{"name":"Jamie"},"createdAt":"2024-03-05T14:07:00Z"}`,
				`{"_id":"a2","action":"REJECT","resource":"award","actor":"Sam","createdAt":"not-a-date"}`,
			), 2, nil
		},
	}
	svc := NewListService(boundary, 500, 20, nil)

	entries, meta, err := svc.AuditTrail(context.Background(), "tok", 1, 20, filter.State{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, meta.TotalCount)

	assert.Equal(t, "Jamie", entries[0].Actor)
	assert.Equal(t, "5/03/2024 14:07", entries[0].When)

	// unparsable timestamps degrade to the placeholder, not an error
	assert.Equal(t, "Sam", entries[1].Actor)
	assert.Equal(t, "-", entries[1].When)
}

func TestAuditTrailFiltersByAction(t *testing.T) {
	boundary := &mockListBoundary{
		listFunc: func(_ context.Context, _ string, _ models.ListResource, _ url.Values) ([]json.RawMessage, int, error) {
			return rawRows(
				`{"_id":"a1","action":"APPROVE","resource":"training","createdAt":"2024-03-05T14:07:00Z"}`,
				`{"_id":"a2","action":"REJECT","resource":"award","createdAt":"2024-03-06T09:00:00Z"}`,
			), 2, nil
		},
	}
	svc := NewListService(boundary, 500, 20, nil)

	entries, meta, err := svc.AuditTrail(context.Background(), "tok", 1, 20, filter.State{Search: "reject"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a2", entries[0].ID)
	assert.Equal(t, 1, meta.TotalCount)
}
