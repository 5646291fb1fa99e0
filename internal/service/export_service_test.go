package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutbase/portal-api/internal/filter"
	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/upstream"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
	"github.com/scoutbase/portal-api/pkg/storage"
)

type mockPendingFetcher struct {
	pendingFunc func(ctx context.Context, token string, q upstream.PendingQuery) (*upstream.PendingBatch, error)
}

func (m *mockPendingFetcher) PendingSubmissions(ctx context.Context, token string, q upstream.PendingQuery) (*upstream.PendingBatch, error) {
	return m.pendingFunc(ctx, token, q)
}

func newExportService(t *testing.T, fetcher pendingFetcher) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	svc := NewExportService(ExportServiceParams{
		Upstream: fetcher,
		Storage:  store,
		Signer:   storage.NewSignedURLSigner("test-secret", time.Hour),
		Workers:  1,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(svc.Stop)
	svc.Start(ctx)
	return svc
}

func TestExportCSVRoundTrip(t *testing.T) {
	fetcher := &mockPendingFetcher{
		pendingFunc: func(_ context.Context, _ string, _ upstream.PendingQuery) (*upstream.PendingBatch, error) {
			return sampleBatch(), nil
		},
	}
	svc := newExportService(t, fetcher)

	job, err := svc.Request(context.Background(), "tok", models.ExportCSV, filter.State{}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportQueued, job.Status)

	require.Eventually(t, func() bool {
		current, err := svc.Job(job.ID)
		return err == nil && current.Status == models.ExportCompleted
	}, 2*time.Second, 10*time.Millisecond)

	completed, err := svc.Job(job.ID)
	require.NoError(t, err)
	require.NotEmpty(t, completed.DownloadToken)
	assert.Equal(t, job.ID+".csv", completed.FileName)

	file, name, err := svc.Download(completed.DownloadToken)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, completed.FileName, name)
	assert.True(t, strings.HasPrefix(string(body), "Type,Title,Submitted By,Status,Date Submitted"))
	assert.Contains(t, string(body), "Jamboree")
}

func TestExportFiltersTravelToUpstream(t *testing.T) {
	queries := make(chan upstream.PendingQuery, 1)
	fetcher := &mockPendingFetcher{
		pendingFunc: func(_ context.Context, _ string, q upstream.PendingQuery) (*upstream.PendingBatch, error) {
			queries <- q
			return sampleBatch(), nil
		},
	}
	svc := newExportService(t, fetcher)

	_, err := svc.Request(context.Background(), "tok", models.ExportPDF, filter.State{Search: "aid", Section: "Cubs"}, "admin-1")
	require.NoError(t, err)

	select {
	case q := <-queries:
		assert.Equal(t, "aid", q.Search)
		assert.Equal(t, "Cubs", q.Section)
		assert.Equal(t, 1, q.Page)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never fetched")
	}
}

func TestExportUpstreamFailureMarksJobFailed(t *testing.T) {
	fetcher := &mockPendingFetcher{
		pendingFunc: func(_ context.Context, _ string, _ upstream.PendingQuery) (*upstream.PendingBatch, error) {
			return nil, appErrors.ErrUpstreamUnavailable
		},
	}
	svc := newExportService(t, fetcher)

	job, err := svc.Request(context.Background(), "tok", models.ExportCSV, filter.State{}, "admin-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := svc.Job(job.ID)
		return err == nil && current.Status == models.ExportFailed
	}, 2*time.Second, 10*time.Millisecond)

	failed, err := svc.Job(job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, failed.Error)
	assert.Empty(t, failed.DownloadToken)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := newExportService(t, &mockPendingFetcher{})

	_, err := svc.Request(context.Background(), "tok", models.ExportFormat("xlsx"), filter.State{}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportDownloadRejectsTamperedToken(t *testing.T) {
	fetcher := &mockPendingFetcher{
		pendingFunc: func(_ context.Context, _ string, _ upstream.PendingQuery) (*upstream.PendingBatch, error) {
			return sampleBatch(), nil
		},
	}
	svc := newExportService(t, fetcher)

	job, err := svc.Request(context.Background(), "tok", models.ExportCSV, filter.State{}, "admin-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := svc.Job(job.ID)
		return err == nil && current.Status == models.ExportCompleted
	}, 2*time.Second, 10*time.Millisecond)

	completed, err := svc.Job(job.ID)
	require.NoError(t, err)

	_, _, err = svc.Download(completed.DownloadToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportJobLookupUnknownID(t *testing.T) {
	svc := newExportService(t, &mockPendingFetcher{})

	_, err := svc.Job("missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
