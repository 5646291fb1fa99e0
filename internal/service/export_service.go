package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/internal/filter"
	"github.com/scoutbase/portal-api/internal/models"
	"github.com/scoutbase/portal-api/internal/normalize"
	"github.com/scoutbase/portal-api/internal/upstream"
	"github.com/scoutbase/portal-api/pkg/export"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
	"github.com/scoutbase/portal-api/pkg/jobs"
	"github.com/scoutbase/portal-api/pkg/storage"
)

// exportFetchLimit caps how many records of each type a report pulls. A
// roster large enough to hit it gets a truncated report, not a failure.
const exportFetchLimit = 1000

// pendingFetcher is the slice of the membership client report generation
// depends on.
type pendingFetcher interface {
	PendingSubmissions(ctx context.Context, token string, q upstream.PendingQuery) (*upstream.PendingBatch, error)
}

// exportPayload travels through the job queue with everything the worker
// needs to build the report.
type exportPayload struct {
	Token       string
	Filters     filter.State
	RequestedBy string
}

// ExportServiceParams bundles export service dependencies.
type ExportServiceParams struct {
	Upstream        pendingFetcher
	Storage         *storage.LocalStorage
	Signer          *storage.SignedURLSigner
	Workers         int
	WorkerRetries   int
	CleanupInterval time.Duration
	FileTTL         time.Duration
	Logger          *zap.Logger
}

// ExportService generates roster reports asynchronously: a request enqueues
// a job, a worker renders the file to local storage and the caller polls
// the job until a signed download token appears. Job records live in
// memory, matching the instance-local file storage.
type ExportService struct {
	upstream        pendingFetcher
	storage         *storage.LocalStorage
	signer          *storage.SignedURLSigner
	queue           *jobs.Queue
	csv             *export.CSVExporter
	pdf             *export.PDFExporter
	cleanupInterval time.Duration
	fileTTL         time.Duration
	logger          *zap.Logger

	mu   sync.Mutex
	byID map[string]*models.ExportJob
}

// NewExportService constructs the export service. Start must be called
// before requests are accepted.
func NewExportService(params ExportServiceParams) *ExportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cleanup := params.CleanupInterval
	if cleanup <= 0 {
		cleanup = time.Hour
	}
	fileTTL := params.FileTTL
	if fileTTL <= 0 {
		fileTTL = 24 * time.Hour
	}

	s := &ExportService{
		upstream:        params.Upstream,
		storage:         params.Storage,
		signer:          params.Signer,
		csv:             export.NewCSVExporter(),
		pdf:             export.NewPDFExporter(),
		cleanupInterval: cleanup,
		fileTTL:         fileTTL,
		logger:          logger,
		byID:            make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("roster-exports", s.process, jobs.QueueConfig{
		Workers:    params.Workers,
		MaxRetries: params.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool and the stale-file sweeper.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.sweep(ctx)
}

// Stop drains the worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request enqueues a new report job scoped by the caller's filters.
func (s *ExportService) Request(ctx context.Context, token string, format models.ExportFormat, f filter.State, requestedBy string) (*models.ExportJob, error) {
	if format != models.ExportCSV && format != models.ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		Format:      format,
		Status:      models.ExportQueued,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.byID[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    string(format),
		Payload: exportPayload{Token: token, Filters: f, RequestedBy: requestedBy},
	}); err != nil {
		s.fail(job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	s.logger.Info("export requested",
		zap.String("job_id", job.ID),
		zap.String("format", string(format)),
		zap.String("requested_by", requestedBy))

	copied := *job
	return &copied, nil
}

// Job returns the current state of a job.
func (s *ExportService) Job(id string) (*models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	copied := *job
	return &copied, nil
}

// Download validates a signed token and opens the generated file.
func (s *ExportService) Download(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file no longer available")
	}
	return file, relPath, nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		s.fail(job.ID, fmt.Errorf("unexpected payload type %T", job.Payload))
		return nil
	}

	s.setStatus(job.ID, models.ExportProcessing)

	batch, err := s.upstream.PendingSubmissions(ctx, payload.Token, upstream.PendingQuery{
		Page:         1,
		Limit:        exportFetchLimit,
		Search:       payload.Filters.Search,
		Status:       payload.Filters.Status,
		Type:         payload.Filters.Type,
		Section:      payload.Filters.Section,
		StateCouncil: payload.Filters.StateCouncil,
	})
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	submissions := normalize.Submissions(batch.Events, batch.Trainings, batch.Awards, batch.ActivityLogs)
	dataset := submissionDataset(submissions)

	var rendered []byte
	var filename string
	switch models.ExportFormat(job.Type) {
	case models.ExportPDF:
		rendered, err = s.pdf.Render(dataset)
		filename = job.ID + ".pdf"
	default:
		rendered, err = s.csv.Render(dataset)
		filename = job.ID + ".csv"
	}
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	if _, err := s.storage.Save(filename, rendered); err != nil {
		s.fail(job.ID, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, filename)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	s.mu.Lock()
	if rec, ok := s.byID[job.ID]; ok {
		rec.Status = models.ExportCompleted
		rec.FileName = filename
		rec.DownloadToken = token
		rec.ExpiresAt = expiresAt
		rec.CompletedAt = time.Now().UTC()
		rec.Error = ""
	}
	s.mu.Unlock()

	s.logger.Info("export completed",
		zap.String("job_id", job.ID),
		zap.String("file", filename),
		zap.Int("rows", len(submissions)))
	return nil
}

func (s *ExportService) setStatus(id string, status models.ExportStatus) {
	s.mu.Lock()
	if rec, ok := s.byID[id]; ok {
		rec.Status = status
	}
	s.mu.Unlock()
}

func (s *ExportService) fail(id string, err error) {
	s.mu.Lock()
	if rec, ok := s.byID[id]; ok {
		rec.Status = models.ExportFailed
		rec.Error = err.Error()
	}
	s.mu.Unlock()
	s.logger.Warn("export failed", zap.String("job_id", id), zap.Error(err))
}

func (s *ExportService) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.storage.CleanupOlderThan(s.fileTTL)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
			}
		}
	}
}

var exportColumns = []string{"Type", "Title", "Submitted By", "Status", "Date Submitted"}

func submissionDataset(submissions []models.Submission) export.Dataset {
	rows := make([][]string, 0, len(submissions))
	for _, sub := range submissions {
		rows = append(rows, []string{
			string(sub.Type),
			sub.Title,
			sub.SubmittedBy,
			string(sub.Status),
			sub.DateSubmitted,
		})
	}
	return export.Dataset{Title: "Pending Submissions", Columns: exportColumns, Rows: rows}
}
