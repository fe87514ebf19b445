package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jo-hoe/skinscan/internal/history"
	"github.com/jo-hoe/skinscan/internal/prediction"
	"github.com/jo-hoe/skinscan/internal/report"
	"github.com/jo-hoe/skinscan/internal/session"
	"github.com/jo-hoe/skinscan/internal/staging"
)

// CoreService wires the scan pipeline for one subject: staging, submission,
// history reconciliation and report rendering.
type CoreService struct {
	config       *ServiceConfig
	logger       *slog.Logger
	sessionStore session.Store
	session      session.Session

	buffer     *staging.Buffer
	controller *prediction.Controller
	history    *history.Reconciler
	renderer   *report.Renderer

	closers []func() error
}

// NewCoreService loads (or creates) the session and builds the pipeline. When
// store is nil it is created from config. The initial history load is best
// effort.
func NewCoreService(ctx context.Context, config *ServiceConfig, store session.Store) (*CoreService, error) {
	logger := slog.Default().With("component", "core")
	service := &CoreService{config: config, logger: logger}

	if store == nil {
		var err error
		store, err = service.newSessionStore(ctx)
		if err != nil {
			return nil, err
		}
	}
	service.sessionStore = store

	s, err := session.LoadOrCreate(ctx, store, config.Session.DisplayName)
	if err != nil {
		_ = service.Close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	service.session = s
	logger.Info("session loaded", "subject_id", s.SubjectID)

	renderer, err := report.NewRenderer(report.Options{ImageCacheSize: config.Report.ImageCacheSize})
	if err != nil {
		_ = service.Close()
		return nil, err
	}
	service.renderer = renderer

	service.buffer = staging.NewBuffer(nil)
	service.history = history.NewReconciler(
		history.NewHTTPStore(config.History.Endpoint, config.History.Timeout, nil),
		s.SubjectID,
		history.Options{RefreshDelay: config.History.RefreshDelay, RefreshTimeout: config.History.Timeout},
	)
	service.controller = prediction.NewController(
		prediction.NewClient(config.Prediction.Endpoint, config.Prediction.Timeout, nil),
		config.Progress.toPrediction(),
		nil,
	)
	service.controller.OnSuccess = service.recordSubmission

	if err := service.history.Refresh(ctx); err != nil {
		logger.Warn("initial history load failed", "error", err)
	}
	return service, nil
}

func (service *CoreService) newSessionStore(ctx context.Context) (session.Store, error) {
	cfg := service.config.Session
	switch cfg.Type {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "file":
		store, err := session.NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		client := session.NewRedisClient(cfg.RedisURL)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisURL, err)
		}
		service.closers = append(service.closers, client.Close)
		return session.NewRedisStore(client, cfg.Key, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Type)
	}
}

// recordSubmission runs inside Submit once predictions arrived.
func (service *CoreService) recordSubmission(subjectID int, predictions []prediction.Prediction) {
	if subjectID != service.history.SubjectID() {
		service.logger.Warn("ignoring predictions for another subject", "subject_id", subjectID)
		return
	}
	service.history.RecordOptimistic(predictions)
	service.history.ScheduleRefresh()
}

func (service *CoreService) Session() session.Session {
	return service.session
}

func (service *CoreService) Stage(ctx context.Context, files []staging.File) ([]staging.StagedImage, error) {
	return service.buffer.Stage(ctx, files)
}

func (service *CoreService) Staged() []staging.StagedImage {
	return service.buffer.Staged()
}

// Submit sends the staged images. Successful predictions are recorded in the
// history right away and confirmed by a delayed refresh.
func (service *CoreService) Submit(ctx context.Context, onProgress prediction.ProgressFunc) ([]prediction.Prediction, error) {
	req := prediction.Request{
		Images:    service.buffer.Staged(),
		SubjectID: service.session.SubjectID,
	}
	return service.controller.Submit(ctx, req, onProgress)
}

func (service *CoreService) History() []history.ScanRecord {
	return service.history.Records()
}

func (service *CoreService) RefreshHistory(ctx context.Context) error {
	return service.history.Refresh(ctx)
}

// WaitForHistory blocks until the refreshes scheduled by earlier submissions
// have finished.
func (service *CoreService) WaitForHistory(ctx context.Context) error {
	return service.history.Wait(ctx)
}

// RenderReport lays out the report of record for the current session.
func (service *CoreService) RenderReport(record history.ScanRecord) *report.Document {
	return service.renderer.Render(record, service.session)
}

// WriteReport renders record and writes it as PDF to w.
func (service *CoreService) WriteReport(w io.Writer, record history.ScanRecord) (*report.Document, error) {
	doc := service.RenderReport(record)
	if err := report.EncodePDF(doc, w); err != nil {
		return nil, err
	}
	return doc, nil
}

// ReportForPrediction renders a report for a prediction that is not in the
// history yet.
func (service *CoreService) ReportForPrediction(p prediction.Prediction) *report.Document {
	return service.RenderReport(report.FromPrediction(p, time.Now()))
}

// InvalidateSubject is called after a password change or account deletion. The
// history is cleared and no further refreshes run for the subject.
func (service *CoreService) InvalidateSubject() {
	service.history.Invalidate()
	service.buffer.Clear()
}

// Logout invalidates the subject and removes the stored session.
func (service *CoreService) Logout(ctx context.Context) error {
	service.InvalidateSubject()
	if err := service.sessionStore.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	service.logger.Info("logged out", "subject_id", service.session.SubjectID)
	return nil
}

func (service *CoreService) Close() error {
	if service.history != nil {
		service.history.Close()
	}
	var errs []error
	for _, closer := range service.closers {
		errs = append(errs, closer())
	}
	return errors.Join(errs...)
}
