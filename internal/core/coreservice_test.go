package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/skinscan/internal/backend"
	"github.com/jo-hoe/skinscan/internal/backend/database"
	"github.com/jo-hoe/skinscan/internal/history"
	"github.com/jo-hoe/skinscan/internal/session"
	"github.com/jo-hoe/skinscan/internal/staging"
)

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.NewDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	config, err := backend.ParseConfig(nil)
	if err != nil {
		t.Fatalf("backend.ParseConfig error: %v", err)
	}
	e := echo.New()
	backend.NewAPIService(config, db, backend.FallbackClassifier{}, backend.NewMetrics()).SetRoutes(e)

	server := httptest.NewServer(e)
	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})
	return server
}

func testConfig(t *testing.T, baseURL string) *ServiceConfig {
	t.Helper()
	config := DefaultConfig()
	config.Prediction.Endpoint = baseURL + "/predict"
	config.Prediction.Timeout = 5 * time.Second
	config.History.Endpoint = baseURL + "/history"
	config.History.Timeout = 5 * time.Second
	config.History.RefreshDelay = 10 * time.Millisecond
	config.Progress.Interval = time.Millisecond
	config.Session.Path = filepath.Join(t.TempDir(), "session.gob")
	return &config
}

func pngFile(t *testing.T, name string, c color.Color) staging.File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode error: %v", err)
	}
	return staging.FileFromBytes(name, "image/png", buf.Bytes())
}

func newTestService(t *testing.T, config *ServiceConfig, store session.Store) *CoreService {
	t.Helper()
	service, err := NewCoreService(context.Background(), config, store)
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = service.Close() })
	return service
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCoreService_ScanFlow(t *testing.T) {
	server := startBackend(t)
	store := session.NewMemoryStore()
	if err := store.Save(context.Background(), session.Session{SubjectID: 123456, DisplayName: "Ada"}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	service := newTestService(t, testConfig(t, server.URL), store)
	ctx := context.Background()

	if got := service.Session(); got.SubjectID != 123456 || got.DisplayName != "Ada" {
		t.Fatalf("unexpected session %+v", got)
	}
	if len(service.History()) != 0 {
		t.Fatalf("expected empty history for a new subject")
	}

	staged, err := service.Stage(ctx, []staging.File{
		pngFile(t, "left.png", color.RGBA{R: 180, A: 255}),
		pngFile(t, "right.png", color.RGBA{G: 180, A: 255}),
	})
	if err != nil || len(staged) != 2 {
		t.Fatalf("Stage() = %d images, err %v", len(staged), err)
	}

	var last int
	predictions, err := service.Submit(ctx, func(p int) { last = p })
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if len(predictions) != 1 || last != 100 {
		t.Fatalf("unexpected predictions %+v, last progress %d", predictions, last)
	}

	records := service.History()
	if len(records) != 1 || records[0].Provenance != history.Optimistic || records[0].Disease != predictions[0].Disease {
		t.Fatalf("expected one optimistic record at the head, got %+v", records)
	}

	waitFor(t, "confirmed history", func() bool {
		records := service.History()
		return len(records) == 1 && records[0].Provenance == history.Confirmed
	})
	confirmed := service.History()[0]
	if confirmed.Disease != predictions[0].Disease || confirmed.Image != predictions[0].Image {
		t.Errorf("confirmed record %+v does not match prediction %+v", confirmed, predictions[0])
	}

	var pdf bytes.Buffer
	doc, err := service.WriteReport(&pdf, confirmed)
	if err != nil {
		t.Fatalf("WriteReport error: %v", err)
	}
	if len(doc.Warnings) != 0 {
		t.Errorf("unexpected render warnings %v", doc.Warnings)
	}
	if !bytes.HasPrefix(pdf.Bytes(), []byte("%PDF-")) {
		t.Error("report is not a PDF")
	}
}

func TestCoreService_RejectedSubmissionLeavesHistory(t *testing.T) {
	server := startBackend(t)
	service := newTestService(t, testConfig(t, server.URL), nil)

	if _, err := service.Submit(context.Background(), nil); !errors.Is(err, &staging.ValidationError{Kind: staging.NoFiles}) {
		t.Fatalf("expected NoFiles validation error, got %v", err)
	}
	if len(service.History()) != 0 {
		t.Error("history must not change on a rejected submission")
	}
}

func TestCoreService_InvalidateAndLogout(t *testing.T) {
	server := startBackend(t)
	store := session.NewMemoryStore()
	service := newTestService(t, testConfig(t, server.URL), store)
	ctx := context.Background()

	if _, err := service.Stage(ctx, []staging.File{pngFile(t, "a.png", color.White)}); err != nil {
		t.Fatalf("Stage error: %v", err)
	}
	if _, err := service.Submit(ctx, nil); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if err := service.Logout(ctx); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if len(service.History()) != 0 || len(service.Staged()) != 0 {
		t.Error("expected history and staged images to be cleared")
	}
	if err := service.RefreshHistory(ctx); !errors.Is(err, history.ErrInvalidated) {
		t.Errorf("expected ErrInvalidated, got %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected session to be cleared, got %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if len(service.History()) != 0 {
		t.Error("a pending refresh repopulated an invalidated history")
	}
}

func TestCoreService_RedisSession(t *testing.T) {
	server := startBackend(t)
	redis := miniredis.RunT(t)

	config := testConfig(t, server.URL)
	config.Session.Type = "redis"
	config.Session.RedisURL = "redis://" + redis.Addr()
	config.Session.DisplayName = "Grace"

	first := newTestService(t, config, nil)
	subject := first.Session().SubjectID
	if subject < 100000 || subject > 999999 {
		t.Fatalf("expected generated 6-digit subject, got %d", subject)
	}
	if !redis.Exists(config.Session.Key) {
		t.Fatal("session was not written to redis")
	}

	second := newTestService(t, config, nil)
	if second.Session() != first.Session() {
		t.Errorf("expected persisted session %+v, got %+v", first.Session(), second.Session())
	}
}

func TestCoreService_ReportForPrediction(t *testing.T) {
	server := startBackend(t)
	service := newTestService(t, testConfig(t, server.URL), nil)

	doc := service.ReportForPrediction(predictionFixture())
	if len(doc.Tips) != 4 {
		t.Errorf("expected 4 tips, got %d", len(doc.Tips))
	}
}
