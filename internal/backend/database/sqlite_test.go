package database

import (
	"testing"
	"time"
)

func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	ds, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase error: %v", err)
	}
	_, err = ds.CreateDatabase()
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func createPrediction(t *testing.T, ds DatabaseService, userID int, disease string, at time.Time) int64 {
	t.Helper()
	id, err := ds.CreatePrediction(&Prediction{
		UserID:           userID,
		ImagePath:        "data:image/png;base64,AA==",
		PredictedDisease: disease,
		Confidence:       75.5,
		CreatedAt:        at,
	})
	if err != nil {
		t.Fatalf("CreatePrediction error: %v", err)
	}
	return id
}

func TestSQLite_DoesDatabaseExist(t *testing.T) {
	ds := newTestDB(t)
	if !ds.DoesDatabaseExist() {
		t.Fatalf("expected DoesDatabaseExist to return true")
	}
}

func TestSQLite_GetHistory_NewestFirstAndLimited(t *testing.T) {
	ds := newTestDB(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		createPrediction(t, ds, 111111, "Melanoma", base.Add(time.Duration(i)*time.Minute))
	}
	createPrediction(t, ds, 222222, "Dermatofibroma", base.Add(time.Hour))

	history, err := ds.GetHistory(111111, 10)
	if err != nil {
		t.Fatalf("GetHistory error: %v", err)
	}
	if len(history) != 10 {
		t.Fatalf("expected 10 predictions, got %d", len(history))
	}
	if !history[0].CreatedAt.Equal(base.Add(11 * time.Minute)) {
		t.Errorf("expected newest first, got %v", history[0].CreatedAt)
	}
	for i := 1; i < len(history); i++ {
		if history[i].CreatedAt.After(history[i-1].CreatedAt) {
			t.Fatalf("history not ordered newest first at index %d", i)
		}
	}
	for _, p := range history {
		if p.UserID != 111111 {
			t.Errorf("history leaked prediction of user %d", p.UserID)
		}
		if p.Confidence != 75.5 || p.ImagePath == "" {
			t.Errorf("unexpected prediction %+v", p)
		}
	}
}

func TestSQLite_GetHistory_SameSecondOrderedByID(t *testing.T) {
	ds := newTestDB(t)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := createPrediction(t, ds, 1, "Melanoma", at)
	second := createPrediction(t, ds, 1, "Vascular Lesion", at)

	history, err := ds.GetHistory(1, 10)
	if err != nil {
		t.Fatalf("GetHistory error: %v", err)
	}
	if len(history) != 2 || history[0].ID != second || history[1].ID != first {
		t.Fatalf("expected ids [%d %d], got %+v", second, first, history)
	}
}

func TestSQLite_CreatePrediction_DefaultsTimestamp(t *testing.T) {
	ds := newTestDB(t)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	ds.now = func() time.Time { return fixed }

	p := &Prediction{UserID: 7, PredictedDisease: "Melanoma", Confidence: 1}
	id, err := ds.CreatePrediction(p)
	if err != nil {
		t.Fatalf("CreatePrediction error: %v", err)
	}
	if p.ID != id || !p.CreatedAt.Equal(fixed) {
		t.Errorf("prediction not updated in place: %+v", p)
	}

	history, err := ds.GetHistory(7, 10)
	if err != nil {
		t.Fatalf("GetHistory error: %v", err)
	}
	if len(history) != 1 || !history[0].CreatedAt.Equal(fixed) {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestSQLite_DeleteHistory(t *testing.T) {
	ds := newTestDB(t)
	now := time.Now()
	createPrediction(t, ds, 1, "Melanoma", now)
	createPrediction(t, ds, 1, "Melanoma", now)
	createPrediction(t, ds, 2, "Melanoma", now)

	removed, err := ds.DeleteHistory(1)
	if err != nil {
		t.Fatalf("DeleteHistory error: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed rows, got %d", removed)
	}

	if history, _ := ds.GetHistory(1, 10); len(history) != 0 {
		t.Errorf("expected empty history, got %d", len(history))
	}
	if history, _ := ds.GetHistory(2, 10); len(history) != 1 {
		t.Errorf("other users must be untouched, got %d", len(history))
	}
}

func TestNewDatabase(t *testing.T) {
	ds, err := NewDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	defer func() { _ = ds.Close() }()
	if _, err := ds.GetHistory(1, 10); err != nil {
		t.Errorf("schema not created: %v", err)
	}

	if _, err := NewDatabase("postgres", "x"); err == nil {
		t.Error("expected unsupported driver error")
	}
}
