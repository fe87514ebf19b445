package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Provenance tells where a record came from.
type Provenance string

const (
	// Optimistic records are synthesized locally right after a successful submission.
	Optimistic Provenance = "optimistic"
	// Confirmed records come from the history store.
	Confirmed Provenance = "confirmed"
)

// ScanRecord is one entry of a subject's scan history.
type ScanRecord struct {
	ID         string
	Disease    string
	Confidence float64
	Timestamp  time.Time
	// Image is a preview reference (usually a data URI); empty when unknown.
	Image      string
	Provenance Provenance
}

var (
	ErrInvalidated  = errors.New("history invalidated for subject")
	ErrStaleRefresh = errors.New("refresh result is stale")
)

// ReconciliationError wraps a failed refresh. It is logged and never fatal:
// the current list stays visible.
type ReconciliationError struct {
	SubjectID int
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("failed to refresh history for subject %d: %v", e.SubjectID, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// storeItem is one history entry as sent by the store. Field names vary between
// store versions and are normalized by toRecord.
type storeItem struct {
	ID               json.RawMessage `json:"id"`
	PredictedDisease *string         `json:"predicted_disease"`
	Disease          *string         `json:"disease"`
	Confidence       float64         `json:"confidence"`
	CreatedAt        json.RawMessage `json:"created_at"`
	Timestamp        json.RawMessage `json:"timestamp"`
	ImagePath        *string         `json:"image_path"`
	Image            *string         `json:"image"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (item storeItem) toRecord() (ScanRecord, error) {
	record := ScanRecord{
		ID:         rawID(item.ID),
		Disease:    firstNonNil(item.PredictedDisease, item.Disease),
		Confidence: item.Confidence,
		Image:      firstNonNil(item.ImagePath, item.Image),
		Provenance: Confirmed,
	}

	raw := item.CreatedAt
	if isNull(raw) {
		raw = item.Timestamp
	}
	ts, err := parseTimestamp(raw)
	if err != nil {
		return record, err
	}
	record.Timestamp = ts
	return record, nil
}

func firstNonNil(values ...*string) string {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// rawID keeps string ids as-is and renders numeric ids as their literal.
func rawID(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// parseTimestamp accepts RFC 3339 and SQLite style strings (UTC) as well as
// numeric unix seconds or milliseconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if isNull(raw) {
		return time.Time{}, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		n, nerr := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if nerr != nil {
			return time.Time{}, fmt.Errorf("unsupported timestamp %s", string(raw))
		}
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC(), nil
		}
		return time.Unix(int64(n), 0).UTC(), nil
	}

	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", s)
}
