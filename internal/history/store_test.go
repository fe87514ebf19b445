package history

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPStore_NormalizesFieldNames(t *testing.T) {
	var gotSubject string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = r.URL.Query().Get("user_id")
		_, _ = io.WriteString(w, `{"success":true,"history":[
			{"id":7,"predicted_disease":"Melanoma","confidence":87.5,"created_at":"2025-03-01 10:30:00","image_path":"data:image/png;base64,AA=="},
			{"id":"abc","disease":"Dermatofibroma","confidence":40,"timestamp":"2025-02-28T08:00:00Z","image":null}
		]}`)
	}))
	defer server.Close()

	store := NewHTTPStore(server.URL+"/history", time.Second, nil)
	records, err := store.FetchHistory(context.Background(), 123456)
	if err != nil {
		t.Fatalf("FetchHistory error: %v", err)
	}
	if gotSubject != "123456" {
		t.Errorf("expected user_id=123456, got %q", gotSubject)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.ID != "7" || first.Disease != "Melanoma" || first.Confidence != 87.5 {
		t.Errorf("unexpected first record %+v", first)
	}
	if !first.Timestamp.Equal(time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected first timestamp %v", first.Timestamp)
	}
	if first.Image != "data:image/png;base64,AA==" || first.Provenance != Confirmed {
		t.Errorf("unexpected first record image/provenance %+v", first)
	}

	second := records[1]
	if second.ID != "abc" || second.Disease != "Dermatofibroma" || second.Image != "" {
		t.Errorf("unexpected second record %+v", second)
	}
	if !second.Timestamp.Equal(time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected second timestamp %v", second.Timestamp)
	}
}

func TestHTTPStore_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"db locked"}`},
		{"not successful", http.StatusOK, `{"success":false}`},
		{"garbage", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			if _, err := NewHTTPStore(server.URL, time.Second, nil).FetchHistory(context.Background(), 1); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{`"2025-03-01 10:30:00"`, time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)},
		{`"2025-03-01T10:30:00.5Z"`, time.Date(2025, 3, 1, 10, 30, 0, 500000000, time.UTC)},
		{`1740825000`, time.Unix(1740825000, 0).UTC()},
		{`1740825000000`, time.UnixMilli(1740825000000).UTC()},
		{`null`, time.Time{}},
	}
	for _, tt := range tests {
		got, err := parseTimestamp([]byte(tt.raw))
		if err != nil {
			t.Errorf("parseTimestamp(%s) error: %v", tt.raw, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	if _, err := parseTimestamp([]byte(`"yesterday"`)); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}
