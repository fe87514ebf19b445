package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Store fetches the authoritative history of a subject.
type Store interface {
	FetchHistory(ctx context.Context, subjectID int) ([]ScanRecord, error)
}

// HTTPStore reads history from the history endpoint of the backend.
type HTTPStore struct {
	httpClient *http.Client
	endpoint   string
	logger     *slog.Logger
}

// NewHTTPStore creates a store client. A zero timeout leaves the transport default.
func NewHTTPStore(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPStore{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		logger:     logger.With("component", "history_store"),
	}
}

type historyResponse struct {
	Success bool        `json:"success"`
	History []storeItem `json:"history"`
	Error   string      `json:"error,omitempty"`
}

// FetchHistory performs GET <endpoint>?user_id=<subjectID> and normalizes the entries.
func (s *HTTPStore) FetchHistory(ctx context.Context, subjectID int) ([]ScanRecord, error) {
	reqURL, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid history endpoint %s: %w", s.endpoint, err)
	}
	query := reqURL.Query()
	query.Set("user_id", strconv.Itoa(subjectID))
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request to %s: %w", s.endpoint, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Error("failed to close history response body", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("history store returned status %d", resp.StatusCode)
	}

	var payload historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("history store reported failure: %s", payload.Error)
	}

	records := make([]ScanRecord, 0, len(payload.History))
	for i, item := range payload.History {
		record, err := item.toRecord()
		if err != nil {
			s.logger.Warn("history entry has unreadable timestamp", "index", i, "id", record.ID, "error", err)
		}
		records = append(records, record)
	}
	return records, nil
}
