package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/jo-hoe/skinscan/internal/staging"
)

const (
	imageField   = "image"
	subjectField = "user_id"
	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 1 << 20
)

// Request is one submission: 1..3 staged images for a subject.
type Request struct {
	Images    []staging.StagedImage
	SubjectID int
}

// Prediction is one classification result. Confidence is a percentage in [0,100].
type Prediction struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
	Image      string  `json:"image"`
}

// Response mirrors the prediction service payload.
type Response struct {
	Success     bool         `json:"success"`
	Predictions []Prediction `json:"predictions"`
	Error       string       `json:"error,omitempty"`
}

// Predictor sends a request to a prediction service.
type Predictor interface {
	Predict(ctx context.Context, req Request) (*Response, error)
}

// Client talks to the prediction endpoint over multipart HTTP.
type Client struct {
	httpClient *http.Client
	endpoint   string
	logger     *slog.Logger
}

// NewClient creates a prediction client. A zero timeout leaves the transport default.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		logger:     logger.With("component", "prediction_client"),
	}
}

// Predict posts all images plus the subject id as a single multipart request.
// Every failure to obtain a decodable 2xx answer is returned as a Transport *Error.
func (c *Client) Predict(ctx context.Context, req Request) (*Response, error) {
	body, contentType, err := encodeMultipart(req)
	if err != nil {
		return nil, transportError("", fmt.Errorf("failed to build multipart body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, transportError("", fmt.Errorf("failed to create prediction request: %w", err))
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("prediction request failed", "error", err, "endpoint", c.endpoint)
		return nil, transportError("", fmt.Errorf("prediction request to %s: %w", c.endpoint, err))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Error("failed to close prediction response body", "error", cerr)
		}
	}()

	c.logger.Debug("prediction response received",
		"status", resp.StatusCode,
		"latency", time.Since(start),
		"images", len(req.Images))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := serverErrorMessage(resp.Body)
		c.logger.Warn("prediction service returned error status", "status", resp.StatusCode, "message", message)
		return nil, transportError(message, fmt.Errorf("prediction service returned status %d", resp.StatusCode))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, transportError("", fmt.Errorf("failed to decode prediction response: %w", err))
	}
	return &out, nil
}

func encodeMultipart(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for i, img := range req.Images {
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, imageField, escapeQuotes(name)))
		header.Set("Content-Type", img.MIMEType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(img.Bytes); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField(subjectField, strconv.Itoa(req.SubjectID)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// serverErrorMessage extracts the "error" field of an error body, if any.
func serverErrorMessage(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(&payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Error)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
