package prediction

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/jo-hoe/skinscan/internal/staging"
)

// Controller drives one submission at a time against a Predictor.
type Controller struct {
	predictor Predictor
	progress  ProgressConfig
	logger    *slog.Logger

	// OnSuccess, when set, receives the predictions of every successful submission
	// before Submit returns.
	OnSuccess func(subjectID int, predictions []Prediction)

	inFlight atomic.Bool
	current  atomic.Int32
}

func NewController(predictor Predictor, progress ProgressConfig, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		predictor: predictor,
		progress:  progress.withDefaults(),
		logger:    logger.With("component", "submission"),
	}
}

// Progress returns the latest simulated progress value.
func (c *Controller) Progress() int {
	return int(c.current.Load())
}

// InFlight reports whether a submission is outstanding.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// Submit sends req and returns its predictions. While the request is outstanding a
// simulated progress value is reported to onProgress (may be nil). The progress
// timer is stopped on every outcome; the value is forced to 100 once a response
// arrived.
func (c *Controller) Submit(ctx context.Context, req Request, onProgress ProgressFunc) ([]Prediction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer c.inFlight.Store(false)

	emit := func(v int) {
		c.current.Store(int32(v))
		if onProgress != nil {
			onProgress(v)
		}
	}
	ticker := startProgress(c.progress, emit)
	defer ticker.stop()

	c.logger.Info("submitting scan", "subject_id", req.SubjectID, "images", len(req.Images))
	resp, err := c.predictor.Predict(ctx, req)
	ticker.stop()
	if err != nil {
		c.logger.Error("submission failed", "subject_id", req.SubjectID, "error", err)
		var perr *Error
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, transportError("", err)
	}
	emit(100)

	if !resp.Success || len(resp.Predictions) == 0 {
		c.logger.Warn("prediction service reported failure",
			"subject_id", req.SubjectID,
			"success", resp.Success,
			"predictions", len(resp.Predictions),
			"message", resp.Error)
		return nil, &Error{Kind: InferenceFailed, Message: InferenceFailedMessage}
	}

	predictions := make([]Prediction, len(resp.Predictions))
	copy(predictions, resp.Predictions)
	c.logger.Info("submission succeeded", "subject_id", req.SubjectID, "predictions", len(predictions))

	if c.OnSuccess != nil {
		c.OnSuccess(req.SubjectID, predictions)
	}
	return predictions, nil
}

func validateRequest(req Request) error {
	if len(req.Images) == 0 {
		return &staging.ValidationError{Kind: staging.NoFiles}
	}
	if len(req.Images) > staging.MaxImages {
		return &staging.ValidationError{Kind: staging.TooManyFiles}
	}
	for _, img := range req.Images {
		if !staging.IsImageType(img.MIMEType) {
			return &staging.ValidationError{Kind: staging.NonImageFile, File: img.Name}
		}
	}
	return nil
}
