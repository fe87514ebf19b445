package prediction

import "errors"

type ErrorKind string

const (
	// InferenceFailed means the service answered but reported no usable result.
	InferenceFailed ErrorKind = "inference_failed"
	// Transport covers network failures, non-2xx statuses and unreadable bodies.
	Transport ErrorKind = "transport"
)

const (
	DefaultTransportMessage = "An error occurred. Please try again."
	InferenceFailedMessage  = "Prediction failed. Please try again."
)

// ErrSubmissionInFlight is returned when Submit is called while another
// submission on the same controller has not finished.
var ErrSubmissionInFlight = errors.New("a submission is already in flight")

// Error is a user-presentable prediction failure. No retry is attempted.
type Error struct {
	Kind ErrorKind
	// Message is human readable and safe to display.
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind == InferenceFailed {
		return InferenceFailedMessage
	}
	return DefaultTransportMessage
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func transportError(message string, err error) *Error {
	if message == "" {
		message = DefaultTransportMessage
	}
	return &Error{Kind: Transport, Message: message, Err: err}
}
