package staging

import "fmt"

// ValidationKind names the reason a batch was rejected.
type ValidationKind string

const (
	TooManyFiles ValidationKind = "too_many_files"
	NonImageFile ValidationKind = "non_image_file"
	NoFiles      ValidationKind = "no_files"
)

// ValidationError rejects a whole batch. It is never retried automatically.
type ValidationError struct {
	Kind ValidationKind
	// File is the offending file name for NonImageFile.
	File string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case TooManyFiles:
		return fmt.Sprintf("you can only upload up to %d images", MaxImages)
	case NonImageFile:
		if e.File != "" {
			return fmt.Sprintf("please select only image files (%s is not an image)", e.File)
		}
		return "please select only image files"
	case NoFiles:
		return "please select at least one image"
	default:
		return fmt.Sprintf("invalid batch: %s", string(e.Kind))
	}
}

// Is matches another *ValidationError of the same kind, so callers can test
// errors.Is(err, &ValidationError{Kind: TooManyFiles}).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
