package advisor

import (
	"errors"
	"fmt"
	"strings"
)

// MaxMessageLength bounds a single user message, matching the public API
// contract ("maximum 5000 characters").
const MaxMessageLength = 5000

var (
	// ErrEmptyMessage is returned when the user message is empty after
	// trimming. Nothing is appended to the log.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrMessageTooLong is returned for messages over MaxMessageLength.
	ErrMessageTooLong = fmt.Errorf("message is too long (maximum %d characters)", MaxMessageLength)

	// ErrUpstream marks a transient language-model failure. The user turn
	// stays in the log; the caller may resubmit the same text and the
	// orchestrator will not append it twice.
	ErrUpstream = errors.New("language model unavailable")

	// ErrSessionFinalized is returned when a message is submitted to a
	// session that already has its assessment. Reset starts a fresh one.
	ErrSessionFinalized = errors.New("session already finalized")
)

// ExtractionError reports an assessment marker that was present but failed
// structural validation. The session stays active when it occurs.
type ExtractionError struct {
	Fields []string
}

func (e *ExtractionError) Error() string {
	if len(e.Fields) == 0 {
		return "assessment extraction failed"
	}
	return "assessment extraction failed: " + strings.Join(e.Fields, "; ")
}

// IsExtractionError reports whether err is (or wraps) an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
