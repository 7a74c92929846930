// package shared defines the ambient helpers used across the sync engine and
// its CLI: logging, configuration, sentinel errors and id generation.
package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a [log.Logger] writing to w with timestamps and caller
// reporting enabled. A nil writer defaults to [os.Stderr].
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger derives a child [log.Logger] carrying the given key-value pairs
// on every entry, used to scope logs to one connection or job.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel applies the [log.Level] to the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID returns a fresh v4 [uuid.UUID] string, used as the
// client_request_id correlating a job submission with its backend snapshot.
func GenerateID() string {
	return uuid.New().String()
}
