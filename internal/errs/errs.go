package errs

import (
	"fmt"
	"strings"

	cr "github.com/cockroachdb/errors"
)

// Markers for categorization. Collaborator errors are marked with one of
// these so errors.Is classifies them while the original cause is kept.
var (
	ErrAuth        = cr.New("authentication failed")
	ErrQuery       = cr.New("catalog query failed")
	ErrRejected    = cr.New("rejected by selection service")
	ErrTransport   = cr.New("transport failure")
	ErrValidation  = cr.New("invalid input")
	ErrInterrupted = cr.New("interrupted")
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func New(msg string) error {
	return cr.New(msg)
}

func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

func Is(err, reference error) bool {
	return cr.Is(err, reference)
}

// WithHint attaches a user-facing suggestion, e.g. "consider login again".
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return cr.WithHint(err, hint)
}

// Hints returns every hint attached to err, outermost first.
func Hints(err error) []string {
	return cr.GetAllHints(err)
}

func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	s := fmt.Sprintf("%+v", err)
	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
