package sheetmusic

import (
	"fmt"
	"strings"

	"github.com/jacoelho/xsd/xsderrors"
)

// FormatError reports input that could not be turned into a well-formed XML
// document: an unreadable or empty container, or bytes that fail to parse.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad musicxml input %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("bad musicxml input %s", e.Path)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ValidateError reports a document that is well-formed XML but violates the
// bundled schema. Violations holds the error-severity entries only.
type ValidateError struct {
	Path       string
	Violations []*xsderrors.Error
}

func (e *ValidateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema validation failed for %s", e.Path)
	switch len(e.Violations) {
	case 0:
	case 1:
		fmt.Fprintf(&b, ": %s", e.Violations[0].Error())
	default:
		fmt.Fprintf(&b, ": %s (and %d more)", e.Violations[0].Error(), len(e.Violations)-1)
	}
	return b.String()
}

// MalformedInputError reports a document that passed schema validation but
// breaks a structural invariant the schema cannot express: a beam reference
// to an id that was never opened, a missing layout distance for the chosen
// placement, a duration computed before any divisions value is in effect.
type MalformedInputError struct {
	Measure string
	Reason  string
}

func (e *MalformedInputError) Error() string {
	if e.Measure != "" {
		return fmt.Sprintf("malformed score, measure %s: %s", e.Measure, e.Reason)
	}
	return fmt.Sprintf("malformed score: %s", e.Reason)
}

func malformedf(m *Measure, format string, args ...any) *MalformedInputError {
	err := &MalformedInputError{Reason: fmt.Sprintf(format, args...)}
	if m != nil {
		err.Measure = m.Number
	}
	return err
}
