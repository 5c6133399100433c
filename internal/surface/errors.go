package surface

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingKey matches every *MissingKeyError via errors.Is.
var ErrMissingKey = errors.New("schema missing key")

// MissingKeyError reports a collection without an instance key, or a
// query parameter without a name.
type MissingKeyError struct {
	Resource   string
	Collection string
	Field      string
	// Pointer locates the offending node, e.g.
	// "schema/items/properties/persons/schema".
	Pointer string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("resource %s: collection %q is missing %s (at %s)", e.Resource, e.Collection, e.Field, e.Pointer)
}

func (e *MissingKeyError) Is(target error) bool { return target == ErrMissingKey }

// ComponentReferenceError reports a $ref that does not name a registered
// component.
type ComponentReferenceError struct {
	Resource  string
	Operation string
	Ref       string
	Reason    string
}

func (e *ComponentReferenceError) Error() string {
	var b strings.Builder
	if e.Resource != "" {
		fmt.Fprintf(&b, "resource %s: ", e.Resource)
	}
	if e.Operation != "" {
		fmt.Fprintf(&b, "operation %s: ", e.Operation)
	}
	fmt.Fprintf(&b, "unresolved component reference %q: %s", e.Ref, e.Reason)
	return b.String()
}

// ResourceFailure is one resource that could not be built.
type ResourceFailure struct {
	Index int
	Kind  string
	Err   error
}

// BatchError collects per-resource failures. Resources that succeeded
// are still present in the returned surface.
type BatchError struct {
	Failures []ResourceFailure
}

func (e *BatchError) Error() string {
	if len(e.Failures) == 0 {
		return "no failures"
	}
	msg := e.Failures[0].Err.Error()
	if n := len(e.Failures) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more failed resources)", n)
	}
	return msg
}

func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}

// FailedKinds lists the kinds that failed, in input order.
func (e *BatchError) FailedKinds() []string {
	out := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Kind
	}
	return out
}
