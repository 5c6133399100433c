package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/rsgen/internal/resource"
)

var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

// withUsage appends the command usage to usage errors.
func withUsage(cmd *cobra.Command, err error) error {
	if !errors.Is(err, ErrUsage) {
		return err
	}
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, cmd.UsageString()))
}

// resourceFailure is a definition that could not be loaded or built.
// The message names the first failing resource and, when known, the
// location inside it.
type resourceFailure struct {
	msg string
	err error
}

func (e *resourceFailure) Error() string { return e.msg }
func (e *resourceFailure) Unwrap() error { return e.err }

func newResourceFailure(err error) error {
	var re *resource.Error
	if errors.As(err, &re) {
		msg := re.Message
		if !strings.HasPrefix(msg, "resource ") {
			name := filepath.Base(re.Location)
			if re.Location == "" {
				name = "input"
			}
			msg = fmt.Sprintf("resource %s: %s", name, msg)
		}
		if re.JSONPointer != "" {
			msg += fmt.Sprintf(" (at %s)", re.JSONPointer)
		}
		for _, f := range re.Fields[min(1, len(re.Fields)):] {
			msg += fmt.Sprintf("\n  %s: %s", f.Field, f.Message)
		}
		return &resourceFailure{msg: msg, err: err}
	}
	return &resourceFailure{msg: err.Error(), err: err}
}
