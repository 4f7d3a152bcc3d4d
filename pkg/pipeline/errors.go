package pipeline

import (
	"fmt"
	"strings"
)

// NameResolutionError reports a step name that does not resolve to a
// registered callable: unknown name, wrong shape (a class where a method is
// required), or too many dots.
type NameResolutionError struct {
	Name        string
	Reason      string
	Suggestions []string
}

func (e *NameResolutionError) Error() string {
	msg := fmt.Sprintf("step %q: %s", e.Name, e.Reason)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf("\n  Did you mean one of: %s", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// ArgumentParseError reports literal-argument text that is not a pure
// literal expression.
type ArgumentParseError struct {
	Text      string
	Offending string
	Reason    string
}

func (e *ArgumentParseError) Error() string {
	msg := fmt.Sprintf("cannot parse arguments %q", e.Text)
	if e.Offending != "" {
		msg += fmt.Sprintf(": %q is not a literal", e.Offending)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg + "\n  Only literal values are supported: strings, numbers, booleans, nil, lists, maps."
}

// ConstructionError reports a helper class that could not be auto-constructed
// because a required constructor parameter is not in the provider table.
type ConstructionError struct {
	Class string
	Param string
	Err   error
}

func (e *ConstructionError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("cannot auto-construct %q: unknown required parameter %q\n"+
			"  Pass constructor args directly in the step, e.g. %q,\n"+
			"  or register a provider for the parameter.",
			e.Class, e.Param, e.Class+".method('arg1', 'arg2')")
	}
	return fmt.Sprintf("failed to construct %q: %v", e.Class, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// StepExecutionError wraps an error returned by a step callable during
// invocation. It never escapes the executor; it is stringified into the
// step record.
type StepExecutionError struct {
	Step string
	Err  error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// WarningError is a soft failure: the step finished but with a condition the
// operator should review. Routed through the stop_on_warning policy instead
// of stop_on_error.
type WarningError struct {
	Msg string
}

func (e *WarningError) Error() string { return e.Msg }

// Warnf builds a WarningError from a format string.
func Warnf(format string, args ...any) *WarningError {
	return &WarningError{Msg: fmt.Sprintf(format, args...)}
}
