package prompting

import "fmt"

// Error is the single error kind returned for every templating failure:
// missing or malformed templates, bad madlib files, unresolvable
// placeholders, and invalid setting overrides. Callers that need to
// distinguish templating failures from other errors can use errors.As.
type Error struct {
	msg string
	err error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func newErrorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

func wrapErrorf(err error, format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...), err: err}
}
