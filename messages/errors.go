package messages

import "errors"

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindParse Kind = "Parse"
)

// ErrEmptyDocument is returned by Parse for an empty or blank input.
var ErrEmptyDocument = errors.New("messages: empty document")

// Error is the package's structured error type.
//
// RuleID names the violated rule (e.g. MSG-PARSE-002). Message is intended for
// humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func parseError(ruleID, msg string, cause error) error {
	return &Error{Kind: KindParse, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
