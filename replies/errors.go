package replies

import "errors"

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindParse  Kind = "Parse"
	KindRender Kind = "Render"
)

var (
	// ErrTooManyArticles is returned when a news reply would exceed MaxArticles.
	ErrTooManyArticles = errors.New("replies: too many articles")
	// ErrUnknownType is wrapped when Deserialize meets an unregistered MsgType.
	ErrUnknownType = errors.New("replies: unknown reply type")
)

// Error is the package's structured error type.
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

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
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
