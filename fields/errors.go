package fields

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	KindLookup  Kind = "Lookup"
	KindConvert Kind = "Convert"
	KindSchema  Kind = "Schema"
)

// ErrMissingKey is wrapped by every KindLookup error so callers can test for a
// missing XML sub-key with errors.Is.
var ErrMissingKey = errors.New("fields: missing key")

// Error is the package's structured error type.
//
// RuleID is a stable identifier (e.g. FIELD-XML-101) naming the violated rule.
// Key is the XML tag or schema key the error refers to, when there is one.
type Error struct {
	Kind    Kind
	RuleID  string
	Key     string
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

func missingKey(ruleID, field, key string) error {
	return &Error{
		Kind:    KindLookup,
		RuleID:  ruleID,
		Key:     key,
		Message: "fields: <" + field + "> is missing required key " + key,
		Cause:   ErrMissingKey,
	}
}

func convertError(ruleID, key, msg string, cause error) error {
	return &Error{Kind: KindConvert, RuleID: ruleID, Key: key, Message: msg, Cause: cause}
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
