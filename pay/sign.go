// Package pay implements the WeChat Pay parameter canonicalization, request
// signing and verification, the XML envelope used by the payment API, and the
// RSA-OAEP helpers used for encrypted payment fields.
//
// Canonical form: keys sorted bytewise, entries with a falsy value dropped,
// each entry rendered as key=value, joined by '&', and key=<api key> appended
// when an api key is given.
package pay

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Sign types accepted in the sign_type parameter.
const (
	SignTypeMD5        = "MD5"
	SignTypeHMACSHA256 = "HMAC-SHA256"
)

var (
	logMu  sync.RWMutex
	logger = zap.NewNop()
)

// SetLogger installs the package logger. A nil logger restores the no-op one.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logMu.Lock()
	logger = l
	logMu.Unlock()
}

func log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// FormatURL returns the canonical signing string for params.
func FormatURL(params map[string]any, apiKey string) []byte {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if truthy(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(formatValue(params[k]))
	}
	if apiKey != "" {
		if buf.Len() > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString("key=")
		buf.WriteString(apiKey)
	}
	return buf.Bytes()
}

// CalculateSignature returns the uppercase hex MD5 of the canonical string.
func CalculateSignature(params map[string]any, apiKey string) string {
	url := FormatURL(params, apiKey)
	logCanonical("calculate signature", params, apiKey)
	sum := md5.Sum(url)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// CalculateSignatureHMAC returns the uppercase hex HMAC-SHA256 of the
// canonical string keyed by apiKey.
func CalculateSignatureHMAC(params map[string]any, apiKey string) string {
	url := FormatURL(params, apiKey)
	logCanonical("calculate signature hmac", params, apiKey)
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write(url)
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// redactedKey stands in for the api key in logged canonical strings.
const redactedKey = "[REDACTED]"

func logCanonical(msg string, params map[string]any, apiKey string) {
	ce := log().Check(zap.DebugLevel, msg)
	if ce == nil {
		return
	}
	if apiKey != "" {
		apiKey = redactedKey
	}
	ce.Write(zap.ByteString("url", FormatURL(params, apiKey)))
}

// CheckSignature recomputes the MD5 signature over every parameter except
// "sign" and compares it with params["sign"]. params is not modified.
func CheckSignature(params map[string]any, apiKey string) bool {
	rest, sign := withoutSign(params)
	return equalSign(sign, CalculateSignature(rest, apiKey))
}

// Sign computes the signature for params using signType, defaulting to MD5
// when signType is empty.
func Sign(params map[string]any, apiKey, signType string) (string, error) {
	switch strings.ToUpper(signType) {
	case "", SignTypeMD5:
		return CalculateSignature(params, apiKey), nil
	case SignTypeHMACSHA256:
		return CalculateSignatureHMAC(params, apiKey), nil
	default:
		return "", newError(KindSignature, "PAY-SIGN-001", "pay: unsupported sign_type "+signType)
	}
}

// VerifySignature checks params["sign"] using the algorithm named by
// params["sign_type"] (MD5 when absent). A mismatch wraps ErrInvalidSignature.
func VerifySignature(params map[string]any, apiKey string) error {
	rest, sign := withoutSign(params)
	if sign == "" {
		return wrapError(KindSignature, "PAY-SIGN-002", "pay: missing sign", ErrInvalidSignature)
	}
	signType, _ := params["sign_type"].(string)
	want, err := Sign(rest, apiKey, signType)
	if err != nil {
		return err
	}
	if !equalSign(sign, want) {
		return wrapError(KindSignature, "PAY-SIGN-003", "pay: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

func withoutSign(params map[string]any) (map[string]any, string) {
	rest := make(map[string]any, len(params))
	for k, v := range params {
		if k != "sign" {
			rest[k] = v
		}
	}
	sign, _ := params["sign"].(string)
	return rest, sign
}

func equalSign(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	if z, ok := v.(interface{ IsZero() bool }); ok {
		return !z.IsZero()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}

// formatValue renders a parameter value. Integral floats keep a trailing
// ".0" and booleans render as True/False.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case float64:
		return formatFloat(t, 64)
	case float32:
		return formatFloat(float64(t), 32)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
