package pay

import (
	"bytes"
	"errors"
	"sort"
	"strconv"
	"strings"

	"xdao.co/wxmsg/xmlmap"
)

// integerFields are coerced to int64 by ParsePaymentResult when present.
var integerFields = []string{"total_fee", "settlement_total_fee", "cash_fee", "coupon_fee", "coupon_count"}

// DictToXML renders params as the payment API's <xml> envelope with sign as
// the trailing element.
//
// Keys are sorted. Integers and all-digit strings are written as plain leaves,
// everything else as CDATA.
func DictToXML(params map[string]any, sign string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("<xml>\n")
	for _, k := range keys {
		v := params[k]
		if isIntegral(v) {
			sb.WriteString(xmlmap.Leaf(k, formatValue(v)))
		} else {
			sb.WriteString(xmlmap.CDATA(k, formatValue(v)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(xmlmap.CDATA("sign", sign))
	sb.WriteString("\n</xml>")
	return sb.String()
}

func isIntegral(v any) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case string:
		return isDigits(t)
	default:
		return false
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// XMLToDict decodes a payment API <xml> envelope into a flat mapping. Leaf
// values are strings; empty leaves are nil.
func XMLToDict(doc []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return nil, newError(KindParse, "PAY-XML-001", "pay: empty document")
	}
	m, err := xmlmap.ParseRoot(doc, "xml")
	if err != nil {
		return nil, wrapError(KindParse, "PAY-XML-002", "pay: decode document: "+err.Error(), err)
	}
	return map[string]any(m), nil
}

// ParsePaymentResult decodes a payment notification, verifies its signature
// and coerces the fee fields to int64.
//
// Decode and signature failures wrap ErrInvalidSignature; a notification
// that cannot be decoded is treated as unsigned.
func ParsePaymentResult(doc []byte, apiKey string) (map[string]any, error) {
	data, err := XMLToDict(doc)
	if err != nil {
		return nil, wrapError(KindParse, "PAY-NOTIFY-001", "pay: decode notification: "+err.Error(), errors.Join(ErrInvalidSignature, err))
	}
	if err := VerifySignature(data, apiKey); err != nil {
		return nil, err
	}
	for _, k := range integerFields {
		v, ok := data[k]
		if !ok || v == nil {
			continue
		}
		s, _ := v.(string)
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, wrapError(KindParse, "PAY-XML-003", "pay: "+k+" is not an integer", err)
		}
		data[k] = n
	}
	return data, nil
}
