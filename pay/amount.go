package pay

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FenToYuan converts an amount in fen (the API's integer unit) to yuan.
func FenToYuan(fen int64) decimal.Decimal {
	return decimal.New(fen, -2)
}

// YuanToFen converts an amount in yuan to fen. Amounts finer than one fen are
// rejected rather than rounded.
func YuanToFen(yuan decimal.Decimal) (int64, error) {
	fen := yuan.Shift(2)
	if !fen.Equal(fen.Truncate(0)) {
		return 0, newError(KindAmount, "PAY-AMOUNT-001", "pay: "+yuan.String()+" yuan is not a whole number of fen")
	}
	if !fen.Equal(decimal.NewFromInt(fen.IntPart())) {
		return 0, newError(KindAmount, "PAY-AMOUNT-002", "pay: "+yuan.String()+" yuan overflows int64 fen")
	}
	return fen.IntPart(), nil
}

// ParseYuan parses a decimal yuan string such as "12.34" into fen.
func ParseYuan(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, wrapError(KindAmount, "PAY-AMOUNT-003", "pay: invalid amount "+s, err)
	}
	return YuanToFen(d)
}

// NonceStr returns a 32-character random hex nonce.
func NonceStr() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
