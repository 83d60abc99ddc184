package notify

import (
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/shopspring/decimal"

	"xdao.co/wxmsg/pay"
)

// chinaTime is the zone of time_end in payment notifications.
var chinaTime = time.FixedZone("CST", 8*3600)

// Notification is a verified payment result.
type Notification struct {
	ReturnCode    string
	ResultCode    string
	AppID         string
	MchID         string
	OpenID        string
	OutTradeNo    string
	TransactionID string
	TradeType     string
	BankType      string
	FeeType       string
	TotalFee      int64
	// Amount is TotalFee in yuan.
	Amount  decimal.Decimal
	TimeEnd time.Time

	// Params holds every field of the notification after fee coercion.
	Params map[string]any
	// ArchiveID identifies the raw notification body in the archive.
	ArchiveID cid.Cid
	// Duplicate is set when the archive already held this body. Handlers
	// should treat the notification idempotently.
	Duplicate bool
}

// Paid reports whether both return_code and result_code are SUCCESS.
func (n Notification) Paid() bool {
	return n.ReturnCode == "SUCCESS" && n.ResultCode == "SUCCESS"
}

func newNotification(params map[string]any) (Notification, error) {
	str := func(k string) string {
		s, _ := params[k].(string)
		return s
	}
	n := Notification{
		ReturnCode:    str("return_code"),
		ResultCode:    str("result_code"),
		AppID:         str("appid"),
		MchID:         str("mch_id"),
		OpenID:        str("openid"),
		OutTradeNo:    str("out_trade_no"),
		TransactionID: str("transaction_id"),
		TradeType:     str("trade_type"),
		BankType:      str("bank_type"),
		FeeType:       str("fee_type"),
		Params:        params,
	}
	if fee, ok := params["total_fee"].(int64); ok {
		n.TotalFee = fee
		n.Amount = pay.FenToYuan(fee)
	}
	if s := str("time_end"); s != "" {
		t, err := time.ParseInLocation("20060102150405", s, chinaTime)
		if err != nil {
			return n, fmt.Errorf("notify: time_end %q: %w", s, err)
		}
		n.TimeEnd = t
	}
	return n, nil
}
