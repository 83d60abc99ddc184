package pay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func notification(sign string) []byte {
	return []byte(`<xml>
<appid><![CDATA[wx2421b1c4370ec43b]]></appid>
<cash_fee>100</cash_fee>
<mch_id><![CDATA[10000100]]></mch_id>
<out_trade_no><![CDATA[1409811653]]></out_trade_no>
<result_code><![CDATA[SUCCESS]]></result_code>
<return_code><![CDATA[SUCCESS]]></return_code>
<total_fee>100</total_fee>
<transaction_id><![CDATA[1004400740201409030005092168]]></transaction_id>
<coupon_count></coupon_count>
<sign><![CDATA[` + sign + `]]></sign>
</xml>`)
}

func TestDictToXML(t *testing.T) {
	out := DictToXML(map[string]any{
		"total_fee": 1,
		"mch_id":    "10000100",
		"body":      "a]]>b",
		"rate":      "1.5",
	}, "SIGN")
	require.Equal(t, "<xml>\n"+
		"<body><![CDATA[a]]]]><![CDATA[>b]]></body>\n"+
		"<mch_id>10000100</mch_id>\n"+
		"<rate><![CDATA[1.5]]></rate>\n"+
		"<total_fee>1</total_fee>\n"+
		"<sign><![CDATA[SIGN]]></sign>\n"+
		"</xml>", out)

	back, err := XMLToDict([]byte(out))
	require.NoError(t, err)
	require.Equal(t, "a]]>b", back["body"])
	require.Equal(t, "1", back["total_fee"])
	require.Equal(t, "SIGN", back["sign"])
}

func TestXMLToDict_Errors(t *testing.T) {
	_, err := XMLToDict(nil)
	require.Equal(t, "PAY-XML-001", RuleID(err))
	_, err = XMLToDict([]byte("<xml><a>"))
	require.True(t, IsKind(err, KindParse))
}

func TestParsePaymentResult(t *testing.T) {
	data, err := ParsePaymentResult(notification("2D06520A99375FA9DDEF28B90A3D3607"), testAPIKey)
	require.NoError(t, err)
	require.Equal(t, int64(100), data["total_fee"])
	require.Equal(t, int64(100), data["cash_fee"])
	require.Nil(t, data["coupon_count"])
	require.Equal(t, "1409811653", data["out_trade_no"])
	require.Equal(t, "2D06520A99375FA9DDEF28B90A3D3607", data["sign"])
}

func TestParsePaymentResult_Invalid(t *testing.T) {
	_, err := ParsePaymentResult(notification("00000000000000000000000000000000"), testAPIKey)
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ParsePaymentResult(notification("2D06520A99375FA9DDEF28B90A3D3607"), "other-key")
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ParsePaymentResult([]byte("not xml"), testAPIKey)
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.True(t, IsKind(err, KindParse))
}

func TestParsePaymentResult_BadFee(t *testing.T) {
	params := map[string]any{"total_fee": "abc", "return_code": "SUCCESS"}
	doc := DictToXML(params, CalculateSignature(params, testAPIKey))
	_, err := ParsePaymentResult([]byte(doc), testAPIKey)
	require.Equal(t, "PAY-XML-003", RuleID(err))
}
