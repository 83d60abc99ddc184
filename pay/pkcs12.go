package pay

import (
	"crypto/rsa"
	"crypto/x509"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

// ParsePKCS12 reads the merchant certificate bundle (apiclient_cert.p12)
// issued by the merchant platform. Its password is the merchant ID.
func ParsePKCS12(data []byte, password string) (*rsa.PrivateKey, *x509.Certificate, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, nil, wrapError(KindCrypto, "PAY-P12-001", "pay: decode pkcs12: "+err.Error(), err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, newError(KindCrypto, "PAY-P12-002", "pay: pkcs12 private key is not RSA")
	}
	return priv, cert, nil
}

// CertificateSerial returns the serial number in the uppercase hex form the
// payment API uses to name merchant certificates.
func CertificateSerial(cert *x509.Certificate) string {
	if cert == nil || cert.SerialNumber == nil {
		return ""
	}
	return strings.ToUpper(cert.SerialNumber.Text(16))
}
