package pay

import (
	"crypto"
	"crypto/rsa"
	"encoding/pem"

	"github.com/youmark/pkcs8"
)

// parseEncryptedPKCS8 decrypts a PBES2 ENCRYPTED PRIVATE KEY body. PBKDF2
// with HMAC-SHA1 or HMAC-SHA256 and AES-CBC are the schemes seen in practice.
func parseEncryptedPKCS8(der, password []byte) (*rsa.PrivateKey, error) {
	key, err := pkcs8.ParsePKCS8PrivateKey(der, password)
	if err != nil {
		return nil, wrapError(KindCrypto, "PAY-PKCS8-001", "pay: decrypt private key: "+err.Error(), err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, newError(KindCrypto, "PAY-RSA-015", "pay: private key is not RSA")
	}
	return priv, nil
}

// EncryptPrivateKey marshals key as PKCS#8 and encrypts it with PBES2
// (PBKDF2-HMAC-SHA256, AES-256-CBC), returning an ENCRYPTED PRIVATE KEY PEM.
func EncryptPrivateKey(key any, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, newError(KindCrypto, "PAY-PKCS8-101", "pay: empty password")
	}
	der, err := pkcs8.MarshalPrivateKey(key, password, &pkcs8.Opts{
		Cipher: pkcs8.AES256CBC,
		KDFOpts: pkcs8.PBKDF2Opts{
			SaltSize:       16,
			IterationCount: 10000,
			HMACHash:       crypto.SHA256,
		},
	})
	if err != nil {
		return nil, wrapError(KindCrypto, "PAY-PKCS8-102", "pay: encrypt private key: "+err.Error(), err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: der}), nil
}
