package pay

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
)

// RSAEncrypt encrypts data with the PEM public key using RSA-OAEP (SHA-1,
// MGF1-SHA-1, no label) and returns the base64 ciphertext.
func RSAEncrypt(data []byte, publicPEM []byte) (string, error) {
	out, err := RSAEncryptRaw(data, publicPEM)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// RSAEncryptRaw is RSAEncrypt without the base64 step.
func RSAEncryptRaw(data []byte, publicPEM []byte) ([]byte, error) {
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return nil, err
	}
	out, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, data, nil)
	if err != nil {
		return nil, wrapError(KindCrypto, "PAY-RSA-101", "pay: rsa encrypt: "+err.Error(), err)
	}
	return out, nil
}

// RSADecrypt decrypts raw OAEP ciphertext with the PEM private key. password
// is used only for encrypted keys and may be nil otherwise.
func RSADecrypt(ciphertext []byte, privatePEM []byte, password []byte) ([]byte, error) {
	priv, err := ParsePrivateKey(privatePEM, password)
	if err != nil {
		return nil, err
	}
	out, err := rsa.DecryptOAEP(sha1.New(), nil, priv, ciphertext, nil)
	if err != nil {
		return nil, wrapError(KindCrypto, "PAY-RSA-102", "pay: rsa decrypt: "+err.Error(), err)
	}
	return out, nil
}

// RSADecryptBase64 decodes a base64 ciphertext and decrypts it.
func RSADecryptBase64(ciphertext string, privatePEM []byte, password []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, wrapError(KindCrypto, "PAY-RSA-103", "pay: ciphertext is not base64", err)
	}
	return RSADecrypt(raw, privatePEM, password)
}

// ParsePublicKey reads a PUBLIC KEY (PKIX) or RSA PUBLIC KEY (PKCS#1) block.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, newError(KindCrypto, "PAY-RSA-001", "pay: no PEM block in public key")
	}
	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, wrapError(KindCrypto, "PAY-RSA-002", "pay: parse public key: "+err.Error(), err)
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, newError(KindCrypto, "PAY-RSA-003", "pay: public key is not RSA")
		}
		return pub, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, wrapError(KindCrypto, "PAY-RSA-002", "pay: parse public key: "+err.Error(), err)
		}
		return pub, nil
	default:
		return nil, newError(KindCrypto, "PAY-RSA-004", "pay: unsupported public key block "+block.Type)
	}
}

// ParsePrivateKey reads an RSA private key in any of:
//   - RSA PRIVATE KEY (PKCS#1), optionally with legacy PEM encryption
//   - PRIVATE KEY (PKCS#8)
//   - ENCRYPTED PRIVATE KEY (PKCS#8 with PBES2)
func ParsePrivateKey(data []byte, password []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, newError(KindCrypto, "PAY-RSA-011", "pay: no PEM block in private key")
	}
	der := block.Bytes
	switch block.Type {
	case "RSA PRIVATE KEY":
		//nolint:staticcheck // legacy PEM encryption
		if x509.IsEncryptedPEMBlock(block) {
			if len(password) == 0 {
				return nil, newError(KindCrypto, "PAY-RSA-012", "pay: private key is encrypted and no password was given")
			}
			//nolint:staticcheck
			plain, err := x509.DecryptPEMBlock(block, password)
			if err != nil {
				return nil, wrapError(KindCrypto, "PAY-RSA-013", "pay: decrypt private key: "+err.Error(), err)
			}
			der = plain
		}
		key, err := x509.ParsePKCS1PrivateKey(der)
		if err != nil {
			return nil, wrapError(KindCrypto, "PAY-RSA-014", "pay: parse private key: "+err.Error(), err)
		}
		return key, nil
	case "ENCRYPTED PRIVATE KEY":
		if len(password) == 0 {
			return nil, newError(KindCrypto, "PAY-RSA-012", "pay: private key is encrypted and no password was given")
		}
		return parseEncryptedPKCS8(der, password)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			return nil, wrapError(KindCrypto, "PAY-RSA-014", "pay: parse private key: "+err.Error(), err)
		}
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, newError(KindCrypto, "PAY-RSA-015", "pay: private key is not RSA")
		}
		return priv, nil
	default:
		return nil, newError(KindCrypto, "PAY-RSA-016", "pay: unsupported private key block "+block.Type)
	}
}
