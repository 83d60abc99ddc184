// Package credentials keeps merchant secrets on the local filesystem so CLI
// invocations can refer to a merchant by name instead of passing keys on the
// command line.
//
// Layout under the store directory:
//
//	<merchant>/api.key       merchant API key, one line
//	<merchant>/private.pem   merchant RSA private key
//	<merchant>/public.pem    platform RSA public key
//
// Files are created 0600 inside 0700 directories.
package credentials

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xdao.co/wxmsg/pay"
)

// Kind names a stored credential file.
type Kind string

const (
	KindAPIKey     Kind = "api.key"
	KindPrivateKey Kind = "private.pem"
	KindPublicKey  Kind = "public.pem"
)

var kinds = []Kind{KindAPIKey, KindPrivateKey, KindPublicKey}

// ErrNotFound is returned when a merchant or credential is absent.
var ErrNotFound = errors.New("credentials: not found")

type Store struct {
	Directory string
}

// Merchant lists the credentials stored for one merchant.
type Merchant struct {
	Name  string
	Kinds []Kind
}

func DefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wxmsg", "merchants"), nil
}

// Open returns a store at dir, or at DefaultDirectory when dir is empty.
func Open(dir string) (*Store, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &Store{Directory: dir}, nil
}

// CheckName accepts ASCII letters, digits, '-' and '_'.
func CheckName(name string) error {
	if name == "" {
		return errors.New("credentials: merchant name cannot be empty")
	}
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("credentials: invalid character %q in merchant name", c)
	}
	return nil
}

func checkKind(k Kind) error {
	for _, known := range kinds {
		if k == known {
			return nil
		}
	}
	return fmt.Errorf("credentials: unknown credential kind %q", k)
}

func (s *Store) path(name string, k Kind) string {
	return filepath.Join(s.Directory, name, string(k))
}

// SaveAPIKey stores a merchant API key. Existing keys are kept unless
// overwrite is set.
func (s *Store) SaveAPIKey(name, apiKey string, overwrite bool) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", errors.New("credentials: empty api key")
	}
	return s.save(name, KindAPIKey, []byte(apiKey+"\n"), overwrite)
}

// SavePEM stores a key file after checking that it parses as the expected
// RSA key. An encrypted private key needs its password to be checked.
func (s *Store) SavePEM(name string, k Kind, data, password []byte, overwrite bool) (string, error) {
	switch k {
	case KindPrivateKey:
		if _, err := pay.ParsePrivateKey(data, password); err != nil {
			return "", err
		}
	case KindPublicKey:
		if _, err := pay.ParsePublicKey(data); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("credentials: %q is not a PEM credential", k)
	}
	return s.save(name, k, data, overwrite)
}

// ImportPKCS12 stores the private key of a merchant certificate bundle as
// an unencrypted PKCS#8 private.pem and returns its path together with the
// certificate serial number.
func (s *Store) ImportPKCS12(name string, data []byte, password string, overwrite bool) (path, serial string, err error) {
	key, cert, err := pay.ParsePKCS12(data, password)
	if err != nil {
		return "", "", err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", err
	}
	path, err = s.save(name, KindPrivateKey, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), overwrite)
	if err != nil {
		return "", "", err
	}
	return path, pay.CertificateSerial(cert), nil
}

func (s *Store) save(name string, k Kind, data []byte, overwrite bool) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	path := s.path(name, k)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", err
	}
	return path, f.Close()
}

// Load returns the raw bytes of one credential.
func (s *Store) Load(name string, k Kind) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if err := checkKind(k); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(name, k))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, name, k)
		}
		return nil, err
	}
	return b, nil
}

// APIKey returns the stored API key without surrounding whitespace.
func (s *Store) APIKey(name string) (string, error) {
	b, err := s.Load(name, KindAPIKey)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// List returns every merchant with at least one credential, sorted by name.
func (s *Store) List() ([]Merchant, error) {
	entries, err := os.ReadDir(s.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Merchant
	for _, e := range entries {
		if !e.IsDir() || CheckName(e.Name()) != nil {
			continue
		}
		m := Merchant{Name: e.Name()}
		for _, k := range kinds {
			if _, err := os.Stat(s.path(e.Name(), k)); err == nil {
				m.Kinds = append(m.Kinds, k)
			}
		}
		if len(m.Kinds) > 0 {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
