// Package wallet resolves and holds the signing identities: the operator key
// that funds and initiates settlements, and the detached relay identity used
// only to authenticate bundle submissions.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// kdfIterations follows the OWASP minimum for PBKDF2-HMAC-SHA256.
	kdfIterations = 480_000
	kdfSaltLen    = 16
	aesKeyLen     = 32
	keyfileV1     = 1
)

// keyfile is the on-disk format of an encrypted private key. All byte fields
// are hex encoded.
type keyfile struct {
	Version    int    `json:"version"`
	KDFSalt    string `json:"kdf_salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeySource names where a private key comes from. Exactly one of the raw key
// or the keyfile path must be set.
type KeySource struct {
	RawHex   string // hex private key, optional 0x prefix
	FilePath string // path to a file written by EncryptKeyfile
	Password string // keyfile password
}

// EncryptKeyfile seals a hex private key under a password and returns the
// keyfile JSON ready to write to disk.
func EncryptKeyfile(privHex, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("wallet: empty keyfile password")
	}
	keyBytes, err := decodeKeyHex(privHex)
	if err != nil {
		return nil, err
	}
	salt := make([]byte, kdfSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, keyBytes, nil)
	return json.MarshalIndent(keyfile{
		Version:    keyfileV1,
		KDFSalt:    hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(sealed),
	}, "", "  ")
}

// DecryptKeyfile opens keyfile JSON and returns the raw 32-byte private key.
func DecryptKeyfile(data []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("wallet: empty keyfile password")
	}
	var kf keyfile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("wallet: parse keyfile: %w", err)
	}
	if kf.Version != keyfileV1 {
		return nil, fmt.Errorf("wallet: unsupported keyfile version %d", kf.Version)
	}
	salt, err := hex.DecodeString(kf.KDFSalt)
	if err != nil {
		return nil, fmt.Errorf("wallet: keyfile salt: %w", err)
	}
	nonce, err := hex.DecodeString(kf.Nonce)
	if err != nil {
		return nil, fmt.Errorf("wallet: keyfile nonce: %w", err)
	}
	sealed, err := hex.DecodeString(kf.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("wallet: keyfile ciphertext: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("wallet: keyfile decrypt (wrong password?): %w", err)
	}
	return plain, nil
}

// resolveKey returns the raw private key bytes from whichever source is set.
// A raw key wins over a keyfile when both are present.
func resolveKey(src KeySource) ([]byte, error) {
	if src.RawHex != "" {
		return decodeKeyHex(src.RawHex)
	}
	if src.FilePath != "" {
		data, err := os.ReadFile(src.FilePath)
		if err != nil {
			return nil, fmt.Errorf("wallet: read keyfile: %w", err)
		}
		return DecryptKeyfile(data, src.Password)
	}
	return nil, errors.New("wallet: no key source configured")
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, kdfIterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("wallet: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: gcm: %w", err)
	}
	return gcm, nil
}

func decodeKeyHex(privHex string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("wallet: private key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("wallet: private key is %d bytes, want 32", len(raw))
	}
	return raw, nil
}
