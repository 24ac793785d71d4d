package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// EnvelopeVersion is the only wire format this package reads or writes.
	EnvelopeVersion = 1

	nonceSize = 12
	tagSize   = 16
	dekSize   = 32
)

// wrapInfo binds the HKDF-derived wrapping key to its purpose; changing it
// invalidates every stored envelope.
var wrapInfo = []byte("velora-dek-wrap-v1")

var (
	ErrEncryptionDisabled = errors.New("encryption is not configured")
	ErrInvalidMasterKey   = errors.New("master key must be 64 hex characters")
	ErrUnknownVersion     = errors.New("unrecognized envelope version")
)

// Envelope carries a payload encrypted under a random per-record DEK plus the
// DEK itself wrapped under the master key. All fields are base64.
type Envelope struct {
	V  int    `json:"v"`
	CT string `json:"ct"` // payload ciphertext
	IV string `json:"iv"` // payload nonce
	AT string `json:"at"` // payload auth tag
	EK string `json:"ek"` // wrapped DEK ciphertext
	EI string `json:"ei"` // DEK-wrap nonce
	EA string `json:"ea"` // DEK-wrap auth tag
}

// Cipher performs envelope encryption under a configured master key. A nil
// wrap key means encryption is disabled and Tier 1 persistence degrades to
// plaintext (a non-compliant mode the caller must log loudly).
type Cipher struct {
	wrapKey []byte
}

// New derives the DEK-wrapping key from the hex master secret. An empty
// secret yields a disabled cipher rather than an error.
func New(masterKeyHex string) (*Cipher, error) {
	if masterKeyHex == "" {
		return &Cipher{}, nil
	}
	master, err := hex.DecodeString(masterKeyHex)
	if err != nil || len(master) != 32 {
		return nil, ErrInvalidMasterKey
	}
	wrapKey, err := deriveWrapKey(master)
	if err != nil {
		return nil, err
	}
	return &Cipher{wrapKey: wrapKey}, nil
}

func deriveWrapKey(master []byte) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, wrapInfo), key); err != nil {
		return nil, fmt.Errorf("derive wrap key: %w", err)
	}
	return key, nil
}

func (c *Cipher) Enabled() bool {
	return len(c.wrapKey) > 0
}

// EncryptField encrypts plaintext under a fresh random DEK and wraps the
// DEK's hex form under the master key. Returns nil when encryption is
// disabled.
func (c *Cipher) EncryptField(plaintext string) (*Envelope, error) {
	if !c.Enabled() {
		return nil, nil
	}

	dek := make([]byte, dekSize)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("generate DEK: %w", err)
	}

	ct, iv, at, err := seal(dek, []byte(plaintext))
	if err != nil {
		return nil, fmt.Errorf("seal payload: %w", err)
	}

	ek, ei, ea, err := seal(c.wrapKey, []byte(hex.EncodeToString(dek)))
	if err != nil {
		return nil, fmt.Errorf("wrap DEK: %w", err)
	}

	return &Envelope{
		V:  EnvelopeVersion,
		CT: base64.StdEncoding.EncodeToString(ct),
		IV: base64.StdEncoding.EncodeToString(iv),
		AT: base64.StdEncoding.EncodeToString(at),
		EK: base64.StdEncoding.EncodeToString(ek),
		EI: base64.StdEncoding.EncodeToString(ei),
		EA: base64.StdEncoding.EncodeToString(ea),
	}, nil
}

// DecryptField reverses both layers. Any authentication failure surfaces as
// an error; a tampered envelope never yields plaintext.
func (c *Cipher) DecryptField(env *Envelope) (string, error) {
	if !c.Enabled() {
		return "", ErrEncryptionDisabled
	}
	if env == nil || env.V != EnvelopeVersion {
		return "", ErrUnknownVersion
	}

	dek, err := c.unwrapDEK(env)
	if err != nil {
		return "", err
	}

	plaintext, err := openField(dek, env.CT, env.IV, env.AT)
	if err != nil {
		return "", fmt.Errorf("open payload: %w", err)
	}
	return string(plaintext), nil
}

func (c *Cipher) unwrapDEK(env *Envelope) ([]byte, error) {
	dekHex, err := openField(c.wrapKey, env.EK, env.EI, env.EA)
	if err != nil {
		return nil, fmt.Errorf("unwrap DEK: %w", err)
	}
	dek, err := hex.DecodeString(string(dekHex))
	if err != nil || len(dek) != dekSize {
		return nil, errors.New("unwrap DEK: malformed key material")
	}
	return dek, nil
}

// RotateEnvelopes re-wraps each envelope's DEK from the old master key to the
// new one. Payload ciphertexts are untouched; only the key-wrapping layer
// changes. Any envelope that fails to unwrap aborts the batch.
func RotateEnvelopes(envelopes []*Envelope, oldKeyHex, newKeyHex string) ([]*Envelope, error) {
	oldCipher, err := New(oldKeyHex)
	if err != nil {
		return nil, fmt.Errorf("old key: %w", err)
	}
	newCipher, err := New(newKeyHex)
	if err != nil {
		return nil, fmt.Errorf("new key: %w", err)
	}
	if !oldCipher.Enabled() || !newCipher.Enabled() {
		return nil, ErrEncryptionDisabled
	}

	rotated := make([]*Envelope, len(envelopes))
	for i, env := range envelopes {
		if env == nil || env.V != EnvelopeVersion {
			return nil, fmt.Errorf("envelope %d: %w", i, ErrUnknownVersion)
		}
		dek, err := oldCipher.unwrapDEK(env)
		if err != nil {
			return nil, fmt.Errorf("envelope %d: %w", i, err)
		}
		ek, ei, ea, err := seal(newCipher.wrapKey, []byte(hex.EncodeToString(dek)))
		if err != nil {
			return nil, fmt.Errorf("envelope %d: rewrap DEK: %w", i, err)
		}
		rotated[i] = &Envelope{
			V:  env.V,
			CT: env.CT,
			IV: env.IV,
			AT: env.AT,
			EK: base64.StdEncoding.EncodeToString(ek),
			EI: base64.StdEncoding.EncodeToString(ei),
			EA: base64.StdEncoding.EncodeToString(ea),
		}
	}
	return rotated, nil
}

// seal AEAD-encrypts plaintext under key with a fresh nonce and returns the
// ciphertext, nonce and auth tag separately.
func seal(key, plaintext []byte) (ct, nonce, tag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce = make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, err
	}

	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - tagSize
	return sealed[:split], nonce, sealed[split:], nil
}

func openField(key []byte, ctB64, ivB64, atB64 string) ([]byte, error) {
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	at, err := base64.StdEncoding.DecodeString(atB64)
	if err != nil {
		return nil, fmt.Errorf("decode auth tag: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return aesgcm.Open(nil, iv, append(ct, at...), nil)
}
