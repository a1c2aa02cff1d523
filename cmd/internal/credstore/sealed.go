package credstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	sealedPrefix = "sealed.v1."

	// The current supported version of the sealed blob format.
	sealedFormatVersion = 1
)

// blob is the JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// Sealed encrypts the credential before handing it to the wrapped Store.
//
// Values saved before sealing was enabled are returned unchanged by Load and
// get sealed on the next Save.
type Sealed struct {
	inner      Store
	passphrase string

	n, r, p int
}

// NewSealed wraps inner with passphrase-based encryption.
func NewSealed(inner Store, passphrase string) *Sealed {
	n, r, p := scryptParamsDefault()
	return &Sealed{inner: inner, passphrase: passphrase, n: n, r: r, p: p}
}

// Load reads and opens the credential.
func (s *Sealed) Load(ctx context.Context) (string, error) {
	raw, err := s.inner.Load(ctx)
	if err != nil || raw == "" {
		return raw, err
	}
	if !strings.HasPrefix(raw, sealedPrefix) {
		return raw, nil
	}

	enc, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(raw, sealedPrefix))
	if err != nil {
		return "", &Error{Op: "open", Err: err}
	}
	pt, err := decrypt(s.passphrase, enc)
	if err != nil {
		return "", &Error{Op: "open", Err: err}
	}
	return string(pt), nil
}

// Save seals credential and stores it.
func (s *Sealed) Save(ctx context.Context, credential string) error {
	enc, err := encrypt(s.passphrase, []byte(credential), s.n, s.r, s.p)
	if err != nil {
		return &Error{Op: "seal", Err: err}
	}
	return s.inner.Save(ctx, sealedPrefix+base64.RawURLEncoding.EncodeToString(enc))
}

// encrypt derives a key from passphrase and seals raw into a JSON blob.
func encrypt(passphrase string, raw []byte, N, r, p int) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), salt[:], N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; the salt makes every key unique
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(blob{
		V:      sealedFormatVersion,
		Salt:   salt[:],
		N:      N,
		R:      r,
		P:      p,
		Cipher: ct,
	})
}

// decrypt opens the JSON blob using a key derived from passphrase.
func decrypt(passphrase string, b []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V > sealedFormatVersion {
		return nil, fmt.Errorf("unsupported sealed format version %d", bl.V)
	}

	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }

var _ Store = (*Sealed)(nil)
