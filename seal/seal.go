// Package seal protects opaque state blobs at rest. Blobs are encrypted
// with AES-256-GCM and carry an HMAC-SHA256 integrity tag over the
// ciphertext. Keys are derived from a per-install master key bound to the
// local account and host identity, so a blob written by one user on one
// machine cannot be read by a different user or on a different machine.
//
// The wire format is a version marker followed by the base64 payload:
//
//	v1:<base64(tag || nonce || ciphertext)>
//
// The tag is verified in constant time before any decryption is
// attempted. Unknown markers and malformed base64 fail closed.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/seqra/seqra"
)

// FormatV1 is the current blob format marker.
const FormatV1 = "v1"

const (
	keySize   = 32
	tagSize   = sha256.Size
	nonceSize = 12
)

// Protector encrypts and integrity-protects opaque blobs.
// Implementations must never return plaintext from Unprotect without
// verifying the integrity tag first.
type Protector interface {
	// Protect encrypts and seals plaintext into an opaque blob.
	Protect(plaintext []byte) ([]byte, error)

	// Unprotect verifies and decrypts a blob produced by Protect.
	// It fails with seqra.ErrIntegrity on tag mismatch,
	// seqra.ErrDecryption when decryption fails (wrong identity or key),
	// and seqra.ErrUnsupportedFormat on unknown markers or malformed
	// encoding.
	Unprotect(blob []byte) ([]byte, error)
}

// Keyset is the default Protector backend. It holds independent
// encryption and MAC keys expanded from a master key via HKDF-SHA256,
// with the local identity mixed in as salt.
type Keyset struct {
	encKey []byte
	macKey []byte
}

var _ Protector = (*Keyset)(nil)

// NewKeyset derives a Keyset from the given master key and identity
// string (conventionally "user@host"). The identity acts as the HKDF
// salt: the same master key under a different identity yields unrelated
// keys, so Unprotect fails.
func NewKeyset(master []byte, identity string) (*Keyset, error) {
	if len(master) < keySize {
		return nil, fmt.Errorf("seal: master key must be at least %d bytes, got %d", keySize, len(master))
	}
	if identity == "" {
		return nil, fmt.Errorf("seal: identity must not be empty")
	}

	encKey, err := expand(master, identity, "seqra-seal-encrypt")
	if err != nil {
		return nil, err
	}
	macKey, err := expand(master, identity, "seqra-seal-mac")
	if err != nil {
		return nil, err
	}

	return &Keyset{encKey: encKey, macKey: macKey}, nil
}

func expand(master []byte, salt, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, master, []byte(salt), []byte(info))
	key := make([]byte, keySize)
	if _, err := r.Read(key); err != nil {
		return nil, fmt.Errorf("seal: derive %s key: %w", info, err)
	}
	return key, nil
}

// Protect implements Protector.
func (k *Keyset) Protect(plaintext []byte) ([]byte, error) {
	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("seal: generate nonce: %w", err)
	}

	// body is nonce || ciphertext; the tag covers the whole body.
	body := gcm.Seal(nonce, nonce, plaintext, nil)

	mac := hmac.New(sha256.New, k.macKey)
	mac.Write(body)
	tag := mac.Sum(nil)

	payload := make([]byte, 0, len(tag)+len(body))
	payload = append(payload, tag...)
	payload = append(payload, body...)

	out := FormatV1 + ":" + base64.StdEncoding.EncodeToString(payload)
	return []byte(out), nil
}

// Unprotect implements Protector.
func (k *Keyset) Unprotect(blob []byte) ([]byte, error) {
	marker, encoded, ok := strings.Cut(string(blob), ":")
	if !ok {
		return nil, fmt.Errorf("seal: missing format marker: %w", seqra.ErrUnsupportedFormat)
	}
	if marker != FormatV1 {
		return nil, fmt.Errorf("seal: unknown format marker %q: %w", marker, seqra.ErrUnsupportedFormat)
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("seal: malformed payload: %w", seqra.ErrUnsupportedFormat)
	}
	if len(payload) < tagSize+nonceSize {
		return nil, fmt.Errorf("seal: payload truncated: %w", seqra.ErrIntegrity)
	}

	tag, body := payload[:tagSize], payload[tagSize:]

	mac := hmac.New(sha256.New, k.macKey)
	mac.Write(body)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, fmt.Errorf("seal: integrity tag mismatch: %w", seqra.ErrIntegrity)
	}

	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := body[:nonceSize], body[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("seal: open ciphertext: %w", seqra.ErrDecryption)
	}

	return plaintext, nil
}

func (k *Keyset) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.encKey)
	if err != nil {
		return nil, fmt.Errorf("seal: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: init gcm: %w", err)
	}
	return gcm, nil
}
