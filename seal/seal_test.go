package seal_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/seal"
)

var testMaster = bytes.Repeat([]byte{0x42}, 32)

func newTestKeyset(t *testing.T, identity string) *seal.Keyset {
	t.Helper()
	ks, err := seal.NewKeyset(testMaster, identity)
	if err != nil {
		t.Fatalf("NewKeyset: %v", err)
	}
	return ks
}

func TestProtectUnprotectRoundTrip(t *testing.T) {
	ks := newTestKeyset(t, "alice@host-a")

	inputs := []string{
		"",
		"x",
		"hello checkpoint",
		strings.Repeat("long state payload ", 1000),
		"unicode: żółć 状態 ✓",
	}
	for _, in := range inputs {
		blob, err := ks.Protect([]byte(in))
		if err != nil {
			t.Fatalf("Protect(%q): %v", in, err)
		}
		out, err := ks.Unprotect(blob)
		if err != nil {
			t.Fatalf("Unprotect(%q): %v", in, err)
		}
		if string(out) != in {
			t.Errorf("round trip mismatch: got %q, want %q", out, in)
		}
	}
}

func TestProtectOutputFormat(t *testing.T) {
	ks := newTestKeyset(t, "alice@host-a")

	blob, err := ks.Protect([]byte("payload"))
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}
	if !strings.HasPrefix(string(blob), seal.FormatV1+":") {
		t.Errorf("blob missing %q marker: %q", seal.FormatV1, blob[:8])
	}
}

func TestProtectIsNonDeterministic(t *testing.T) {
	ks := newTestKeyset(t, "alice@host-a")

	a, _ := ks.Protect([]byte("same plaintext"))
	b, _ := ks.Protect([]byte("same plaintext"))
	if bytes.Equal(a, b) {
		t.Error("two Protect calls produced identical blobs; nonce reuse suspected")
	}
}

func TestBitFlipFailsWithIntegrityError(t *testing.T) {
	ks := newTestKeyset(t, "alice@host-a")

	blob, err := ks.Protect([]byte("sensitive workflow state"))
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}

	// The payload is base64; flipping any base64 character changes the
	// decoded tag or body. Skip the marker prefix so the format stays
	// recognizable.
	start := len(seal.FormatV1) + 1
	for i := start; i < len(blob); i++ {
		mutated := append([]byte(nil), blob...)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if bytes.Equal(mutated, blob) {
			continue
		}

		_, err := ks.Unprotect(mutated)
		if err == nil {
			t.Fatalf("Unprotect succeeded after flipping byte %d", i)
		}
		if !errors.Is(err, seqra.ErrIntegrity) && !errors.Is(err, seqra.ErrUnsupportedFormat) {
			t.Fatalf("byte %d: got %v, want ErrIntegrity (or ErrUnsupportedFormat for broken base64)", i, err)
		}
	}
}

func TestDifferentIdentityFailsClosed(t *testing.T) {
	alice := newTestKeyset(t, "alice@host-a")
	bob := newTestKeyset(t, "bob@host-a")
	other := newTestKeyset(t, "alice@host-b")

	blob, err := alice.Protect([]byte("bound to alice@host-a"))
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}

	for name, ks := range map[string]*seal.Keyset{"other user": bob, "other host": other} {
		_, err := ks.Unprotect(blob)
		if err == nil {
			t.Fatalf("%s: Unprotect succeeded under wrong identity", name)
		}
		if !errors.Is(err, seqra.ErrIntegrity) {
			t.Errorf("%s: got %v, want ErrIntegrity", name, err)
		}
	}
}

func TestUnknownMarkerFails(t *testing.T) {
	ks := newTestKeyset(t, "alice@host-a")

	blob, err := ks.Protect([]byte("payload"))
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}

	tests := []struct {
		name string
		blob []byte
	}{
		{"future version", []byte("v9" + string(blob[2:]))},
		{"no marker", []byte("not a sealed blob")},
		{"empty", nil},
		{"malformed base64", []byte(seal.FormatV1 + ":!!!not-base64!!!")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ks.Unprotect(tt.blob)
			if !errors.Is(err, seqra.ErrUnsupportedFormat) {
				t.Errorf("got %v, want ErrUnsupportedFormat", err)
			}
		})
	}
}

func TestOpenCreatesAndReusesMasterKey(t *testing.T) {
	fs := afero.NewMemMapFs()

	first, err := seal.Open(fs, "/state", "alice@host-a")
	if err != nil {
		t.Fatalf("Open (create): %v", err)
	}
	blob, err := first.Protect([]byte("persisted"))
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}

	// Reopening the same dir must yield a keyset that can read old blobs.
	second, err := seal.Open(fs, "/state", "alice@host-a")
	if err != nil {
		t.Fatalf("Open (reuse): %v", err)
	}
	out, err := second.Unprotect(blob)
	if err != nil {
		t.Fatalf("Unprotect with reopened keyset: %v", err)
	}
	if string(out) != "persisted" {
		t.Errorf("got %q, want %q", out, "persisted")
	}

	// A fresh dir means a fresh master key; old blobs are unreadable.
	fresh, err := seal.Open(fs, "/other", "alice@host-a")
	if err != nil {
		t.Fatalf("Open (fresh dir): %v", err)
	}
	if _, err := fresh.Unprotect(blob); !errors.Is(err, seqra.ErrIntegrity) {
		t.Errorf("fresh keyset: got %v, want ErrIntegrity", err)
	}
}
