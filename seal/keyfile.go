package seal

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// KeyFileName is the per-install master key file under the state dir.
const KeyFileName = "instance.key"

// Open loads the per-install master key from dir, creating a fresh
// random key on first use, and returns a Keyset bound to the given
// identity. The key file is written with owner-only permissions.
//
// The master key is random rather than derived from the identity, so
// possession of the (non-secret) account and host names alone is not
// enough to forge a valid integrity tag.
func Open(fs afero.Fs, dir, identity string) (*Keyset, error) {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("seal: create state dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, KeyFileName)
	master, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if len(master) < keySize {
			return nil, fmt.Errorf("seal: master key file %s truncated (%d bytes)", path, len(master))
		}
	case os.IsNotExist(err):
		master = make([]byte, keySize)
		if _, randErr := rand.Read(master); randErr != nil {
			return nil, fmt.Errorf("seal: generate master key: %w", randErr)
		}
		if writeErr := afero.WriteFile(fs, path, master, 0o600); writeErr != nil {
			return nil, fmt.Errorf("seal: write master key file %s: %w", path, writeErr)
		}
	default:
		return nil, fmt.Errorf("seal: read master key file %s: %w", path, err)
	}

	return NewKeyset(master, identity)
}
