// Package digest produces SHA-256 content fingerprints for files and for
// serialized values. Data digests use canonical JSON so logically identical
// values hash identically regardless of construction order.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"clipforge/internal/services"
)

// Algorithm identifies the hash function behind every digest in the system.
const Algorithm = "sha256"

// FileDigest describes the content fingerprint of a file on disk.
type FileDigest struct {
	Hash      string `json:"hash"`
	Size      int64  `json:"size"`
	Algorithm string `json:"algorithm"`
}

// File digests the bytes of the file at path.
func File(path string) (FileDigest, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileDigest{}, services.Wrap(services.ErrNotFound, "", "hash file", path, err)
		}
		return FileDigest{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return FileDigest{}, fmt.Errorf("read %s: %w", path, err)
	}

	return FileDigest{
		Hash:      hex.EncodeToString(hasher.Sum(nil)),
		Size:      size,
		Algorithm: Algorithm,
	}, nil
}

// Data digests the canonical JSON serialization of v. encoding/json emits map
// keys in sorted order, so key-order permutations of the same value produce
// the same digest. When v cannot be serialized, the digest of its textual
// form is returned instead of an error so provenance recording never blocks
// the pipeline.
func Data(v any) string {
	encoded, err := CanonicalJSON(v)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", v))
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// CanonicalJSON serializes v deterministically.
func CanonicalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Reader digests everything remaining in r.
func Reader(r io.Reader) (string, int64, error) {
	hasher := sha256.New()
	size, err := io.Copy(hasher, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
