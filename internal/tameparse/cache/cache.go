// Package cache implements the compiled-artifact cache SPEC_FULL.md's
// domain-stack table assigns to github.com/dekarrin/rezi: a store keyed on
// a hash of (source text, generator version, target language) — DESIGN.md
// Open Question 2's resolution — so a project's build tool can skip
// recompiling a grammar/lexer pair whose source hasn't changed since the
// last run with this generator version.
//
// Grounded on server/dao/sqlite's use of rezi to binary-encode a value for
// storage (rezi.EncBinary before writing, rezi.DecBinary after reading,
// checking the consumed byte count matches); cache.Store plays the same
// "encode a Go value, persist the bytes, decode it back" role, with a flat
// file per key standing in for sqlite's row-per-record storage.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dekarrin/rezi"
)

// Key identifies one compiled artifact: a hash of its source text, the
// generator version that compiled it, and its target language. Any change
// to source, generator version, or target language is a cache miss
// (DESIGN.md Open Question 2).
type Key struct {
	SourceHash     [32]byte
	GeneratorVer   uint32
	TargetLanguage string
}

// NewKey hashes sourceText together with the generator version and target
// language into a Key. Two calls with identical arguments always produce an
// identical Key (sha256 over a length-delimited concatenation, so
// "ab"+"c" can never collide with "a"+"bc").
func NewKey(sourceText []byte, generatorVer uint32, targetLanguage string) Key {
	h := sha256.New()
	fmt.Fprintf(h, "%d:", len(sourceText))
	h.Write(sourceText)
	fmt.Fprintf(h, ":%d:%d:%s", generatorVer, len(targetLanguage), targetLanguage)
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return Key{SourceHash: sum, GeneratorVer: generatorVer, TargetLanguage: targetLanguage}
}

// fileName is the cache key's on-disk file name: the hex source hash,
// generator version, and target language all factor into it so two
// distinct keys never collide on the same path even if TargetLanguage
// contains path-unsafe characters is avoided by hex-encoding it too.
func (k Key) fileName() string {
	return fmt.Sprintf("%s-%08x-%s.rezi", hex.EncodeToString(k.SourceHash[:]), k.GeneratorVer, hex.EncodeToString([]byte(k.TargetLanguage)))
}

// Entry is one cached compiled artifact: the binary table bytes (component
// I's output) plus the key it was stored under, so a reader can confirm
// the entry it loaded matches the key it asked for.
type Entry struct {
	Key   Key
	Table []byte
}

// ErrMiss is returned by Store.Get when no entry exists for a key.
var ErrMiss = errors.New("cache: miss")

// ErrCorrupt wraps a decode failure on a stored entry, or a stored key that
// does not match the requested one (the condition diag.CodeCacheCorrupt
// names; this package files no diagnostic itself).
type ErrCorrupt struct {
	Path string
	Err  error
}

func (e *ErrCorrupt) Error() string { return fmt.Sprintf("cache: corrupt entry %s: %v", e.Path, e.Err) }
func (e *ErrCorrupt) Unwrap() error { return e.Err }

// Store is a directory-backed cache of compiled artifacts, one rezi-encoded
// file per key.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir, creating dir if it doesn't exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(k Key) string { return filepath.Join(s.dir, k.fileName()) }

// Get loads the entry stored for k. It returns ErrMiss if no entry exists,
// or an *ErrCorrupt if the stored bytes don't decode or the decoded key
// doesn't match k (a hash collision on the file name, or a truncated
// write).
func (s *Store) Get(k Key) (Entry, error) {
	data, err := os.ReadFile(s.path(k))
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache: reading %s: %w", s.path(k), err)
	}

	var stored Entry
	n, err := rezi.DecBinary(data, &stored)
	if err != nil {
		return Entry{}, &ErrCorrupt{Path: s.path(k), Err: err}
	}
	if n != len(data) {
		return Entry{}, &ErrCorrupt{Path: s.path(k), Err: fmt.Errorf("decoded %d/%d bytes", n, len(data))}
	}
	if stored.Key != k {
		return Entry{}, &ErrCorrupt{Path: s.path(k), Err: fmt.Errorf("stored key does not match requested key")}
	}
	return stored, nil
}

// Put stores table under k, overwriting any existing entry. The write
// target is a temp file renamed into place so a concurrent Get never
// observes a partially written entry.
func (s *Store) Put(k Key, table []byte) error {
	entry := Entry{Key: k, Table: table}
	data := rezi.EncBinary(entry)

	dst := s.path(k)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("cache: renaming into place %s: %w", dst, err)
	}
	return nil
}

// Evict removes the entry stored for k, if any. Evicting a key with no
// entry is not an error.
func (s *Store) Evict(k Key) error {
	err := os.Remove(s.path(k))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
