// Package service implements the optional compile-as-a-service daemon
// SPEC_FULL.md's domain-stack table assigns the remaining teacher HTTP
// dependencies to: github.com/go-chi/chi/v5 for routing,
// github.com/golang-jwt/jwt/v5 for bearer auth, github.com/google/uuid for
// API key IDs and request trace IDs, modernc.org/sqlite for the API key
// store, and golang.org/x/crypto/bcrypt for key-secret hashing.
//
// Grounded on the teacher's server package: KeyStore plays the role
// server/dao/sqlite's UsersDB plays for user accounts, but for API keys
// instead of user accounts, using the same sql.Open("sqlite", path) and
// wrapDBError(*sqlite.Error) conventions.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"modernc.org/sqlite"
)

// APIKey is one issued compile-service credential. SecretHash is a bcrypt
// hash of the caller-chosen secret, never the secret itself.
type APIKey struct {
	ID         uuid.UUID
	Label      string
	SecretHash string
	Disabled   bool
	Created    time.Time
}

// ErrNotFound is returned when a key ID has no corresponding row.
var ErrNotFound = errors.New("service: key not found")

// ErrBadSecret is returned when a presented secret doesn't match the
// stored hash, or the key is disabled.
var ErrBadSecret = errors.New("service: bad API key secret")

// KeyStore is a sqlite-backed table of issued API keys.
type KeyStore struct {
	db *sql.DB
}

// OpenKeyStore opens (creating if necessary) the sqlite database at path
// and ensures the api_keys table exists.
func OpenKeyStore(path string) (*KeyStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapDBError(err)
	}
	ks := &KeyStore{db: db}
	if err := ks.init(); err != nil {
		return nil, err
	}
	return ks, nil
}

func (ks *KeyStore) init() error {
	_, err := ks.db.Exec(`CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT NOT NULL PRIMARY KEY,
		label TEXT NOT NULL,
		secret_hash TEXT NOT NULL,
		disabled INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

// Issue creates a new API key with the given label and secret, returning
// the generated key ID. The secret is hashed with bcrypt before storage;
// it is never persisted or logged in cleartext.
func (ks *KeyStore) Issue(ctx context.Context, label, secret string) (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("service: generating key id: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return uuid.UUID{}, fmt.Errorf("service: secret is too long")
		}
		return uuid.UUID{}, fmt.Errorf("service: hashing secret: %w", err)
	}

	_, err = ks.db.ExecContext(ctx, `INSERT INTO api_keys (id, label, secret_hash, disabled, created) VALUES (?, ?, ?, 0, ?)`,
		id.String(), label, string(hash), time.Now().Unix())
	if err != nil {
		return uuid.UUID{}, wrapDBError(err)
	}
	return id, nil
}

// GetByID looks up a key by ID without checking any secret — used to
// re-resolve the key record a validated JWT's subject names (VerifyToken's
// lookup callback), where the secret was already proven by the token's
// signature, not a fresh comparison.
func (ks *KeyStore) GetByID(ctx context.Context, id uuid.UUID) (APIKey, error) {
	row := ks.db.QueryRowContext(ctx, `SELECT label, secret_hash, disabled, created FROM api_keys WHERE id = ?`, id.String())

	var (
		key      APIKey
		disabled int
		created  int64
	)
	if err := row.Scan(&key.Label, &key.SecretHash, &disabled, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return APIKey{}, ErrNotFound
		}
		return APIKey{}, wrapDBError(err)
	}
	key.ID = id
	key.Disabled = disabled != 0
	key.Created = time.Unix(created, 0)
	return key, nil
}

// Authenticate verifies secret against the stored hash for id, returning
// ErrNotFound if no such key exists and ErrBadSecret if the key is
// disabled or the secret doesn't match.
func (ks *KeyStore) Authenticate(ctx context.Context, id uuid.UUID, secret string) (APIKey, error) {
	key, err := ks.GetByID(ctx, id)
	if err != nil {
		return APIKey{}, err
	}
	if key.Disabled {
		return APIKey{}, ErrBadSecret
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return APIKey{}, ErrBadSecret
	}
	return key, nil
}

// Disable marks an API key unusable without deleting its history.
func (ks *KeyStore) Disable(ctx context.Context, id uuid.UUID) error {
	res, err := ks.db.ExecContext(ctx, `UPDATE api_keys SET disabled = 1 WHERE id = ?`, id.String())
	if err != nil {
		return wrapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code() == 19 {
			return fmt.Errorf("service: constraint violation: %s", sqlite.ErrorCodeString[sqliteErr.Code()])
		}
		return fmt.Errorf("service: %s", sqlite.ErrorCodeString[sqliteErr.Code()])
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
