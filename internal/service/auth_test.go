package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_IssueToken_VerifyToken_RoundTrips(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	id, err := uuid.NewRandom()
	require.NoError(err)
	key := APIKey{ID: id, Label: "ci", SecretHash: "$2a$10$fakehashfakehashfakehashfa"}
	secret := []byte("service-secret")

	tok, err := IssueToken(key, secret, time.Hour)
	require.NoError(err)

	lookup := func(_ context.Context, lookedUp uuid.UUID) (APIKey, error) {
		assert.Equal(id, lookedUp)
		return key, nil
	}

	resolved, err := VerifyToken(context.Background(), tok, secret, lookup)
	assert.NoError(err)
	assert.Equal(key.ID, resolved.ID)
}

func Test_VerifyToken_RejectsWrongServiceSecret(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	id, err := uuid.NewRandom()
	require.NoError(err)
	key := APIKey{ID: id, SecretHash: "hash-a"}

	tok, err := IssueToken(key, []byte("secret-one"), time.Hour)
	require.NoError(err)

	lookup := func(_ context.Context, _ uuid.UUID) (APIKey, error) { return key, nil }

	_, err = VerifyToken(context.Background(), tok, []byte("secret-two"), lookup)
	assert.Error(err)
}

func Test_VerifyToken_RejectsDisabledKey(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	id, err := uuid.NewRandom()
	require.NoError(err)
	key := APIKey{ID: id, SecretHash: "hash-a"}
	secret := []byte("service-secret")

	tok, err := IssueToken(key, secret, time.Hour)
	require.NoError(err)

	disabled := key
	disabled.Disabled = true
	lookup := func(_ context.Context, _ uuid.UUID) (APIKey, error) { return disabled, nil }

	_, err = VerifyToken(context.Background(), tok, secret, lookup)
	assert.Error(err)
}

func Test_VerifyToken_RejectsExpiredToken(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	id, err := uuid.NewRandom()
	require.NoError(err)
	key := APIKey{ID: id, SecretHash: "hash-a"}
	secret := []byte("service-secret")

	tok, err := IssueToken(key, secret, -time.Hour)
	require.NoError(err)

	lookup := func(_ context.Context, _ uuid.UUID) (APIKey, error) { return key, nil }

	_, err = VerifyToken(context.Background(), tok, secret, lookup)
	assert.Error(err)
}
