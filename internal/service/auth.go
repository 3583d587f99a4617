package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer is "tqs" in the teacher's server; here it names this
// service instead.
const tokenIssuer = "tameparse-buildd"

// IssueToken mints a bearer JWT for key, grounded on server.go's
// generateJWTForUser: HS512, an "iss"/"exp"/"sub" claim set, signed with a
// key derived from the service secret plus the API key's own secret hash
// (mirroring the teacher's own "append the password hash to the signing
// key" trick: changing a key's SecretHash invalidates its issued tokens).
// Disabling a key leaves the signing key unchanged; VerifyToken rejects its
// tokens by checking the Disabled flag of the looked-up record.
func IssueToken(key APIKey, serviceSecret []byte, ttl time.Duration) (string, error) {
	claims := &jwt.MapClaims{
		"iss": tokenIssuer,
		"sub": key.ID.String(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)

	signKey := signingKeyFor(key, serviceSecret)
	tokStr, err := tok.SignedString(signKey)
	if err != nil {
		return "", fmt.Errorf("service: signing token: %w", err)
	}
	return tokStr, nil
}

// VerifyToken validates tok and resolves its subject to an APIKey via
// lookup, the same "parse, extract subject, re-derive the signing key from
// the looked-up record" shape as server.go's verifyJWT.
func VerifyToken(ctx context.Context, tok string, serviceSecret []byte, lookup func(context.Context, uuid.UUID) (APIKey, error)) (APIKey, error) {
	var key APIKey

	_, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		subj, err := t.Claims.GetSubject()
		if err != nil {
			return nil, fmt.Errorf("cannot get subject: %w", err)
		}
		id, err := uuid.Parse(subj)
		if err != nil {
			return nil, fmt.Errorf("cannot parse subject UUID: %w", err)
		}
		key, err = lookup(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("subject could not be validated: %w", err)
		}
		if key.Disabled {
			return nil, fmt.Errorf("subject is disabled")
		}
		return signingKeyFor(key, serviceSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithLeeway(time.Minute))

	if err != nil {
		return APIKey{}, fmt.Errorf("service: invalid token: %w", err)
	}
	return key, nil
}

func signingKeyFor(key APIKey, serviceSecret []byte) []byte {
	signKey := append([]byte{}, serviceSecret...)
	signKey = append(signKey, []byte(key.SecretHash)...)
	return signKey
}
