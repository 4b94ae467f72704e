package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fathima-sithara/marketchat/internal/apperr"
)

type Claims struct {
	UserUUID    string `json:"user_uuid"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Validator resolves a connection credential (a bearer token) to a stable
// user identity. The chat core trusts the resolved id and performs no
// authentication of its own.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

func (v *Validator) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserUUID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	return claims, nil
}

func ParseBearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: authorization header empty", apperr.ErrUnauthenticated)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("%w: invalid authorization header format", apperr.ErrUnauthenticated)
	}
	return parts[1], nil
}
