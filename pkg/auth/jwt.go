package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/medhq/hospital-api/internal/model"
)

// ActorClaims are the claims minted by the identity service. This layer only
// parses and verifies them; credential checks happen upstream.
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenVerifier interface {
	Verify(token string) (*model.Actor, error)
}

type jwtVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(tokenStr string) (*model.Actor, error) {
	var claims ActorClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	role := model.Role(claims.Role)
	switch role {
	case model.RoleAdmin, model.RoleDoctor, model.RoleNurse, model.RolePatient:
	default:
		return nil, fmt.Errorf("unknown role claim: %q", claims.Role)
	}

	return &model.Actor{ID: actorID, Role: role}, nil
}
