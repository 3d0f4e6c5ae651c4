package utils

import (
	"errors"
	"fmt"
	"time"

	"moveflow/models"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidToken = errors.New("invalid token")

// GenerateActorToken signs an HS256 token carrying the actor identity.
// Production tokens come from the identity provider; this is used by tests and tooling.
func GenerateActorToken(secret string, actor models.Actor, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"name":       actor.Name,
		"actor_type": string(actor.Type),
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(duration).Unix(),
	}
	if actor.ID != nil {
		claims["sub"] = *actor.ID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseActorToken validates the signature and expiry and extracts the actor.
func ParseActorToken(secret, tokenString string) (models.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Actor{}, ErrInvalidToken
	}

	actorType := models.ActorType(stringClaim(claims, "actor_type"))
	if !actorType.IsValid() {
		return models.Actor{}, fmt.Errorf("%w: unknown actor_type %q", ErrInvalidToken, actorType)
	}
	actor := models.Actor{Type: actorType, Name: stringClaim(claims, "name")}
	if sub := stringClaim(claims, "sub"); sub != "" {
		actor.ID = &sub
	}
	if actor.Name == "" {
		actor.Name = string(actorType)
	}
	return actor, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
