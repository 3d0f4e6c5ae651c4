package utils

import (
	"errors"
	"testing"
	"time"

	"moveflow/models"

	"github.com/golang-jwt/jwt"
)

func TestActorTokenRoundTrip(t *testing.T) {
	id := "user-42"
	token, err := GenerateActorToken("s3cret", models.Actor{ID: &id, Type: models.ActorCustomer, Name: "Jordan"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	actor, err := ParseActorToken("s3cret", token)
	if err != nil {
		t.Fatalf("ParseActorToken: %v", err)
	}
	if actor.Type != models.ActorCustomer || actor.Name != "Jordan" || actor.ID == nil || *actor.ID != id {
		t.Errorf("actor = %+v", actor)
	}
}

func TestParseActorTokenRejects(t *testing.T) {
	valid, _ := GenerateActorToken("s3cret", models.Actor{Type: models.ActorMover, Name: "Casey"}, time.Hour)
	expired, _ := GenerateActorToken("s3cret", models.Actor{Type: models.ActorMover}, -time.Minute)
	badType, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"actor_type": "llama",
		"exp":        time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", valid},
		{"expired", "s3cret", expired},
		{"unknown actor type", "s3cret", badType},
		{"garbage", "s3cret", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseActorToken(tt.secret, tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestParseActorTokenDefaultsName(t *testing.T) {
	token, _ := GenerateActorToken("k", models.Actor{Type: models.ActorSystem}, time.Hour)
	actor, err := ParseActorToken("k", token)
	if err != nil {
		t.Fatal(err)
	}
	if actor.Name != "system" || actor.ID != nil {
		t.Errorf("actor = %+v", actor)
	}
}
