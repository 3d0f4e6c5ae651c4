package middleware

import (
	"net/http"
	"strings"

	"moveflow/models"
	"moveflow/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorKey = "actor"

// ActorAuth verifies the bearer token and stores the caller as a models.Actor.
func ActorAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.JSONError(c, http.StatusUnauthorized, "Insufficient authorization", "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		actor, err := utils.ParseActorToken(secret, tokenString)
		if err != nil {
			utils.GetLogger().Debug("Rejected token", zap.Error(err))
			utils.JSONError(c, http.StatusUnauthorized, "Insufficient authorization", "invalid token")
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireActorType rejects callers whose actor type is not listed.
func RequireActorType(types ...models.ActorType) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			utils.JSONError(c, http.StatusUnauthorized, "Insufficient authorization", "no actor on request")
			return
		}
		for _, t := range types {
			if actor.Type == t {
				c.Next()
				return
			}
		}
		utils.JSONError(c, http.StatusForbidden, "Forbidden", "actor type "+string(actor.Type)+" may not perform this action")
	}
}

func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
