package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "coldledger/internal/core/context"
)

// HeaderActorID names the operator performing a request.
const HeaderActorID = "X-Actor-ID"

const actorKey = "actor_id"

// Actor resolves the acting operator from X-Actor-ID, falling back to
// defaultActor. The value is stored on the gin context and on the request
// context for log enrichment.
func Actor(defaultActor string) gin.HandlerFunc {
	defaultActor = appctx.ActorOrDefault(strings.TrimSpace(defaultActor))
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if actor == "" {
			actor = defaultActor
		}
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(appctx.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// ActorID returns the actor resolved by Actor.
func ActorID(c *gin.Context) string {
	return appctx.ActorOrDefault(c.GetString(actorKey))
}
