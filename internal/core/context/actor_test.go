package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), "clerk-7")
	assert.Equal(t, "clerk-7", GetActorID(ctx))
	assert.Equal(t, "", GetActorID(context.Background()))
}

func TestActorOrDefault(t *testing.T) {
	assert.Equal(t, DefaultActor, ActorOrDefault(""))
	assert.Equal(t, "night-shift", ActorOrDefault("night-shift"))
}
