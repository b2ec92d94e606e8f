package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/n0remac/visionguard/alerthub"
	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/registry"
)

func TestShutdownDrainsRegistryAndCancelsPoll(t *testing.T) {
	reg := registry.New()
	torndown := false
	reg.Add(&registry.Handle{StreamID: "s1", UserID: uuid.New(), Teardown: func() { torndown = true }})

	pollCancelled := make(chan struct{})
	ctl := &Controller{
		Manager:  models.New(),
		Registry: reg,
		Hub:      alerthub.New(),
		Poll: func(ctx context.Context) {
			<-ctx.Done()
			close(pollCancelled)
		},
	}

	// Start a poller directly the way Start does, without going through
	// Manager.Load (which requires a real detector artifact on disk).
	ctx, cancel := context.WithCancel(context.Background())
	ctl.pollCancel = cancel
	ctl.pollActive.Store(true)
	go func() {
		defer ctl.pollActive.Store(false)
		ctl.Poll(ctx)
	}()

	ctl.Shutdown()

	assert.True(t, torndown, "Shutdown must tear down every registered stream")
	assert.Empty(t, reg.All())

	select {
	case <-pollCancelled:
	case <-time.After(time.Second):
		t.Fatal("Shutdown must cancel the poller")
	}
}

func TestShutdownWithoutPollerIsSafe(t *testing.T) {
	ctl := &Controller{
		Manager:  models.New(),
		Registry: registry.New(),
		Hub:      alerthub.New(),
	}
	assert.NotPanics(t, ctl.Shutdown)
}
