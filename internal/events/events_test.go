package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPublisher(t *testing.T) *RedisPublisher {
	t.Helper()
	s := miniredis.RunT(t)
	p, err := NewRedisPublisher("redis://"+s.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestNewRedisPublisherBadURL(t *testing.T) {
	_, err := NewRedisPublisher("not a url", "")
	assert.Error(t, err)
}

func TestPublishReachesGlobalAndProjectChannels(t *testing.T) {
	p := setupPublisher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	global, closeGlobal, err := p.Subscribe(ctx, 0)
	require.NoError(t, err)
	defer closeGlobal()

	project, closeProject, err := p.Subscribe(ctx, 42)
	require.NoError(t, err)
	defer closeProject()

	require.NoError(t, p.Publish(ctx, Change{
		Entity:    EntityDocument,
		EntityID:  9,
		ProjectID: 42,
		Op:        OpReviewed,
		ActorID:   "reviewer-1",
	}))

	g := receive(t, global)
	assert.Equal(t, EntityDocument, g.Entity)
	assert.Equal(t, uint64(9), g.EntityID)
	assert.NotEmpty(t, g.ID)
	assert.False(t, g.At.IsZero())

	pc := receive(t, project)
	assert.Equal(t, g.ID, pc.ID)
	assert.Equal(t, OpReviewed, pc.Op)
}

func TestProjectChannelName(t *testing.T) {
	p := setupPublisher(t)
	assert.Equal(t, DefaultChannel, p.Channel())
	assert.Equal(t, "permit-review:changes:project:3", p.ProjectChannel(3))
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Change{}))
	assert.NoError(t, p.Close())
}
