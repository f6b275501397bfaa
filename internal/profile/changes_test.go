package profile

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"profile_server/internal/events"
	"profile_server/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChange(t *testing.T) {
	ev, err := ParseChange(`{"uid":"u123","fields":["avatar"]}`)
	require.NoError(t, err)
	assert.Equal(t, "u123", ev.UserID)
	assert.Equal(t, []string{"avatar"}, ev.Fields)
	assert.False(t, ev.OccurredAt().IsZero())

	ev, err = ParseChange(" u456 ")
	require.NoError(t, err)
	assert.Equal(t, "u456", ev.UserID)

	for _, bad := range []string{"", `{"fields":["email"]}`, `{"uid":`} {
		_, err := ParseChange(bad)
		assert.Error(t, err, "payload %q", bad)
	}
}

func TestProfileChangedDropsCache(t *testing.T) {
	srv := newTestServer(t, &fakeServices{values: emailOnly()}, false)
	bus := events.NewInMemoryBus(logger.NewWithWriter("test", io.Discard))
	srv.module.RegisterHandlers(bus)

	require.Equal(t, http.StatusOK, srv.get("email-token").Code)
	require.Equal(t, http.StatusOK, srv.get("email-token").Code)
	require.Equal(t, 1, srv.services.computations())

	// Another user's change leaves u123 cached.
	require.NoError(t, bus.PublishSync(context.Background(), events.NewProfileChanged("u456")))
	require.Equal(t, http.StatusOK, srv.get("email-token").Code)
	assert.Equal(t, 1, srv.services.computations())

	require.NoError(t, bus.PublishSync(context.Background(), events.NewProfileChanged("u123", "email")))
	require.Equal(t, http.StatusOK, srv.get("email-token").Code)
	assert.Equal(t, 2, srv.services.computations())
}

func TestChangeSubscriberForwardsRedisMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := logger.NewWithWriter("test", io.Discard)
	bus := events.NewInMemoryBus(log)
	received := make(chan events.ProfileChanged, 4)
	bus.Subscribe(events.ProfileChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		received <- e.(events.ProfileChanged)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	sub := NewChangeSubscriber(client, "profile:changes", bus, log)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("profile:changes")["profile:changes"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	mr.Publish("profile:changes", "not-json-but-a-uid")
	mr.Publish("profile:changes", `{"uid":"u123","fields":["displayName"]}`)

	first := awaitChange(t, received)
	assert.Equal(t, "not-json-but-a-uid", first.UserID)
	second := awaitChange(t, received)
	assert.Equal(t, "u123", second.UserID)
	assert.Equal(t, []string{"displayName"}, second.Fields)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func awaitChange(t *testing.T, ch <-chan events.ProfileChanged) events.ProfileChanged {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no profile change received")
		return events.ProfileChanged{}
	}
}

func TestChangeSubscriberDropsCachedProfile(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	srv := newTestServer(t, &fakeServices{values: emailOnly()}, false)
	log := logger.NewWithWriter("test", io.Discard)
	bus := events.NewInMemoryBus(log)
	srv.module.RegisterHandlers(bus)

	require.Equal(t, http.StatusOK, srv.get("email-token").Code)
	require.Equal(t, 1, srv.services.computations())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewChangeSubscriber(client, "profile:changes", bus, log).Run(ctx) }()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("profile:changes")["profile:changes"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	mr.Publish("profile:changes", `{"uid":"u123","fields":["email"]}`)

	require.Eventually(t, func() bool {
		return srv.get("email-token").Code == http.StatusOK && srv.services.computations() == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	bus.Wait()
}
