package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"profile_server/internal/batch"
	"profile_server/internal/events"
	"profile_server/platform/httpkit"
	"profile_server/platform/logger"

	"github.com/redis/go-redis/v9"
)

// RegisterHandlers drops a user's cached profile whenever it changes.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.ProfileChanged{}.EventName(), events.HandlerFunc(m.handleProfileChanged))
}

func (m *Module) handleProfileChanged(ctx context.Context, event events.Event) error {
	changed, ok := event.(events.ProfileChanged)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}
	if changed.UserID == "" {
		return nil
	}

	key := KeyFor(batch.Args{Credentials: httpkit.Credentials{User: changed.UserID}})
	if err := m.binding.Method().Drop(ctx, key); err != nil {
		m.log.CacheError("drop", key, err)
		return err
	}
	m.log.Debug("profile cache dropped", "user", changed.UserID, "fields", changed.Fields)
	return nil
}

// ChangeSubscriber forwards profile change notifications published on a
// Redis channel onto the event bus, so every instance drops its cache.
type ChangeSubscriber struct {
	client  *redis.Client
	channel string
	bus     events.Bus
	log     *logger.Logger
}

// NewChangeSubscriber creates a subscriber for channel.
func NewChangeSubscriber(client *redis.Client, channel string, bus events.Bus, log *logger.Logger) *ChangeSubscriber {
	return &ChangeSubscriber{
		client:  client,
		channel: channel,
		bus:     bus,
		log:     log.Named("profile.changes"),
	}
}

// Run listens until ctx is cancelled. It returns once the subscription is
// closed. Handlers may still be running; InMemoryBus.Wait waits for them.
func (s *ChangeSubscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.log.Info("listening for profile changes", "channel", s.channel)

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			event, err := ParseChange(msg.Payload)
			if err != nil {
				s.log.Warn("ignoring malformed profile change", "error", err, "payload", msg.Payload)
				continue
			}
			// Handlers run off the receive loop; the bus logs their failures.
			s.bus.Publish(ctx, event)
		}
	}
}

// ParseChange accepts either {"uid": "...", "fields": [...]} or a bare user id.
func ParseChange(payload string) (events.ProfileChanged, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return events.ProfileChanged{}, errors.New("empty payload")
	}
	if !strings.HasPrefix(payload, "{") {
		return events.NewProfileChanged(payload), nil
	}

	var body struct {
		UID    string   `json:"uid"`
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return events.ProfileChanged{}, fmt.Errorf("decode profile change: %w", err)
	}
	if body.UID == "" {
		return events.ProfileChanged{}, errors.New("profile change has no uid")
	}
	return events.NewProfileChanged(body.UID, body.Fields...), nil
}
