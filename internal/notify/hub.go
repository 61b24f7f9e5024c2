package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"innoviahub/internal/metrics"
	"innoviahub/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Channel is the logical pub/sub channel carrying slot occupancy changes.
const Channel = "booking_updates"

const (
	subscriberBuffer = 16
	publishQueue     = 256
	publishTimeout   = 5 * time.Second
)

// envelope wraps an event on the wire so an instance can skip the copies
// of its own broadcasts relayed back through Redis.
type envelope struct {
	Origin string           `json:"origin"`
	Event  models.SlotEvent `json:"event"`
}

// Hub fans slot events out to connected observers. Delivery is
// best-effort: a slow observer drops events and reconciles with a full
// catalog refresh on reconnect. Broadcast never blocks the committer.
type Hub struct {
	instanceID string

	mu          sync.RWMutex
	subscribers map[string]chan models.SlotEvent

	redis     *redis.Client
	publishCh chan []byte
	logger    *zerolog.Logger
}

// NewHub constructs a hub. redisClient may be nil for single-instance
// deployments; when set, events are also published to the shared Redis
// channel so other instances fan them out to their own observers.
func NewHub(redisClient *redis.Client, logger *zerolog.Logger) *Hub {
	h := &Hub{
		instanceID:  uuid.NewString(),
		subscribers: make(map[string]chan models.SlotEvent),
		redis:       redisClient,
		logger:      logger,
	}
	if redisClient != nil {
		h.publishCh = make(chan []byte, publishQueue)
		go h.publishLoop()
	}
	return h
}

// Subscribe registers an observer and returns its ID and event channel.
func (h *Hub) Subscribe() (string, <-chan models.SlotEvent) {
	id := uuid.NewString()
	ch := make(chan models.SlotEvent, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe removes an observer and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if ok {
		close(ch)
	}
}

// Broadcast delivers the event to every local observer and, when Redis is
// configured, hands it to the publish worker for the shared channel.
// Called on the post-commit path while the slot's critical section still
// serializes transitions for that key; enqueueing happens under that lock
// and the worker drains in FIFO order, so each observer sees a given
// slot's changes in commit order. Never blocks the committer: a full
// publish queue drops the event, like a slow local observer.
func (h *Hub) Broadcast(_ context.Context, event models.SlotEvent) {
	h.deliverLocal(event)

	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(envelope{Origin: h.instanceID, Event: event})
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal slot event")
		return
	}
	select {
	case h.publishCh <- payload:
	default:
		metrics.IncEventDropped()
		h.logger.Warn().Str("slot", event.Key.String()).
			Msg("dropping slot event, redis publish queue is full")
	}
}

// publishLoop serializes Redis publishes so a slow broker never stalls a
// commit. Each publish is bounded; failures are logged and skipped.
func (h *Hub) publishLoop() {
	for payload := range h.publishCh {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := h.redis.Publish(ctx, Channel, payload).Err(); err != nil {
			h.logger.Error().Err(err).Msg("publish slot event to redis")
		}
		cancel()
	}
}

func (h *Hub) deliverLocal(event models.SlotEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- event:
			metrics.IncEventDelivered()
		default:
			// Observer is not keeping up; it misses this event.
			metrics.IncEventDropped()
			h.logger.Debug().Str("subscriber", id).Str("slot", event.Key.String()).
				Msg("dropping slot event for slow observer")
		}
	}
}

// SubscriberCount returns the number of connected observers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Run consumes the shared Redis channel and relays events published by
// other instances to local observers. Blocks until ctx is done. No-op
// when Redis is not configured.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		<-ctx.Done()
		return
	}

	sub := h.redis.Subscribe(ctx, Channel)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Error().Err(err).Msg("unmarshal slot event from redis")
				continue
			}
			if env.Origin == h.instanceID {
				continue // already delivered locally at broadcast time
			}
			h.deliverLocal(env.Event)
		}
	}
}
