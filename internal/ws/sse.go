package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/litefi/litevault-backend/internal/store"
)

// SSEHandler streams vault updates over server-sent events for clients
// that cannot hold a websocket.
type SSEHandler struct {
	cache  *store.Cache
	logger *zap.SugaredLogger
}

func NewSSEHandler(cache *store.Cache, logger *zap.SugaredLogger) *SSEHandler {
	return &SSEHandler{
		cache:  cache,
		logger: logger,
	}
}

func (h *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Set configurable CORS origins - in production, this should be from config
	origin := r.Header.Get("Origin")
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite dev server
		"https://app.litefi.dev",
	}

	corsOrigin := ""
	for _, allowed := range allowedOrigins {
		if origin == allowed {
			corsOrigin = allowed
			break
		}
	}

	if corsOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", corsOrigin)
	}
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	// Parse query parameters for subscription topics
	topics := h.parseTopics(r)
	address := r.URL.Query().Get("address")

	h.logger.Debugw("SSE connection established", "topics", topics, "address", address)

	// Create context that cancels when client disconnects
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	channels := h.mapTopicsToChannels(topics, address)
	if len(channels) == 0 {
		// Default to vault state updates if no specific topics requested
		channels = []string{store.KeyVaultState}
	}

	// Try Redis pubsub first
	pubsub := h.cache.Subscribe(ctx, channels...)
	if pubsub != nil {
		defer pubsub.Close()
		h.handleRedisPubSub(ctx, w, pubsub)
		return
	}

	// Fall back to the in-process hub
	if h.cache.IsInMemoryMode() {
		sub := h.cache.SubscribeLocal(ctx, channels...)
		if sub != nil {
			defer sub.Close()
			h.logger.Debugw("Using in-memory PubSub for SSE", "channels", channels)
			h.handleLocalPubSub(ctx, w, sub)
			return
		}
	}

	h.logger.Warnw("No PubSub available; SSE updates disabled for this connection")
	h.sendEvent(w, "connected", "SSE connection established (no pubsub)", nil)
}

func (h *SSEHandler) parseTopics(r *http.Request) []string {
	topicsParam := r.URL.Query().Get("topics")
	if topicsParam == "" {
		return nil
	}
	return strings.Split(topicsParam, ",")
}

func (h *SSEHandler) mapTopicsToChannels(topics []string, address string) []string {
	channels := make([]string, 0)

	for _, topic := range topics {
		switch topic {
		case "vault", "vault_state":
			channels = append(channels, store.KeyVaultState)
		case "queue", "queue_state":
			channels = append(channels, store.KeyQueueState)
		case "price":
			channels = append(channels, store.KeyPrice)
		case "events":
			channels = append(channels, store.ChannelEvents)
		}
	}

	// Add per-position channel if address provided
	if address != "" {
		channels = append(channels, fmt.Sprintf("%s:%s", store.KeyPosition, address))
	}

	return channels
}

func (h *SSEHandler) channelToEventType(channel string) string {
	switch {
	case channel == store.KeyVaultState:
		return "vault_update"
	case channel == store.KeyQueueState:
		return "queue_update"
	case channel == store.KeyPrice:
		return "price_update"
	case channel == store.ChannelEvents:
		return "vault_event"
	case strings.HasPrefix(channel, store.KeyPosition+":"):
		return "position_update"
	default:
		return "update"
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType, id string, data interface{}) {
	if data != nil {
		dataBytes, err := json.Marshal(data)
		if err != nil {
			h.logger.Errorw("Failed to marshal SSE data", "error", err)
			return
		}
		fmt.Fprintf(w, "event: %s\n", eventType)
		fmt.Fprintf(w, "id: %s\n", id)
		fmt.Fprintf(w, "data: %s\n\n", dataBytes)
	} else {
		fmt.Fprintf(w, "event: %s\n", eventType)
		fmt.Fprintf(w, "id: %s\n", id)
		fmt.Fprintf(w, "data: {}\n\n")
	}

	// Flush the data to the client
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// handleRedisPubSub streams Redis pubsub messages as SSE
func (h *SSEHandler) handleRedisPubSub(ctx context.Context, w http.ResponseWriter, pubsub *redis.PubSub) {
	h.sendEvent(w, "connected", "SSE connection established", nil)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			h.sendEvent(w, "heartbeat", "ping", map[string]interface{}{
				"timestamp": time.Now().Unix(),
			})

		case msg := <-ch:
			if msg == nil {
				continue
			}
			h.forward(w, msg.Channel, msg.Payload)
		}
	}
}

// handleLocalPubSub streams in-process pubsub messages as SSE
func (h *SSEHandler) handleLocalPubSub(ctx context.Context, w http.ResponseWriter, sub *store.Subscription) {
	h.sendEvent(w, "connected", "SSE connection established (in-memory)", nil)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			h.sendEvent(w, "heartbeat", "ping", map[string]interface{}{
				"timestamp": time.Now().Unix(),
			})

		case msg := <-ch:
			if msg == nil {
				continue
			}
			h.forward(w, msg.Channel, msg.Payload)
		}
	}
}

func (h *SSEHandler) forward(w http.ResponseWriter, channel, payload string) {
	h.logger.Debugw("Sending SSE message", "channel", channel)

	var data interface{}
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		h.logger.Warnw("Failed to parse message payload", "error", err)
		return
	}

	h.sendEvent(w, h.channelToEventType(channel), channel, data)
}
