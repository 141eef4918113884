package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// Event names pushed to dashboard clients
const (
	EventSale            = "sale"
	EventDemandAlert     = "demand_alert"
	EventForecastRefresh = "forecast_refresh"
	EventAccuracyUpdate  = "accuracy_update"
)

const (
	// Broadcast queue; sized for sale-event bursts from busy stores
	broadcastBuffer = 1000
	// Per-client queue; slow consumers drop frames rather than block the hub
	subscriberBuffer = 10
	// Comment frames keep proxies from closing idle dashboard streams
	keepaliveInterval = 25 * time.Second
)

// subscriber is one connected dashboard stream
type subscriber chan []byte

// Broker fans sale events, alerts and forecast updates out to every
// connected SSE client
type Broker struct {
	subscribers map[subscriber]bool
	register    chan subscriber
	unregister  chan subscriber
	broadcast   chan []byte
	mu          sync.RWMutex
}

// NewBroker creates a new SSE broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[subscriber]bool),
		register:    make(chan subscriber),
		unregister:  make(chan subscriber),
		broadcast:   make(chan []byte, broadcastBuffer),
	}
}

// Run starts the hub loop. Call it once, in its own goroutine.
func (b *Broker) Run() {
	for {
		select {
		case sub := <-b.register:
			b.mu.Lock()
			b.subscribers[sub] = true
			b.mu.Unlock()
			log.Printf("SSE Client connected. Total: %d", len(b.subscribers))

		case sub := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.subscribers[sub]; ok {
				delete(b.subscribers, sub)
				close(sub)
				log.Printf("SSE Client disconnected. Total: %d", len(b.subscribers))
			}
			b.mu.Unlock()

		case msg := <-b.broadcast:
			b.mu.RLock()
			for sub := range b.subscribers {
				select {
				case sub <- msg:
				default:
					// Full subscriber queue; drop the frame for this client
				}
			}
			b.mu.RUnlock()
		}
	}
}

// ClientCount returns the number of connected SSE clients
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// ServeHTTP upgrades the request to an SSE stream and relays broadcast
// frames until the client goes away
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub := make(subscriber, subscriberBuffer)
	b.register <- sub

	// Flush an initial comment so proxies open the stream immediately
	fmt.Fprint(w, ": connected\n\n")
	w.(http.Flusher).Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	notify := r.Context().Done()

	for {
		select {
		case <-notify:
			b.unregister <- sub
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": ping\n\n")
			w.(http.Flusher).Flush()
		case msg := <-sub:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			w.(http.Flusher).Flush()
		}
	}
}

// Broadcast queues an event for every connected client. Never blocks; the
// frame is dropped when the queue is full.
func (b *Broker) Broadcast(event string, payload interface{}) {
	data := map[string]interface{}{
		"event":   event,
		"payload": payload,
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshalling broadcast message: %v", err)
		return
	}

	select {
	case b.broadcast <- jsonBytes:
	default:
	}
}
