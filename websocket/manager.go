package websocket

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// feedClientID identifies this consumer to the POS feed.
const feedClientID = "retail-demand-engine"

// ConnectionManager handles WebSocket connection lifecycle, health monitoring, and reconnection.
type ConnectionManager struct {
	client      *Client
	wsURL       string
	apiKey      string
	storeGroup  string
	lastMsgTime time.Time
}

// NewConnectionManager creates a new ConnectionManager. storeGroup is a
// comma-separated location filter, "*" or empty for every store.
func NewConnectionManager(wsURL, apiKey, storeGroup string) *ConnectionManager {
	return &ConnectionManager{
		wsURL:       wsURL,
		apiKey:      apiKey,
		storeGroup:  storeGroup,
		lastMsgTime: time.Now(),
	}
}

// subscriptionLocations resolves the configured store group to a location
// list, nil meaning the wildcard subscription.
func (cm *ConnectionManager) subscriptionLocations() []string {
	if cm.storeGroup == "" || cm.storeGroup == "*" {
		return nil
	}
	return strings.Split(cm.storeGroup, ",")
}

// Connect establishes the initial WebSocket connection and subscribes.
func (cm *ConnectionManager) Connect() error {
	fmt.Println("🔌 Connecting to POS sales feed...")
	cm.client = NewClient(cm.wsURL, cm.apiKey)

	if err := cm.client.Connect(); err != nil {
		return fmt.Errorf("POS feed connection failed: %w", err)
	}
	fmt.Println("✅ POS sales feed connected!")

	if err := cm.client.SubscribeToLocations(cm.subscriptionLocations(), feedClientID); err != nil {
		log.Printf("Warning: Subscription failed: %v", err)
		return err
	}

	return nil
}

// StartPing starts the keep-alive pinger.
func (cm *ConnectionManager) StartPing(interval time.Duration) {
	if cm.client != nil {
		cm.client.StartPing(interval)
	}
}

// ReadFrame reads a frame from the WebSocket.
func (cm *ConnectionManager) ReadFrame() (*Frame, error) {
	if cm.client == nil {
		return nil, fmt.Errorf("client not connected")
	}
	frame, err := cm.client.ReadFrame()
	if err == nil {
		cm.lastMsgTime = time.Now()
	}
	return frame, err
}

// Close closes the connection.
func (cm *ConnectionManager) Close() error {
	if cm.client != nil {
		return cm.client.Close()
	}
	return nil
}

// Reconnect attempts to reconnect the WebSocket.
func (cm *ConnectionManager) Reconnect() error {
	// Close existing connection
	_ = cm.Close()

	// Re-establish connection
	cm.client = NewClient(cm.wsURL, cm.apiKey)

	if err := cm.client.Connect(); err != nil {
		return fmt.Errorf("websocket connection failed: %w", err)
	}

	if err := cm.client.SubscribeToLocations(cm.subscriptionLocations(), feedClientID); err != nil {
		return err
	}

	cm.StartPing(25 * time.Second)
	log.Println("✅ Reconnection successful")
	return nil
}

// RunHealthMonitor starts a background loop to check connection health.
func (cm *ConnectionManager) RunHealthMonitor(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second) // Check every 60 seconds
	defer ticker.Stop()

	log.Println("💓 WebSocket health monitoring started")

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 WebSocket health monitoring stopped")
			return
		case <-ticker.C:
			timeSinceLastMessage := time.Since(cm.lastMsgTime)

			// Stores close overnight, so a quiet feed is only suspicious
			// past the staleness window
			if timeSinceLastMessage > 5*time.Minute {
				log.Printf("⚠️  No WebSocket message received for %v, reconnecting...", timeSinceLastMessage.Round(time.Second))

				if err := cm.Reconnect(); err != nil {
					log.Printf("❌ WebSocket reconnection failed: %v", err)
				} else {
					log.Println("✅ WebSocket reconnected successfully")
					cm.lastMsgTime = time.Now()
				}
			} else {
				log.Printf("💓 WebSocket healthy, last message %v ago", timeSinceLastMessage.Round(time.Second))
			}
		}
	}
}
