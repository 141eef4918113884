package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"retail-demand-engine/cache"
	"retail-demand-engine/database"
	"retail-demand-engine/helpers"
)

// WebhookManager handles webhook notifications
type WebhookManager struct {
	repo   *database.DemandRepository
	redis  *cache.RedisClient
	client *http.Client
}

// WebhookPayload represents the JSON payload sent to webhooks
type WebhookPayload struct {
	AlertID        int64                  `json:"AlertID"`
	AlertType      string                 `json:"AlertType"`
	DetectedAt     time.Time              `json:"DetectedAt"`
	ProductID      int64                  `json:"ProductID"`
	LocationID     *int64                 `json:"LocationID,omitempty"`
	ObservedValue  float64                `json:"ObservedValue"`
	ExpectedValue  float64                `json:"ExpectedValue"`
	DeviationRatio float64                `json:"DeviationRatio"`
	Message        string                 `json:"Message"`
	Metadata       map[string]interface{} `json:"Metadata,omitempty"`
}

// NewWebhookManager creates a new webhook manager
func NewWebhookManager(repo *database.DemandRepository, redis *cache.RedisClient) *WebhookManager {
	return &WebhookManager{
		repo:  repo,
		redis: redis,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendAlert processes and sends the alert to matching webhooks
func (wm *WebhookManager) SendAlert(alert *database.DemandAlert) {
	// 1. Get all active webhooks
	webhooks, err := wm.getActiveWebhooks()
	if err != nil {
		log.Printf("⚠️  Failed to load webhooks: %v", err)
		return
	}

	if len(webhooks) == 0 {
		return
	}

	// 2. Prepare payload
	payload := wm.CreatePayload(alert)
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️  Failed to marshal webhook payload: %v", err)
		return
	}

	// 3. Process each webhook (async)
	for _, hook := range webhooks {
		if wm.shouldSend(hook, alert) {
			go wm.deliverWebhook(hook, alert.ID, payloadBytes)
		}
	}
}

func (wm *WebhookManager) getActiveWebhooks() ([]database.DemandWebhook, error) {
	// Try cache first
	cacheKey := "active_webhooks"
	if wm.redis != nil {
		var cached []database.DemandWebhook
		if err := wm.redis.Get(context.Background(), cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	// Fetch from DB
	webhooks, err := wm.repo.GetActiveWebhooks()
	if err != nil {
		return nil, err
	}

	// Update cache (expire 1 hour)
	if wm.redis != nil {
		_ = wm.redis.Set(context.Background(), cacheKey, webhooks, 1*time.Hour)
	}

	return webhooks, err
}

// FormatAlertMessage builds the human readable alert line shown on
// dashboards and in webhook payloads
func FormatAlertMessage(alert *database.DemandAlert) string {
	location := ""
	if alert.LocationID != nil {
		location = fmt.Sprintf(" @ Store #%d", *alert.LocationID)
	}

	switch alert.AlertType {
	case database.AlertTypeDemandSpike:
		return fmt.Sprintf("📈 DEMAND SPIKE! Product #%d%s | Hari ini: %s unit vs rata-rata %s (%.1fx)",
			alert.ProductID, location, helpers.FormatThousands(alert.ObservedValue), helpers.FormatThousands(alert.ExpectedValue), alert.DeviationRatio)
	case database.AlertTypeDemandDrop:
		return fmt.Sprintf("📉 DEMAND DROP! Product #%d%s | Kemarin: %s unit vs rata-rata %s (%.2fx)",
			alert.ProductID, location, helpers.FormatThousands(alert.ObservedValue), helpers.FormatThousands(alert.ExpectedValue), alert.DeviationRatio)
	case database.AlertTypeLowAccuracy:
		return fmt.Sprintf("🎯 LOW ACCURACY! Product #%d | Akurasi prakiraan %.0f%% di bawah ambang %.0f%%",
			alert.ProductID, alert.ObservedValue*100, alert.ExpectedValue*100)
	default:
		return fmt.Sprintf("⚠️ DEMAND ALERT! Product #%d%s | %s (%.2fx)",
			alert.ProductID, location, alert.AlertType, alert.DeviationRatio)
	}
}

// CreatePayload generates the webhook payload from an alert
func (wm *WebhookManager) CreatePayload(alert *database.DemandAlert) WebhookPayload {
	message := alert.Message
	if message == "" {
		message = FormatAlertMessage(alert)
	}

	return WebhookPayload{
		AlertID:        alert.ID,
		AlertType:      alert.AlertType,
		DetectedAt:     alert.DetectedAt,
		ProductID:      alert.ProductID,
		LocationID:     alert.LocationID,
		ObservedValue:  alert.ObservedValue,
		ExpectedValue:  alert.ExpectedValue,
		DeviationRatio: alert.DeviationRatio,
		Message:        message,
		Metadata: map[string]interface{}{
			"observed": alert.ObservedValue,
			"expected": alert.ExpectedValue,
		},
	}
}

func (wm *WebhookManager) shouldSend(hook database.DemandWebhook, alert *database.DemandAlert) bool {
	// Check Alert Type filter
	if hook.AlertTypes != "" && hook.AlertTypes != "null" {
		// Lenient check: matches if the type is present in the string (JSON or CSV)
		if !strings.Contains(hook.AlertTypes, alert.AlertType) {
			return false
		}
	}

	// Check Product filter. Parse as a JSON array so id 12 does not match 123
	if hook.ProductIDs != "" && hook.ProductIDs != "null" {
		var ids []int64
		if err := json.Unmarshal([]byte(hook.ProductIDs), &ids); err == nil {
			found := false
			for _, id := range ids {
				if id == alert.ProductID {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		} else if !strings.Contains(hook.ProductIDs, fmt.Sprintf("%d", alert.ProductID)) {
			return false
		}
	}

	// Check threshold
	if hook.MinDeviation != nil && alert.DeviationRatio < *hook.MinDeviation {
		return false
	}

	return true
}

func (wm *WebhookManager) deliverWebhook(hook database.DemandWebhook, alertID int64, payload []byte) {
	// Basic implementation without fancy retry logic for MVP phase 1
	maxRetries := hook.RetryCount
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var resp *http.Response
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, _ := http.NewRequest(hook.Method, hook.URL, bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Retail-Demand-Alert/1.0")

		log.Printf("🔹 Sending webhook to %s (Attempt %d/%d)", hook.URL, attempt, maxRetries)

		// Auth headers
		if hook.AuthType == "BEARER" {
			req.Header.Set("Authorization", "Bearer "+hook.AuthValue)
		} else if hook.AuthHeader != "" {
			req.Header.Set(hook.AuthHeader, hook.AuthValue)
		}

		resp, err = wm.client.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			// Success
			wm.logDelivery(hook.ID, alertID, "SUCCESS", resp.StatusCode, "", attempt)
			if resp.Body != nil {
				resp.Body.Close()
			}
			return
		}

		// Wait before retry
		if attempt < maxRetries {
			time.Sleep(time.Duration(hook.RetryDelaySeconds) * time.Second)
		}
	}

	// Failed
	status := "FAILED"
	errMsg := ""
	statusCode := 0
	if err != nil {
		errMsg = err.Error()
	} else if resp != nil {
		statusCode = resp.StatusCode
		resp.Body.Close()
	}

	wm.logDelivery(hook.ID, alertID, status, statusCode, errMsg, maxRetries)
}

func (wm *WebhookManager) logDelivery(webhookID int, alertID int64, status string, code int, err string, attempt int) {
	logEntry := &database.DemandWebhookLog{
		WebhookID:     webhookID,
		DemandAlertID: &alertID,
		TriggeredAt:   time.Now(),
		Status:        status,
		RetryAttempt:  attempt,
	}

	if code != 0 {
		logEntry.HTTPStatusCode = &code
	}
	if err != "" {
		logEntry.ErrorMessage = err
	}

	if dbErr := wm.repo.SaveWebhookLog(logEntry); dbErr != nil {
		log.Printf("⚠️  Failed to save webhook log: %v", dbErr)
	}
}

// RefreshCache reloads webhook configurations
func (wm *WebhookManager) RefreshCache() {
	if wm.redis != nil {
		_ = wm.redis.Delete(context.Background(), "active_webhooks")
		log.Println("🔄 Webhook cache invalidated")
	}
}
