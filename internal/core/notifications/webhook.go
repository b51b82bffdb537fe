package notifications

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"coinpay/internal/core/security"
)

// SendWebhook delivers a pre-marshalled JSON payload to the subscriber's URL,
// signed so the receiver can check it came from us.
func SendWebhook(url string, payload []byte, secret string) error {
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Coinpay-Webhook/1.0")
	// Same HMAC scheme as the inbound gateway leg, secret and direction swapped
	req.Header.Set("X-Coinpay-Signature", security.Sign(string(payload), []byte(secret)))

	// Send with Timeout (Don't let slow subscribers block the worker!)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil // Success
	}

	return fmt.Errorf("subscriber server returned error: %d", resp.StatusCode)
}
