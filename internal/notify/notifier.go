package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tsogoo/chimege-transcribe/internal/jobstore"
)

const (
	maxAttempts    = 3
	requestTimeout = 15 * time.Second
)

// Notifier delivers status/result payloads to caller-supplied callback
// endpoints. Delivery is best effort: exhausted retries are logged and never
// surfaced to the pipeline, whose own state transitions must not depend on
// whether the caller is reachable.
type Notifier struct {
	client *http.Client
	sleep  func(time.Duration)

	// OnOutcome, when set, observes "delivered" or "exhausted" per payload.
	OnOutcome func(outcome string)
}

func NewNotifier() *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: requestTimeout},
		sleep:  time.Sleep,
	}
}

func (n *Notifier) recordOutcome(outcome string) {
	if n.OnOutcome != nil {
		n.OnOutcome(outcome)
	}
}

// Notify POSTs {"job_id", "status", ...extra} as JSON to callbackURL, retrying
// with exponential backoff (1s, 2s) on transport errors and non-2xx responses.
func (n *Notifier) Notify(ctx context.Context, jobID string, status jobstore.Status, callbackURL string, extra map[string]any) {
	payload := map[string]any{
		"job_id": jobID,
		"status": string(status),
	}
	for k, v := range extra {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logrus.WithField("job_id", jobID).Errorf("callback payload marshal failed: %v", err)
		return
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := n.post(ctx, callbackURL, body)
		if err == nil {
			n.recordOutcome("delivered")
			return
		}
		logrus.WithField("job_id", jobID).Warnf(
			"callback attempt %d/%d failed (status=%s): %v", attempt+1, maxAttempts, status, err)
		if attempt < maxAttempts-1 {
			n.sleep(time.Duration(1<<attempt) * time.Second)
		}
	}
	n.recordOutcome("exhausted")
	logrus.WithField("job_id", jobID).Errorf("all callback retries exhausted (status=%s)", status)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
