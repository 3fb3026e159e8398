package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/coachcal/internal/webhook"
)

const (
	requestTimeout = 10 * time.Second

	// EventHeader names the kind of notification carried in the body.
	EventHeader       = "X-Coachcal-Event"
	batchSummaryEvent = "batch.summary"

	maxErrorBody = 512
)

type HTTPSender struct {
	webhookURL string
	client     *http.Client
}

func NewHTTPSender(webhookURL string) webhook.Sender {
	return &HTTPSender{
		webhookURL: strings.TrimSpace(webhookURL),
		client:     &http.Client{Timeout: requestTimeout},
	}
}

// SendBatchSummary posts the outcome of one send-all run. It is a no-op when
// no URL is configured.
func (s *HTTPSender) SendBatchSummary(ctx context.Context, payload webhook.BatchSummaryPayload) error {
	if s.webhookURL == "" {
		return nil
	}
	body, err := encodeBatchSummary(payload)
	if err != nil {
		return fmt.Errorf("failed to encode batch summary: %w", err)
	}
	return s.post(ctx, batchSummaryEvent, body)
}

// encodeBatchSummary always renders failed as an array so receivers can
// iterate it without a null check.
func encodeBatchSummary(payload webhook.BatchSummaryPayload) ([]byte, error) {
	if payload.Failed == nil {
		payload.Failed = []webhook.FailedSession{}
	}
	return json.Marshal(payload)
}

func (s *HTTPSender) post(ctx context.Context, event string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, event)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver %s webhook: %w", event, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if msg := strings.TrimSpace(string(snippet)); msg != "" {
			return fmt.Errorf("%s webhook returned status %d: %s", event, resp.StatusCode, msg)
		}
		return fmt.Errorf("%s webhook returned status %d", event, resp.StatusCode)
	}
	return nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
