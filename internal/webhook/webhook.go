package webhook

import "context"

type FailedSession struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

// BatchSummaryPayload is posted once per bulk send.
type BatchSummaryPayload struct {
	RangeStart string          `json:"range_start"`
	RangeEnd   string          `json:"range_end"`
	Total      int             `json:"total"`
	Sent       int             `json:"sent"`
	Failed     []FailedSession `json:"failed"`
}

type Sender interface {
	SendBatchSummary(ctx context.Context, payload BatchSummaryPayload) error
}
