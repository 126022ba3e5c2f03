package venuea

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arbiq/enginecore/internal/venueerrors"
)

type errorResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	ErrorDetails   string `json:"error_details"`
	NewOrderFailed string `json:"new_order_failure_reason"`
}

// NormalizeError converts a venue error response to a classified error from
// internal/venueerrors.
func (n *Normalizer) NormalizeError(ctx context.Context, statusCode int, raw []byte) error {
	if len(raw) == 0 {
		return venueerrors.ClassifyHTTPStatus(statusCode, fmt.Sprintf("status %d (no body)", statusCode))
	}

	var body errorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return venueerrors.ClassifyHTTPStatus(statusCode, string(raw))
	}

	msg := body.Error
	if body.Message != "" {
		msg = msg + ": " + body.Message
	}
	if body.ErrorDetails != "" {
		msg = msg + " [" + body.ErrorDetails + "]"
	}
	if body.NewOrderFailed != "" {
		msg = msg + " [order: " + body.NewOrderFailed + "]"
	}

	return venueerrors.ClassifyHTTPStatus(statusCode, msg)
}
