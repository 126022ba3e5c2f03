package venueb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arbiq/enginecore/internal/venueerrors"
)

// errorResponse mirrors an institutional venue's structured error body, which
// carries a stable machine-readable code rather than the substring-matched
// free text venuea's venue returns.
type errorResponse struct {
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details"`
}

// clientErrorCodes lists codes the venue documents as always caused by the
// caller, independent of the HTTP status it happened to attach to the
// response. A code in this set is classified as permanent even on a 5xx,
// since retrying a malformed order will never succeed.
var clientErrorCodes = map[string]bool{
	"INVALID_ARGUMENT":     true,
	"INVALID_PRODUCT":      true,
	"INVALID_ORDER":        true,
	"INVALID_ORDER_ID":     true,
	"INVALID_PORTFOLIO":    true,
	"INVALID_PORTFOLIO_ID": true,
	"INSUFFICIENT_FUNDS":   true,
	"ORDER_NOT_FOUND":      true,
	"VALIDATION_ERROR":     true,
}

// NormalizeError converts a venue error response to a classified error. Codes
// in clientErrorCodes are always treated as a permanent client error; every
// other code falls back to HTTP status classification.
func (n *Normalizer) NormalizeError(ctx context.Context, statusCode int, raw []byte) error {
	if len(raw) == 0 {
		return venueerrors.ClassifyHTTPStatus(statusCode, fmt.Sprintf("status %d (no body)", statusCode))
	}

	var body errorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return venueerrors.ClassifyHTTPStatus(statusCode, string(raw))
	}

	msg := body.Message
	if body.Code != "" {
		msg = fmt.Sprintf("[%s] %s", body.Code, msg)
	}

	if clientErrorCodes[body.Code] {
		return venueerrors.InvalidInput(body.Code, fmt.Errorf("%s", msg))
	}

	return venueerrors.ClassifyHTTPStatus(statusCode, msg)
}
