package auth

import (
	"context"
	"fmt"
)

// BearerConfig contains configuration for bearer-token authentication.
type BearerConfig struct {
	// Token is the static bearer token for API authentication.
	Token string
}

// BearerSigner implements the bearer-token scheme: a static
// Authorization: Bearer <token> header added to every request. The token is
// typically long-lived and rotated outside the process.
//
// Thread-safe: this implementation is safe for concurrent use.
type BearerSigner struct {
	config BearerConfig
}

// NewBearerSigner creates a new bearer-token signer.
func NewBearerSigner(config BearerConfig) (*BearerSigner, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	return &BearerSigner{config: config}, nil
}

// Sign returns the static Authorization header. No per-request computation is
// needed for this scheme.
func (s *BearerSigner) Sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	return &SignResult{
		Headers: map[string]string{
			"Authorization": "Bearer " + s.config.Token,
		},
	}, nil
}

var _ Signer = (*BearerSigner)(nil)
