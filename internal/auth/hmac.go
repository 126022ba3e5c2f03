package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// HMACConfig contains configuration for HMAC-SHA256 (and, when Passphrase is set,
// passphrase-HMAC) authentication.
type HMACConfig struct {
	// APIKey identifies the credential set.
	APIKey string

	// Secret is the base64-encoded secret key for HMAC signing.
	Secret string

	// Passphrase, when non-empty, is sent as an additional header, turning
	// this signer into the passphrase-HMAC scheme.
	Passphrase string

	// KeyHeader, SignatureHeader, TimestampHeader, PassphraseHeader name the
	// headers the venue expects. They default to X-API-KEY / X-SIGNATURE /
	// X-TIMESTAMP / X-PASSPHRASE when left empty.
	KeyHeader        string
	SignatureHeader  string
	TimestampHeader  string
	PassphraseHeader string
}

func (c HMACConfig) keyHeader() string {
	if c.KeyHeader != "" {
		return c.KeyHeader
	}
	return "X-API-KEY"
}

func (c HMACConfig) signatureHeader() string {
	if c.SignatureHeader != "" {
		return c.SignatureHeader
	}
	return "X-SIGNATURE"
}

func (c HMACConfig) timestampHeader() string {
	if c.TimestampHeader != "" {
		return c.TimestampHeader
	}
	return "X-TIMESTAMP"
}

func (c HMACConfig) passphraseHeader() string {
	if c.PassphraseHeader != "" {
		return c.PassphraseHeader
	}
	return "X-PASSPHRASE"
}

// HMACSigner implements HMAC-SHA256 and passphrase-HMAC authentication:
//
//	signature = base64(HMAC-SHA256(base64_decode(secret), timestamp + method + path + body))
//
// Thread-safe: this implementation is safe for concurrent use.
type HMACSigner struct {
	config HMACConfig
}

// NewHMACSigner creates a new HMAC signer. The secret must be base64-encoded.
// Passphrase is optional; when set, Sign also emits the passphrase header,
// implementing the passphrase-HMAC scheme rather than plain HMAC-SHA256.
func NewHMACSigner(config HMACConfig) (*HMACSigner, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Secret == "" {
		return nil, fmt.Errorf("secret is required")
	}

	if _, err := base64.StdEncoding.DecodeString(config.Secret); err != nil {
		return nil, fmt.Errorf("secret must be valid base64: %w", err)
	}

	return &HMACSigner{config: config}, nil
}

// Sign generates HMAC authentication headers for a request. The prehash is
// timestamp + method + path + body; for GET requests with no body the body
// portion is empty.
func (s *HMACSigner) Sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	timestamp := req.Timestamp
	if timestamp == "" {
		timestamp = strconv.FormatInt(time.Now().Unix(), 10)
	}

	prehash := timestamp + req.Method + req.Path + string(req.Body)

	decodedSecret, err := base64.StdEncoding.DecodeString(s.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode secret: %w", err)
	}

	h := hmac.New(sha256.New, decodedSecret)
	h.Write([]byte(prehash))
	signatureB64 := base64.StdEncoding.EncodeToString(h.Sum(nil))

	headers := map[string]string{
		s.config.keyHeader():       s.config.APIKey,
		s.config.signatureHeader(): signatureB64,
		s.config.timestampHeader(): timestamp,
	}
	if s.config.Passphrase != "" {
		headers[s.config.passphraseHeader()] = s.config.Passphrase
	}

	return &SignResult{Headers: headers}, nil
}

var _ Signer = (*HMACSigner)(nil)
