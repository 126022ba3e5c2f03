package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"sort"
	"time"

	"crypto/x509"

	"github.com/golang-jwt/jwt/v5"
)

// RSAPSSConfig contains configuration for the RSA-PSS-SHA256 scheme: the
// adapter builds a canonical JSON body with sorted keys and an expire_at
// timestamp, signs the canonical bytes with RSA-PSS/SHA-256, then injects the
// signature into both the body and a header.
type RSAPSSConfig struct {
	// KeyID identifies which key signed the request; venues that check it
	// expect it back in a header.
	KeyID string

	// PrivateKey is a PEM-encoded PKCS#1 or PKCS#8 RSA private key.
	PrivateKey string

	// ExpiresIn is how far in the future expire_at is set (default 60s).
	ExpiresIn time.Duration

	// SignatureHeader names the header the signature is mirrored into
	// (default X-Signature).
	SignatureHeader string

	// SignatureBodyKey names the JSON key the signature is injected under
	// (default "signature").
	SignatureBodyKey string
}

func (c RSAPSSConfig) signatureHeader() string {
	if c.SignatureHeader != "" {
		return c.SignatureHeader
	}
	return "X-Signature"
}

func (c RSAPSSConfig) signatureBodyKey() string {
	if c.SignatureBodyKey != "" {
		return c.SignatureBodyKey
	}
	return "signature"
}

// RSAPSSSigner implements the RSA-PSS-SHA256 scheme described in SPEC_FULL §4.2.1.
// It reuses github.com/golang-jwt/jwt/v5's PS256 signing method directly against
// the canonical payload bytes rather than wrapping the result in a JWT envelope,
// since the wire format here is a signed body, not a bearer token.
//
// Thread-safe: this implementation is safe for concurrent use.
type RSAPSSSigner struct {
	config     RSAPSSConfig
	privateKey interface{}
}

// NewRSAPSSSigner creates a new RSA-PSS-SHA256 signer from a PEM-encoded key.
func NewRSAPSSSigner(config RSAPSSConfig) (*RSAPSSSigner, error) {
	if config.KeyID == "" {
		return nil, fmt.Errorf("key id is required")
	}
	if config.PrivateKey == "" {
		return nil, fmt.Errorf("private key is required")
	}
	if config.ExpiresIn <= 0 {
		config.ExpiresIn = 60 * time.Second
	}

	privateKey, err := parseRSAPrivateKey(config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &RSAPSSSigner{config: config, privateKey: privateKey}, nil
}

// Sign builds the canonical sorted-key JSON body (the original body fields
// plus expire_at), signs it with RSA-PSS/SHA-256 via jwt.SigningMethodPS256,
// and returns the augmented body along with a mirrored signature header.
func (s *RSAPSSSigner) Sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	fields := map[string]interface{}{}
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &fields); err != nil {
			return nil, fmt.Errorf("request body must be a JSON object: %w", err)
		}
	}

	fields["expire_at"] = time.Now().UTC().Add(s.config.ExpiresIn).Format(time.RFC3339)

	canonical, err := canonicalJSON(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build canonical payload: %w", err)
	}

	sig, err := jwt.SigningMethodPS256.Sign(string(canonical), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}
	// SigningMethodPS256.Sign returns the raw signature bytes; encode them as
	// standard base64 since venues signed this way expect standard encoding
	// embedded in a JSON string value.
	signature := base64.StdEncoding.EncodeToString(sig)

	fields[s.config.signatureBodyKey()] = signature
	signedBody, err := canonicalJSON(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build signed body: %w", err)
	}

	return &SignResult{
		Headers: map[string]string{
			s.config.signatureHeader(): signature,
			"X-Key-Id":                 s.config.KeyID,
		},
		Body: signedBody,
	}, nil
}

// canonicalJSON marshals a flat map with lexicographically sorted keys so the
// signed byte sequence is deterministic regardless of Go map iteration order.
func canonicalJSON(fields map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(fields[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func parseRSAPrivateKey(pemKey string) (interface{}, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}
	return key, nil
}

var _ Signer = (*RSAPSSSigner)(nil)
