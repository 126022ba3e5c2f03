package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"

	"github.com/arbiq/enginecore/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestRSAKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

func TestNewRSAPSSSigner_Success(t *testing.T) {
	key := generateTestRSAKey(t)
	signer, err := auth.NewRSAPSSSigner(auth.RSAPSSConfig{
		KeyID:      "key-001",
		PrivateKey: key,
	})
	require.NoError(t, err)
	require.NotNil(t, signer)
}

func TestNewRSAPSSSigner_Validation(t *testing.T) {
	key := generateTestRSAKey(t)

	tests := []struct {
		name   string
		config auth.RSAPSSConfig
	}{
		{
			name:   "missing key id",
			config: auth.RSAPSSConfig{PrivateKey: key},
		},
		{
			name:   "missing private key",
			config: auth.RSAPSSConfig{KeyID: "key-001"},
		},
		{
			name:   "malformed pem",
			config: auth.RSAPSSConfig{KeyID: "key-001", PrivateKey: "not a pem block"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := auth.NewRSAPSSSigner(tt.config)
			assert.Error(t, err)
			assert.Nil(t, signer)
		})
	}
}

func TestRSAPSSSigner_Sign_EmbedsSignatureInBodyAndHeader(t *testing.T) {
	key := generateTestRSAKey(t)
	signer, err := auth.NewRSAPSSSigner(auth.RSAPSSConfig{
		KeyID:      "key-001",
		PrivateKey: key,
	})
	require.NoError(t, err)

	req := auth.SignRequest{
		Method: "POST",
		Path:   "/v1/orders",
		Body:   []byte(`{"symbol":"BTC-USD","side":"buy"}`),
	}

	result, err := signer.Sign(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.Headers["X-Signature"])
	assert.Equal(t, "key-001", result.Headers["X-Key-Id"])
	require.NotNil(t, result.Body)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(result.Body, &decoded))
	assert.Equal(t, "BTC-USD", decoded["symbol"])
	assert.Equal(t, "buy", decoded["side"])
	assert.Contains(t, decoded, "expire_at")
	assert.Equal(t, result.Headers["X-Signature"], decoded["signature"])
}

func TestRSAPSSSigner_Sign_CanonicalBodyIsSortedKeys(t *testing.T) {
	key := generateTestRSAKey(t)
	signer, err := auth.NewRSAPSSSigner(auth.RSAPSSConfig{
		KeyID:      "key-001",
		PrivateKey: key,
	})
	require.NoError(t, err)

	req := auth.SignRequest{
		Method: "POST",
		Path:   "/v1/orders",
		Body:   []byte(`{"zeta":"last","alpha":"first"}`),
	}

	result, err := signer.Sign(context.Background(), req)
	require.NoError(t, err)

	alphaIdx := indexOf(string(result.Body), `"alpha"`)
	expireIdx := indexOf(string(result.Body), `"expire_at"`)
	zetaIdx := indexOf(string(result.Body), `"zeta"`)
	require.True(t, alphaIdx >= 0 && expireIdx >= 0 && zetaIdx >= 0)
	assert.True(t, alphaIdx < expireIdx)
	assert.True(t, expireIdx < zetaIdx)
}

func TestRSAPSSSigner_Sign_EmptyBodyStillSigns(t *testing.T) {
	key := generateTestRSAKey(t)
	signer, err := auth.NewRSAPSSSigner(auth.RSAPSSConfig{
		KeyID:      "key-001",
		PrivateKey: key,
	})
	require.NoError(t, err)

	result, err := signer.Sign(context.Background(), auth.SignRequest{Method: "GET", Path: "/v1/accounts"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Headers["X-Signature"])
}

func TestRSAPSSSigner_Sign_RejectsNonObjectBody(t *testing.T) {
	key := generateTestRSAKey(t)
	signer, err := auth.NewRSAPSSSigner(auth.RSAPSSConfig{
		KeyID:      "key-001",
		PrivateKey: key,
	})
	require.NoError(t, err)

	_, err = signer.Sign(context.Background(), auth.SignRequest{
		Method: "POST",
		Path:   "/v1/orders",
		Body:   []byte(`[1,2,3]`),
	})
	assert.Error(t, err)
}

func TestRSAPSSSigner_ImplementsSigner(t *testing.T) {
	key := generateTestRSAKey(t)
	signer, err := auth.NewRSAPSSSigner(auth.RSAPSSConfig{KeyID: "key-001", PrivateKey: key})
	require.NoError(t, err)
	var _ auth.Signer = signer
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
