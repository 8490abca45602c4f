package attest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
)

// EncryptClient talks to the encryption service.
type EncryptClient struct {
	c *Client
}

// NewEncryptClient creates an encryption client. Encryption requests are not
// rate limited or cached.
func NewEncryptClient(cfg Config, httpClient *http.Client) (*EncryptClient, error) {
	cfg.RateLimit, cfg.CacheSize = 0, 0
	c, err := NewClient(cfg, httpClient)
	if err != nil {
		return nil, err
	}
	return &EncryptClient{c: c}, nil
}

// Encrypt returns the ciphertext of amount.
func (e *EncryptClient) Encrypt(ctx context.Context, amount uint64) ([]byte, error) {
	var resp EncryptResponse
	if err := e.c.post(ctx, "/encrypt", &EncryptRequest{Plaintext: strconv.FormatUint(amount, 10)}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New("attest: encrypt: " + resp.Error)
	}
	if len(resp.Ciphertext) == 0 {
		return nil, errors.New("attest: encrypt: empty ciphertext")
	}
	return resp.Ciphertext, nil
}
