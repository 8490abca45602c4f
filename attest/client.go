package attest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tos-network/incofund/core/handle"
	"golang.org/x/time/rate"
)

const maxResponseSize = 1 << 20

// Config is the decryption client configuration.
type Config struct {
	Endpoint       string
	RequestTimeout time.Duration
	RateLimit      float64 // requests per second, 0 disables limiting
	RateBurst      int
	CacheSize      int // decrypted plaintexts kept in memory, 0 disables caching
}

var DefaultConfig = Config{
	Endpoint:       "http://127.0.0.1:8950",
	RequestTimeout: 10 * time.Second,
	RateLimit:      5,
	RateBurst:      5,
	CacheSize:      1024,
}

// Client requests attested decryptions. A single call never retries; see
// WaitDecrypt for the bounded retry on indexing lag.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   *lru.ARCCache // cacheKey -> plaintext
}

// NewClient creates a decryption client. A nil httpClient selects one with
// the configured request timeout.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("attest: missing endpoint")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	c := &Client{cfg: cfg, http: httpClient}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.NewARC(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}
	return c, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

func cacheKey(h handle.Handle, signer Signer) string {
	return h.String() + "/" + signer.PublicKey().String()
}

// Decrypt requests the plaintext behind h on behalf of signer.
func (c *Client) Decrypt(ctx context.Context, h handle.Handle, signer Signer) Result {
	return c.DecryptMany(ctx, []handle.Handle{h}, signer)[0]
}

// DecryptMany requests several handles in one attested request. Results are
// returned in input order. The oracle fails a batch as a whole, so one
// unreadable handle fails every uncached handle of the call.
func (c *Client) DecryptMany(ctx context.Context, handles []handle.Handle, signer Signer) []Result {
	results := make([]Result, len(handles))
	var pending []int
	for i, h := range handles {
		if c.cache != nil {
			if v, ok := c.cache.Get(cacheKey(h, signer)); ok {
				cacheHitMeter.Mark(1)
				results[i] = Result{Handle: h, Outcome: OutcomeOK, Plaintext: v.(string)}
				continue
			}
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results
	}
	ask := make([]handle.Handle, len(pending))
	for j, i := range pending {
		ask[j] = handles[i]
	}
	plaintexts, err := c.request(ctx, ask, signer)
	for j, i := range pending {
		h := handles[i]
		var res Result
		switch {
		case err == nil:
			res = Result{Handle: h, Outcome: OutcomeOK, Plaintext: plaintexts[j]}
			if c.cache != nil {
				c.cache.Add(cacheKey(h, signer), plaintexts[j])
			}
		case errors.As(err, new(*oracleError)):
			res = failure(h, err.Error())
		default:
			res = unclassified(h, err)
		}
		results[i] = res
	}
	markOutcomes(results)
	return results
}

// oracleError is a failure reported by the oracle itself, as opposed to a
// transport or encoding problem.
type oracleError struct {
	msg string
}

func (e *oracleError) Error() string { return e.msg }

func (c *Client) request(ctx context.Context, handles []handle.Handle, signer Signer) ([]string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := NewDecryptRequest(uuid.NewString(), handles, signer)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	requestMeter.Mark(1)
	var resp DecryptResponse
	if err := c.post(ctx, "/decrypt", req, &resp); err != nil {
		return nil, err
	}
	requestTimer.UpdateSince(start)
	if resp.Error != "" {
		return nil, &oracleError{msg: resp.Error}
	}
	if len(resp.Plaintexts) != len(handles) {
		return nil, fmt.Errorf("attest: oracle returned %d plaintexts for %d handles", len(resp.Plaintexts), len(handles))
	}
	log.Debug("Decrypted handles", "party", signer.PublicKey(), "count", len(handles), "elapsed", time.Since(start))
	return resp.Plaintexts, nil
}

// post sends a JSON request and decodes the JSON response. Non-2xx replies
// carrying an error body are reported as oracle errors.
func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	url := strings.TrimRight(c.cfg.Endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return &oracleError{msg: e.Error}
		}
		return fmt.Errorf("attest: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("attest: decode response: %w", err)
	}
	return nil
}

func markOutcomes(results []Result) {
	for _, r := range results {
		switch r.Outcome {
		case OutcomeUnauthorized:
			unauthorizedMeter.Mark(1)
		case OutcomeNotFound:
			notFoundMeter.Mark(1)
		case OutcomeUnclassified:
			unclassifiedMeter.Mark(1)
		}
	}
}
