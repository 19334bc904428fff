package recommend

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"deal-margin/decision/deal"
)

// defaultNarrativeTTL governs how long a generated narrative is served from
// cache. Entries expire by TTL only; there is no early invalidation.
const defaultNarrativeTTL = 15 * time.Minute

// narrativeBackoff is the linear backoff before the single retry.
const narrativeBackoff = 500 * time.Millisecond

// narrativeClient generates a short prose explanation for a recommendation
// from an external service. One retry on rate-limit and server errors, and a
// response cache keyed by a content fingerprint.
type narrativeClient struct {
	url    string
	apiKey string
	client *http.Client
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cachedNarrative

	sleep func(time.Duration)
	now   func() time.Time
}

type cachedNarrative struct {
	text      string
	expiresAt time.Time
}

func newNarrativeClient(url, apiKey string, ttl time.Duration) *narrativeClient {
	if ttl <= 0 {
		ttl = defaultNarrativeTTL
	}
	return &narrativeClient{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
		ttl:    ttl,
		cache:  make(map[string]cachedNarrative),
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// narrativeRequest is the wire shape sent to the narrative service.
type narrativeRequest struct {
	Deal           deal.DealContext `json:"deal"`
	Recommendation *Recommendation  `json:"recommendation"`
}

// Generate returns the narrative for a deal and its recommendation, serving
// repeats from cache until the TTL lapses.
func (c *narrativeClient) Generate(ctx context.Context, d deal.DealContext, rec *Recommendation) (string, error) {
	body, err := json.Marshal(narrativeRequest{Deal: d, Recommendation: rec})
	if err != nil {
		return "", fmt.Errorf("narrative: encode request: %w", err)
	}
	key := fingerprint(body)

	c.mu.RLock()
	if cached, ok := c.cache[key]; ok && c.now().Before(cached.expiresAt) {
		c.mu.RUnlock()
		return cached.text, nil
	}
	c.mu.RUnlock()

	text, err := c.fetch(ctx, body)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[key] = cachedNarrative{text: text, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return text, nil
}

// fetch posts once, retrying a single time with linear backoff when the
// service is throttling or failing.
func (c *narrativeClient) fetch(ctx context.Context, body []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			c.sleep(narrativeBackoff)
		}
		text, retryable, err := c.post(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (c *narrativeClient) post(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return "", true, fmt.Errorf("narrative: service returned status %d", resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return "", false, fmt.Errorf("narrative: service returned status %d", resp.StatusCode)
	}

	var out struct {
		Narrative string `json:"narrative"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("narrative: decode response: %w", err)
	}
	return out.Narrative, false, nil
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
