package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWKSCacheTTL = 5 * time.Minute
	// minJWKSRefreshInterval bounds how often tokens with unknown kids can
	// make the server call the identity provider.
	minJWKSRefreshInterval = time.Minute
)

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSCache holds the identity provider's RSA signing keys by kid. Keys are
// refetched when the TTL lapses or an unknown kid shows up, but never more
// than once per minInterval. A stale key keeps working while a refetch is
// throttled or fails.
type JWKSCache struct {
	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	attemptedAt time.Time

	refreshMu   sync.Mutex
	url         string
	ttl         time.Duration
	minInterval time.Duration
	client      *http.Client
	now         func() time.Time
}

func NewJWKSCache(url string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:        make(map[string]*rsa.PublicKey),
		url:         url,
		ttl:         ttl,
		minInterval: minJWKSRefreshInterval,
		client:      &http.Client{Timeout: 10 * time.Second},
		now:         time.Now,
	}
}

func (c *JWKSCache) GetKey(kid string) (*rsa.PublicKey, error) {
	if key, ok, fresh := c.lookup(kid); ok && fresh {
		return key, nil
	}

	// One refresh at a time; waiters re-check what it brought in.
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	key, ok, fresh := c.lookup(kid)
	if ok && fresh {
		return key, nil
	}
	c.mu.RLock()
	throttled := c.now().Sub(c.attemptedAt) < c.minInterval
	c.mu.RUnlock()
	if throttled {
		if ok {
			return key, nil
		}
		return nil, fmt.Errorf("key %q not found in jwks", kid)
	}

	if err := c.refresh(); err != nil {
		if ok {
			return key, nil
		}
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	if key, ok, _ = c.lookup(kid); !ok {
		return nil, fmt.Errorf("key %q not found in jwks", kid)
	}
	return key, nil
}

func (c *JWKSCache) lookup(kid string) (key *rsa.PublicKey, ok, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	return key, ok, c.now().Sub(c.fetchedAt) <= c.ttl
}

func (c *JWKSCache) refresh() error {
	c.mu.Lock()
	c.attemptedAt = c.now()
	c.mu.Unlock()

	resp, err := c.client.Get(c.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwksKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		if pub, err := parseRSAPublicKey(k); err == nil {
			keys[k.Kid] = pub
		}
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return nil
}

func parseRSAPublicKey(k jwksKey) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

func (c *JWKSCache) keyFunc() jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return c.GetKey(kid)
	}
}
