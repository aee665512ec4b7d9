// Package client is a typed client for the polica HTTP API. Reads go
// through per-collection caches that writes to the collection invalidate.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/erazemk/polica/internal/model"
)

// ErrSessionInvalid is returned for any 401 response. The client forgets its
// token and does not retry.
var ErrSessionInvalid = errors.New("session invalid")

// DefaultCacheTTL bounds how stale a cached read can be when no write
// through this client invalidated it.
const DefaultCacheTTL = 30 * time.Second

// Collections cached by the client.
const (
	collCabinets  = "cabinets"
	collShelves   = "shelves"
	collLocations = "locations"
	collCopybooks = "copybooks"
	collLendings  = "lendings"
	collEditions  = "editions"
	collReaders   = "readers"
	collEmployees = "employees"
	collUsers     = "users"
)

// APIError is a non-2xx response. It unwraps to the matching model error so
// callers can use errors.Is on both sides of the wire.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Unwrap maps the status back onto the error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return model.ErrValidation
	case http.StatusNotFound:
		return model.ErrNotFound
	case http.StatusConflict:
		return model.ErrConflict
	case http.StatusUnauthorized:
		return ErrSessionInvalid
	}
	return nil
}

// Client talks to one server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration

	mu    sync.RWMutex
	token string

	caches map[string]*ttlcache.Cache[string, []byte]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithCacheTTL sets the lifetime of cached reads. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		ttl:     DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.caches = make(map[string]*ttlcache.Cache[string, []byte])
	for _, name := range []string{
		collCabinets, collShelves, collLocations, collCopybooks, collLendings,
		collEditions, collReaders, collEmployees, collUsers,
	} {
		c.caches[name] = ttlcache.New(ttlcache.WithTTL[string, []byte](c.ttl))
	}
	return c
}

// Token returns the current bearer token, empty when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Invalidate drops cached reads of the named collections, or of every
// collection when none is named.
func (c *Client) Invalidate(collections ...string) {
	if len(collections) == 0 {
		for _, cache := range c.caches {
			cache.DeleteAll()
		}
		return
	}
	for _, name := range collections {
		if cache, ok := c.caches[name]; ok {
			cache.DeleteAll()
		}
	}
}

// get reads path, serving it from the collection's cache when possible.
func (c *Client) get(ctx context.Context, collection, path string, out any) error {
	cache := c.caches[collection]
	if cache != nil && c.ttl > 0 {
		if item := cache.Get(path); item != nil {
			return json.Unmarshal(item.Value(), out)
		}
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if cache != nil && c.ttl > 0 {
		cache.Set(path, body, ttlcache.DefaultTTL)
	}
	return json.Unmarshal(body, out)
}

// fetch reads path, bypassing the cache.
func (c *Client) fetch(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// send performs a write and invalidates the collections it touches, even
// when the write failed, since a failed batch may still have written.
func (c *Client) send(ctx context.Context, method, path string, in, out any, touches ...string) error {
	defer c.Invalidate(touches...)

	body, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.setToken("")
		c.Invalidate()
		return nil, ErrSessionInvalid
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return nil, apiErr
	}
	return body, nil
}
