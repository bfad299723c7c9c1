package wpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docdyhr/wpclient/internal/singleflight"
)

// Client is the caching front of an Executor. GET responses are cached
// per site, endpoint and parameters with a TTL chosen by endpoint class;
// successful writes invalidate the entries they make stale.
type Client struct {
	exec  *Executor
	store CacheStore
	owned bool

	siteID            string
	cacheCfg          CacheConfig
	classRules        []ClassRule
	invalidationRules []InvalidationRule

	group   *singleflight.Group
	metrics *MetricsCollector
	log     debugLog

	evictMu       sync.Mutex
	lastEvictions int64

	// generation counts writes. A fetch started under an older generation
	// must not fill the cache, and GETs never coalesce across generations.
	genMu      sync.RWMutex
	generation uint64
}

// New validates cfg and builds a client. Authentication comes from
// WithAuth, or else from cfg.Auth.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	if o.auth == nil {
		provider, err := authFromConfig(cfg.Auth)
		if err != nil {
			return nil, &ClientError{
				Type:    ErrorTypeValidation,
				Message: "invalid auth configuration",
				Cause:   err,
			}
		}
		o.auth = provider
	}

	c := &Client{
		exec:              newExecutor(cfg, o),
		siteID:            cfg.SiteID,
		cacheCfg:          cfg.Cache,
		classRules:        o.classRules,
		invalidationRules: o.invalidationRules,
		group:             singleflight.New(),
		metrics:           o.metrics,
		log:               debugLog{cfg: o.debug, logger: o.logger},
	}
	if c.classRules == nil {
		c.classRules = DefaultClassRules()
	}
	if c.invalidationRules == nil {
		c.invalidationRules = DefaultInvalidationRules()
	}

	if cfg.Cache.Enabled {
		c.store = o.store
		if c.store == nil {
			c.store = NewMemoryCache(MemoryCacheConfig{
				MaxEntries:      cfg.Cache.MaxEntries,
				MaxMemoryBytes:  cfg.Cache.MaxMemoryBytes,
				DefaultTTL:      cfg.Cache.TTL,
				CleanupInterval: cfg.Cache.CleanupInterval,
				Clock:           o.clock,
			})
			c.owned = true
		}
	}

	return c, nil
}

// Request performs method on endpoint. body may be nil, []byte, string,
// json.RawMessage, an io.Reader or any value to encode as JSON. GET is
// served from the cache when possible; writes invalidate related entries.
func (c *Client) Request(ctx context.Context, method, endpoint string, body interface{}, opts ...RequestOption) (*Response, error) {
	ro := buildRequestOptions(opts)

	path, query := splitEndpoint(endpoint)
	for k, values := range ro.query {
		for _, v := range values {
			query.Add(k, v)
		}
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	if ro.contentType != "" {
		contentType = ro.contentType
	}

	d := RequestDescriptor{
		Method:      strings.ToUpper(method),
		Path:        path,
		Query:       query,
		Body:        payload,
		ContentType: contentType,
		Headers:     ro.headers,
		Timeout:     ro.timeout,
		MaxRetries:  ro.maxRetries,
	}

	if d.Method == http.MethodGet {
		return c.get(ctx, d, ro.noCache)
	}

	resp, err := c.exec.Execute(ctx, d)
	if err != nil {
		return nil, err
	}
	if isWrite(d.Method) {
		c.invalidate(path)
	}
	return resp, nil
}

// Get fetches endpoint, using the cache.
func (c *Client) Get(ctx context.Context, endpoint string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodGet, endpoint, nil, opts...)
}

// GetJSON fetches endpoint and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, out interface{}, opts ...RequestOption) error {
	resp, err := c.Get(ctx, endpoint, opts...)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Post creates a resource.
func (c *Client) Post(ctx context.Context, endpoint string, body interface{}, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPost, endpoint, body, opts...)
}

// Put replaces a resource.
func (c *Client) Put(ctx context.Context, endpoint string, body interface{}, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPut, endpoint, body, opts...)
}

// Patch partially updates a resource.
func (c *Client) Patch(ctx context.Context, endpoint string, body interface{}, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPatch, endpoint, body, opts...)
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, endpoint, nil, opts...)
}

// Upload sends file as multipart/form-data and invalidates like a write.
func (c *Client) Upload(ctx context.Context, endpoint, filename string, file io.Reader, fields map[string]string, opts ...RequestOption) (*Response, error) {
	ro := buildRequestOptions(opts)
	path, query := splitEndpoint(endpoint)
	for k, values := range ro.query {
		for _, v := range values {
			query.Add(k, v)
		}
	}
	ro.query = query

	d, err := newUploadRequest(path, filename, file, fields, ro)
	if err != nil {
		return nil, err
	}
	resp, err := c.exec.Execute(ctx, d)
	if err != nil {
		return nil, err
	}
	c.invalidate(path)
	return resp, nil
}

func (c *Client) get(ctx context.Context, d RequestDescriptor, noCache bool) (*Response, error) {
	if c.store == nil || noCache {
		return c.exec.Execute(ctx, d)
	}

	key := CacheKey(c.siteID, d.Method, d.Path, d.Query)
	class := Classify(d.Path, c.classRules)

	if v, ok := c.store.Get(key); ok {
		if resp, ok := v.(*Response); ok {
			c.metrics.RecordCacheHit(class)
			if c.log.cache() {
				c.log.logger.Debug("Cache hit", "key", key, "class", class.String())
			}
			return resp, nil
		}
	}
	c.metrics.RecordCacheMiss(class)
	if c.log.cache() {
		c.log.logger.Debug("Cache miss", "key", key, "class", class.String())
	}

	gen := c.currentGeneration()
	fetch := func(ctx context.Context) (*Response, error) {
		resp, err := c.exec.Execute(ctx, d)
		if err != nil {
			return nil, err
		}
		ttl := c.cacheCfg.ClassTTL(class)
		if !c.storeIfCurrent(gen, key, resp, ttl) {
			if c.log.cache() {
				c.log.logger.Debug("Discarded response fetched before a write", "key", key)
			}
			return resp, nil
		}
		c.publishCacheState()
		if c.log.cache() {
			c.log.logger.Debug("Cached response", "key", key, "class", class.String(), "ttl", ttl)
		}
		return resp, nil
	}

	flightKey := key + "#" + strconv.FormatUint(gen, 10)
	v, err, shared := c.group.Do(ctx, flightKey, func() (interface{}, error) {
		return fetch(ctx)
	})
	if shared {
		c.metrics.RecordCoalesced(d.Path)
	}
	if err != nil {
		var cerr *ClientError
		if !errors.As(err, &cerr) {
			return nil, classifyTransportError(ctx, err, c.exec.clock.Now())
		}
		// The owner's cancellation must not fail a waiter that is still live.
		if shared && cerr.Type == ErrorTypeCanceled && ctx.Err() == nil {
			return fetch(ctx)
		}
		return nil, err
	}
	return v.(*Response), nil
}

func (c *Client) currentGeneration() uint64 {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	return c.generation
}

func (c *Client) bumpGeneration() {
	c.genMu.Lock()
	c.generation++
	c.genMu.Unlock()
}

// storeIfCurrent caches resp unless a write happened since gen was read.
// The check and the Set share the read lock, so an invalidation either
// sees the entry and deletes it or makes the check fail.
func (c *Client) storeIfCurrent(gen uint64, key string, resp *Response, ttl time.Duration) bool {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	if c.generation != gen {
		return false
	}
	c.store.Set(key, resp, ttl)
	return true
}

// invalidate drops every cached entry a successful write to path made stale.
func (c *Client) invalidate(path string) {
	if c.store == nil {
		return
	}

	c.bumpGeneration()

	collection, _ := splitResource(path)
	removed := 0
	for _, pattern := range invalidationPatterns(c.siteID, path, c.invalidationRules) {
		removed += c.store.DeletePattern(pattern)
	}

	c.metrics.RecordInvalidation(collection, removed)
	c.publishCacheState()
	if c.log.cache() {
		c.log.logger.Debug("Invalidated cache entries", "path", path, "removed", removed)
	}
}

func (c *Client) publishCacheState() {
	if c.metrics == nil || c.store == nil {
		return
	}
	stats := c.store.Stats()

	c.evictMu.Lock()
	delta := stats.Evictions - c.lastEvictions
	if delta < 0 {
		delta = stats.Evictions
	}
	c.lastEvictions = stats.Evictions
	c.evictMu.Unlock()

	c.metrics.RecordCacheState(c.siteID, stats, delta)
}

// CacheStats returns the cache counters; zero when caching is disabled.
func (c *Client) CacheStats() CacheStats {
	if c.store == nil {
		return CacheStats{}
	}
	return c.store.Stats()
}

// ClearCache removes every cached entry and returns the count.
func (c *Client) ClearCache() int {
	if c.store == nil {
		return 0
	}
	c.bumpGeneration()
	n := c.store.Clear()
	c.publishCacheState()
	return n
}

// ClearCachePattern removes entries matching pattern and returns the count.
func (c *Client) ClearCachePattern(pattern string) int {
	if c.store == nil {
		return 0
	}
	c.bumpGeneration()
	n := c.store.DeletePattern(pattern)
	c.publishCacheState()
	return n
}

// CacheEfficiency rates the hit ratio.
func (c *Client) CacheEfficiency() CacheEfficiency {
	return efficiencyOf(c.CacheStats())
}

// RequestStats returns the executor's request statistics.
func (c *Client) RequestStats() RequestStats {
	return c.exec.Stats()
}

// ResetStats zeroes request and cache statistics.
func (c *Client) ResetStats() {
	c.exec.ResetStats()
	c.ResetCacheStats()
}

// ResetCacheStats zeroes cache hits, misses and evictions.
func (c *Client) ResetCacheStats() {
	if c.store == nil {
		return
	}
	c.store.ResetStats()
	c.evictMu.Lock()
	c.lastEvictions = 0
	c.evictMu.Unlock()
}

// Executor exposes the underlying executor for uncached calls.
func (c *Client) Executor() *Executor {
	return c.exec
}

// Close releases the cache built by New. Stores passed in through
// WithCacheStore are left to their owner.
func (c *Client) Close() error {
	if c.store != nil && c.owned {
		return c.store.Close()
	}
	return nil
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// encodeBody turns a Request body into bytes and a default content type.
func encodeBody(body interface{}) ([]byte, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "application/json", nil
	case json.RawMessage:
		return v, "application/json", nil
	case string:
		return []byte(v), "application/json", nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, "", &ClientError{Type: ErrorTypeValidation, Message: "failed to read request body", Cause: err}
		}
		return data, "application/octet-stream", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", &ClientError{Type: ErrorTypeValidation, Message: "failed to encode request body", Cause: err}
		}
		return data, "application/json", nil
	}
}
