// Package geocode resolves postal codes to coordinates through a
// Nominatim-compatible search endpoint, with an in-memory cache in front.
package geocode

import (
	"context"
	"container/list"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrNoMatch is returned when the backend has no result for a postal code.
var ErrNoMatch = eris.New("geocode: no match")

// Result is a resolved postal-code centroid.
type Result struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

// Options configures a Client. Zero values take conservative defaults.
type Options struct {
	BaseURL     string  // search endpoint base, e.g. https://nominatim.openstreetmap.org
	CountryCode string  // ISO country filter, e.g. "ca"
	UserAgent   string  // identifies the service to the backend, required by usage policy
	RatePerSec  float64 // request budget against the shared backend
	CacheSize   int     // postal codes kept in the LRU cache
	Timeout     time.Duration
}

// Client is a rate-limited, caching postal-code geocoder. Safe for
// concurrent use.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	opts    Options

	mu    sync.Mutex
	cache map[string]*list.Element
	order *list.List // front is most recent
}

type cacheEntry struct {
	key    string
	result Result
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "safescore/1.0"
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 1
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		opts:    opts,
		cache:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// nominatimResult mirrors the subset of the search response we consume.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup resolves a postal code to its centroid. Codes are normalized
// (uppercased, inner whitespace dropped) before cache and backend lookup,
// so "m5v 3l9" and "M5V3L9" are the same key.
func (c *Client) Lookup(ctx context.Context, postalCode string) (*Result, error) {
	code := normalize(postalCode)
	if code == "" {
		return nil, eris.Wrap(ErrNoMatch, "geocode: empty postal code")
	}

	if res, ok := c.cached(code); ok {
		return &res, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limiter wait")
	}

	params := url.Values{
		"postalcode": {code},
		"format":     {"json"},
		"limit":      {"1"},
	}
	if c.opts.CountryCode != "" {
		params.Set("countrycodes", c.opts.CountryCode)
	}
	reqURL := strings.TrimRight(c.opts.BaseURL, "/") + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: backend returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var matches []nominatimResult
	if err := json.Unmarshal(body, &matches); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	if len(matches) == 0 {
		return nil, eris.Wrapf(ErrNoMatch, "geocode: postal code %s", code)
	}

	lat, err := strconv.ParseFloat(matches[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: parse latitude")
	}
	lon, err := strconv.ParseFloat(matches[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: parse longitude")
	}

	res := Result{Latitude: lat, Longitude: lon, DisplayName: matches[0].DisplayName}
	c.remember(code, res)
	return &res, nil
}

func (c *Client) cached(code string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.cache[code]
	if !ok {
		return Result{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

func (c *Client) remember(code string, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.cache[code]; ok {
		el.Value.(*cacheEntry).result = res
		c.order.MoveToFront(el)
		return
	}
	c.cache[code] = c.order.PushFront(&cacheEntry{key: code, result: res})
	for len(c.cache) > c.opts.CacheSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.cache, oldest.Value.(*cacheEntry).key)
	}
}

func normalize(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}
