package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civicsignal/safescore/internal/config"
	"github.com/civicsignal/safescore/internal/model"
)

// PortalClient pulls datasets from an ArcGIS open-data portal: item
// metadata first to resolve the feature service, then paginated GeoJSON
// queries against it. All requests share one rate limiter.
type PortalClient struct {
	http     *http.Client
	limiter  *rate.Limiter
	baseURL  string
	pageSize int
}

func NewPortalClient(cfg config.IngestConfig) *PortalClient {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 2000
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 4
	}
	return &PortalClient{
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(perSec), 1),
		baseURL:  cfg.PortalURL,
		pageSize: pageSize,
	}
}

// ServiceURL resolves a portal item ID to its feature service endpoint.
// The configured base URL already points at the portal's item collection,
// so the item ID appends directly.
func (c *PortalClient) ServiceURL(ctx context.Context, itemID string) (string, error) {
	u := fmt.Sprintf("%s/%s?f=json", strings.TrimRight(c.baseURL, "/"), url.PathEscape(itemID))

	var meta struct {
		URL string `json:"url"`
	}
	if err := c.getJSON(ctx, u, &meta); err != nil {
		return "", eris.Wrapf(err, "ingest: item metadata %s", itemID)
	}
	if meta.URL == "" {
		return "", eris.Errorf("ingest: item %s has no service url", itemID)
	}
	return meta.URL, nil
}

// FetchDataset pages through a feature service and parses every feature
// into incidents. Pagination ends on a short page or an empty one.
func (c *PortalClient) FetchDataset(ctx context.Context, name, serviceURL string) ([]model.Incident, error) {
	var all []model.Incident
	offset := 0
	for {
		query := fmt.Sprintf(
			"%s/0/query?where=1%%3D1&outFields=*&resultOffset=%d&resultRecordCount=%d&f=geojson",
			serviceURL, offset, c.pageSize,
		)

		body, err := c.get(ctx, query)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: fetch %s offset %d", name, offset)
		}
		page, err := ParseGeoJSON(body, name+".geojson")
		closeErr := body.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, eris.Wrapf(closeErr, "ingest: close body for %s", name)
		}

		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		zap.L().Debug("fetched dataset page",
			zap.String("dataset", name),
			zap.Int("offset", offset),
			zap.Int("records", len(page)),
		)
		if len(page) < c.pageSize {
			break
		}
		offset += len(page)
	}
	return all, nil
}

func (c *PortalClient) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ingest: rate limiter wait")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: request")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("ingest: http %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

func (c *PortalClient) getJSON(ctx context.Context, rawURL string, out any) error {
	body, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return eris.Wrap(err, "ingest: decode response")
	}
	return nil
}
