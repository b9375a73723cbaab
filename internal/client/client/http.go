package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/entity"
)

// HTTPOptions tunes the HTTP transport.
type HTTPOptions struct {
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	// OnUnauthorized is invoked after any 401 response, so the caller can
	// drop the stored session.
	OnUnauthorized func()
}

// HTTPClient talks to the sync server over JSON/HTTP.
type HTTPClient struct {
	rc *resty.Client

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(baseURL string, opts HTTPOptions) *HTTPClient {
	c := &HTTPClient{}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError
		})

	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token != "" {
			r.SetHeader(common.AuthorizationHeaderName, common.BearerPrefix+token)
		}
		return nil
	})
	rc.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		if r.StatusCode() == http.StatusUnauthorized && opts.OnUnauthorized != nil {
			opts.OnUnauthorized()
		}
		return nil
	})

	c.rc = rc
	return c
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) Close() error {
	c.rc.GetClient().CloseIdleConnections()
	return nil
}

func (c *HTTPClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return fmt.Errorf("http error: %w", err)
}

func (c *HTTPClient) do(req *resty.Request, method, path string, out any) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return c.mapError(err)
	}
	if resp.IsError() {
		return &StatusError{Code: resp.StatusCode(), Body: string(resp.Body())}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(c.rc.R().SetContext(ctx), http.MethodGet, "/ping", &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) Session(ctx context.Context) (*entity.Session, error) {
	var s entity.Session
	if err := c.do(c.rc.R().SetContext(ctx), http.MethodGet, "/session", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) Push(ctx context.Context, table entity.Table, rows []entity.Record) ([]entity.PushResult, error) {
	var resp entity.PushResponse
	req := c.rc.R().SetContext(ctx).SetBody(rows).SetPathParam("table", string(table))
	if err := c.do(req, http.MethodPost, "/sync/push/{table}", &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *HTTPClient) PushDeleted(ctx context.Context, tombstones []entity.Tombstone) ([]entity.PushResult, error) {
	var resp entity.PushResponse
	req := c.rc.R().SetContext(ctx).SetBody(tombstones)
	if err := c.do(req, http.MethodPost, "/sync/push/deleted", &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *HTTPClient) Pull(ctx context.Context, table entity.Table, since int64) ([]json.RawMessage, error) {
	var resp map[string][]json.RawMessage
	req := c.rc.R().SetContext(ctx).
		SetPathParam("table", string(table)).
		SetQueryParam("since", strconv.FormatInt(since, 10))
	if err := c.do(req, http.MethodGet, "/sync/pull/{table}", &resp); err != nil {
		return nil, err
	}
	rows, ok := resp[string(table)]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q in pull response", ErrMalformedResponse, table)
	}
	return rows, nil
}

func (c *HTTPClient) PullDeleted(ctx context.Context, since int64) ([]entity.Tombstone, error) {
	var resp map[string][]entity.Tombstone
	req := c.rc.R().SetContext(ctx).SetQueryParam("since", strconv.FormatInt(since, 10))
	if err := c.do(req, http.MethodGet, "/sync/pull/deleted", &resp); err != nil {
		return nil, err
	}
	rows, ok := resp[string(entity.TableDeleted)]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q in pull response", ErrMalformedResponse, entity.TableDeleted)
	}
	return rows, nil
}

func (c *HTTPClient) IconAssets(ctx context.Context, packID string) ([]entity.IconAsset, error) {
	var resp struct {
		Assets []entity.IconAsset `json:"assets"`
	}
	req := c.rc.R().SetContext(ctx).SetPathParam("id", packID)
	if err := c.do(req, http.MethodGet, "/sync/icon-packs/{id}/assets", &resp); err != nil {
		return nil, err
	}
	return resp.Assets, nil
}
