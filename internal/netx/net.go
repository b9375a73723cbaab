// Package netx downloads binaries from presigned object storage URLs.
package netx

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// NewDownloader returns a resty client suitable for fetching presigned URLs.
// Presigned URLs carry their own credentials, so no auth is attached.
func NewDownloader(timeout time.Duration, retries int) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
}

// DownloadPresignedURL fetches url and returns the body.
func DownloadPresignedURL(ctx context.Context, c *resty.Client, url string) ([]byte, error) {
	resp, err := c.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("download failed: %s; body: %s", resp.Status(), string(resp.Body()))
	}
	return resp.Body(), nil
}
