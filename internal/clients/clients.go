package clients

import (
	"time"

	"resty.dev/v3"
)

type HTTPClientOptions struct {
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	TimeOut          time.Duration
	UserAgent        string
	// MaxBodyBytes caps a single response body. Zero means 32MB.
	MaxBodyBytes int64
}

type Client struct {
	client  *resty.Client
	maxBody int64
}

func NewClient(t *HTTPClientOptions) *Client {
	client := resty.New().
		SetRetryCount(t.RetryCount).
		SetRetryWaitTime(t.RetryWaitTime).
		SetRetryMaxWaitTime(t.RetryMaxWaitTime).
		SetTimeout(t.TimeOut)

	if t.UserAgent != "" {
		client.SetHeader("User-Agent", t.UserAgent)
	}

	maxBody := t.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 32 << 20
	}

	return &Client{
		client:  client,
		maxBody: maxBody,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}
