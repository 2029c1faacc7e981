package client

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

const (
	minBackoff = time.Second
	maxBackoff = 5 * time.Second
)

// Stream reads task events from the server until ctx is done or the server
// ends the stream, calling fn for each event. Keep-alive comments and
// undecodable payloads are skipped.
func (c *Client) Stream(ctx context.Context, fn func(domain.Event)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// no client timeout; ctx bounds the stream
	hc := &http.Client{Transport: c.HTTP.Transport}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}

	var data strings.Builder
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				var ev domain.Event
				if err := sonic.UnmarshalString(data.String(), &ev); err == nil {
					fn(ev)
				}
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return ErrStreamClosed
}

// Watch keeps a stream open until ctx is done, reconnecting with a capped
// backoff. onError, when set, is told about every dropped connection.
func (c *Client) Watch(ctx context.Context, fn func(domain.Event), onError func(error)) error {
	backoff := minBackoff
	for {
		start := time.Now()
		err := c.Stream(ctx, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if onError != nil {
			onError(err)
		}
		if time.Since(start) > maxBackoff {
			backoff = minBackoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
