// Copyright (C) 2025 The ALauncher Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package fetch defines the transport contract used to download file
// content, and an HTTP implementation of it.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// A Fetcher streams the content behind a URL into a writer. Implementations
// must honor context cancellation between chunks and call progress (when
// not nil) with the cumulative byte count as data arrives.
type Fetcher interface {
	Fetch(ctx context.Context, url string, dst io.Writer, progress func(bytes int64)) error
}

// An HTTPFetcher fetches over plain HTTP(S), optionally attaching a bearer
// token to every request.
type HTTPFetcher struct {
	Client    *http.Client
	AuthToken string
}

// NewHTTPFetcher returns a fetcher with a reasonable default timeout for
// establishing the response. The body read itself is bounded by the
// request context, not the client timeout.
func NewHTTPFetcher(authToken string) *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		AuthToken: authToken,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, dst io.Writer, progress func(int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if f.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.AuthToken)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: %s", url, resp.Status)
	}

	buf := make([]byte, 32<<10)
	var total int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			total += int64(n)
			if progress != nil {
				progress(total)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
