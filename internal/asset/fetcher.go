// Copyright 2025 MediaStore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"mediastore/internal/common"
)

// FetchedFile is the raw download of a source image.
type FetchedFile struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Fetcher retrieves source bytes for ingestion. The production implementation
// is HTTP; tests substitute an in-memory one.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedFile, error)
}

// HTTPFetcher downloads images over HTTP with a bounded timeout.
type HTTPFetcher struct {
	client *http.Client
	// maxBytes caps the response body. Zero means no cap.
	maxBytes int64
}

// NewHTTPFetcher returns a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the URL. Network failures and non-2xx responses wrap
// common.ErrFetch so callers can abort ingestion cleanly.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*FetchedFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %s: %v", common.ErrFetch, url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", common.ErrFetch, url, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", common.ErrFetch, url, err)
	}

	return &FetchedFile{
		Data:        data,
		Filename:    common.BaseName(url),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
