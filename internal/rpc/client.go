package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"expertdir/apps/recommender/internal/middleware"
	"expertdir/apps/recommender/internal/recommend"
)

// Caller delivers a request and returns its response. The dispatcher, the
// HTTP caller and the NSQ requester all implement it.
type Caller interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Client wraps a Caller with one typed helper per method.
type Client struct {
	caller Caller
}

func NewClient(c Caller) *Client {
	return &Client{caller: c}
}

func (c *Client) ExtractKeywords(ctx context.Context, text string) ([]string, error) {
	var out []string
	if err := c.call(ctx, NewRequest(MethodExtractKeywords, text), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Recommend(ctx context.Context, question string) (recommend.Recommendation, error) {
	out := recommend.Recommendation{}
	if err := c.call(ctx, NewRequest(MethodRecommend, question), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Add(ctx context.Context, skills, email string) error {
	return c.call(ctx, NewRequest(MethodAdd, skills, email), nil)
}

func (c *Client) Update(ctx context.Context, skills, email string) error {
	return c.call(ctx, NewRequest(MethodUpdate, skills, email), nil)
}

func (c *Client) Delete(ctx context.Context, email string) error {
	return c.call(ctx, NewRequest(MethodDelete, email), nil)
}

func (c *Client) call(ctx context.Context, req Request, out any) error {
	resp, err := c.caller.Call(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// HTTPCaller posts requests to a recommender's /rpc endpoint.
type HTTPCaller struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPCaller(baseURL string, timeout time.Duration) *HTTPCaller {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPCaller{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPCaller) Call(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := middleware.GetCorrelationID(ctx); id != "unknown" {
		httpReq.Header.Set(middleware.CorrelationHeader, id)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("sending rpc request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return Response{}, ErrNotAvailable
	}
	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
			return Response{}, fmt.Errorf("rpc error: %d %s", resp.StatusCode, errResp.Error.Message)
		}
		return Response{}, fmt.Errorf("rpc error: %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decoding rpc response: %w", err)
	}
	return out, nil
}
