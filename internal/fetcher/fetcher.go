// Package fetcher retrieves the raw transaction and withdrawal records of a
// user from the investment backend.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/savegress/investdash/internal/config"
	"github.com/savegress/investdash/pkg/models"
)

// Stream names
const (
	StreamTransactions = "transactions"
	StreamWithdrawals  = "withdrawals"
)

// Fetcher is the source of raw records for one user
type Fetcher interface {
	FetchTransactions(ctx context.Context, user models.UserProfile) ([]models.RawTransaction, error)
	FetchWithdrawals(ctx context.Context, user models.UserProfile) ([]models.RawWithdrawal, error)
}

// Client fetches records over the backend's authenticated REST API
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	log          zerolog.Logger
}

// NewClient creates a backend client
func NewClient(cfg *config.BackendConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		serviceToken: cfg.ServiceToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "fetcher").Logger(),
	}
}

// FetchTransactions returns the user's investment transactions
func (c *Client) FetchTransactions(ctx context.Context, user models.UserProfile) ([]models.RawTransaction, error) {
	body, err := c.doRequest(ctx, StreamTransactions, user)
	if err != nil {
		return nil, err
	}
	txs, err := decodeList[models.RawTransaction](body, StreamTransactions)
	if err != nil {
		return nil, &FetchError{Stream: StreamTransactions, Message: "decode response", Cause: err}
	}
	return txs, nil
}

// FetchWithdrawals returns the user's withdrawal requests
func (c *Client) FetchWithdrawals(ctx context.Context, user models.UserProfile) ([]models.RawWithdrawal, error) {
	body, err := c.doRequest(ctx, StreamWithdrawals, user)
	if err != nil {
		return nil, err
	}
	ws, err := decodeList[models.RawWithdrawal](body, StreamWithdrawals)
	if err != nil {
		return nil, &FetchError{Stream: StreamWithdrawals, Message: "decode response", Cause: err}
	}
	return ws, nil
}

func (c *Client) doRequest(ctx context.Context, stream string, user models.UserProfile) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s?userId=%s", c.baseURL, stream, url.QueryEscape(user.ID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Stream: stream, Message: "build request", Cause: err}
	}

	req.Header.Set("Accept", "application/json")
	token := user.Token
	if token == "" {
		token = c.serviceToken
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Stream: stream, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Stream: stream, Status: resp.StatusCode, Message: "read body", Cause: err}
	}

	c.log.Debug().
		Str("stream", stream).
		Str("user_id", user.ID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode >= 400 {
		return nil, &FetchError{
			Stream:  stream,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("backend API error: %d", resp.StatusCode),
		}
	}

	return respBody, nil
}

// decodeList accepts either a bare JSON array or an envelope object holding
// the array under the stream key, "data" or "items". Envelopes may nest up to
// maxEnvelopeDepth levels. A missing array decodes as an empty list. Elements
// are decoded one by one, and null or non-object elements are skipped.
func decodeList[T any](body []byte, key string) ([]T, error) {
	return decodeEnvelope[T](body, key, 0)
}

const maxEnvelopeDepth = 3

func decodeEnvelope[T any](body []byte, key string, depth int) ([]T, error) {
	body = bytes.TrimSpace(body)
	out := make([]T, 0)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return out, nil
	}

	switch body[0] {
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(body, &elements); err != nil {
			return nil, err
		}
		for _, raw := range elements {
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 || raw[0] != '{' {
				continue
			}
			var item T
			if err := json.Unmarshal(raw, &item); err != nil {
				continue
			}
			out = append(out, item)
		}
		return out, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		for _, k := range []string{key, "data", "items"} {
			raw, ok := envelope[k]
			if !ok {
				continue
			}
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 {
				continue
			}
			if raw[0] == '[' || (raw[0] == '{' && depth < maxEnvelopeDepth) {
				return decodeEnvelope[T](raw, key, depth+1)
			}
		}
		return out, nil
	}
	return nil, ErrUnexpectedBody
}

// Errors
var (
	ErrUnexpectedBody = &FetchError{Message: "response is neither a JSON array nor an object"}
)

// FetchError describes a failed fetch of one stream
type FetchError struct {
	Stream  string
	Status  int
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if e.Stream != "" {
		msg = e.Stream + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
