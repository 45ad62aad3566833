package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Error bodies are truncated to this many bytes in TransportError.
const maxErrorBody = 512

type restClient struct {
	http   *http.Client
	logger zerolog.Logger
}

func newRestClient(client *http.Client, logger zerolog.Logger) restClient {
	if client == nil {
		client = http.DefaultClient
	}
	return restClient{http: client, logger: logger}
}

// do sends one request and decodes a JSON response into out when out is not
// nil. Anything but a 2xx status is a *TransportError, and so is an empty or
// malformed body when a response is expected.
func (c restClient) do(ctx context.Context, op, method, addr, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, addr, reader)
	if err != nil {
		return &TransportError{Op: op, URL: addr, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug().Str("op", op).Str("method", method).Str("url", addr).Int("bytes", len(body)).Msg("Request")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: addr, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, URL: addr, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &TransportError{Op: op, URL: addr, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &TransportError{Op: op, URL: addr, StatusCode: resp.StatusCode, Err: errors.New("malformed response: empty body")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, URL: addr, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}
