package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MTLaboratory/MTSFV/plugin/manager/types"
)

// StatusError is returned when a plugin answers with a non-200 status.
// Callers can inspect the code to translate well-known statuses back into
// sentinel errors.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("plugin returned status code %d (no details were given)", e.StatusCode)
	}
	return fmt.Sprintf("plugin returned status code %d: %s", e.StatusCode, e.Message)
}

// KV is a header or query parameter pair.
type KV struct {
	Key   string
	Value string
}

// CallOptions contains options for calling a plugin endpoint.
type CallOptions struct {
	Payload     any
	RawBody     io.Reader
	Result      any
	QueryParams []KV
}

// CallOptionFn sets parameters for the Call method.
type CallOptionFn func(opt *CallOptions)

// WithPayload sets a JSON payload to send to the callee.
func WithPayload(payload any) CallOptionFn {
	return func(opt *CallOptions) {
		opt.Payload = payload
	}
}

// WithRawBody sets a raw request body. Used for stream chunks, which are
// sent as application/octet-stream instead of JSON.
func WithRawBody(body io.Reader) CallOptionFn {
	return func(opt *CallOptions) {
		opt.RawBody = body
	}
}

// WithResult sets up a result that the response will be decoded into.
func WithResult(result any) CallOptionFn {
	return func(opt *CallOptions) {
		opt.Result = result
	}
}

// WithQueryParams sets url parameters for the call.
func WithQueryParams(queryParams []KV) CallOptionFn {
	return func(opt *CallOptions) {
		opt.QueryParams = append(opt.QueryParams, queryParams...)
	}
}

// Call uses the plugin's connection client to make a call to the given
// endpoint. The JSON response is decoded into the configured result if one
// is set.
func Call(ctx context.Context, client *http.Client, connectionType types.ConnectionType, location, endpoint, method string, opts ...CallOptionFn) (err error) {
	options := &CallOptions{}
	for _, opt := range opts {
		opt(options)
	}

	resp, err := roundTrip(ctx, client, connectionType, location, endpoint, method, options)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if options.Result == nil {
		// Drain the body so the connection can be reused.
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(options.Result); err != nil {
		return fmt.Errorf("failed to decode response from plugin: %w", err)
	}
	return nil
}

// CallStream is Call for endpoints that answer with a raw byte stream. The
// caller owns the returned body and must close it.
func CallStream(ctx context.Context, client *http.Client, connectionType types.ConnectionType, location, endpoint, method string, opts ...CallOptionFn) (io.ReadCloser, error) {
	options := &CallOptions{}
	for _, opt := range opts {
		opt(options)
	}

	resp, err := roundTrip(ctx, client, connectionType, location, endpoint, method, options)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func roundTrip(ctx context.Context, client *http.Client, connectionType types.ConnectionType, location, endpoint, method string, options *CallOptions) (*http.Response, error) {
	var body io.Reader
	contentType := "application/json"
	switch {
	case options.RawBody != nil:
		body = options.RawBody
		contentType = "application/octet-stream"
	case options.Payload != nil:
		content, err := json.Marshal(options.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(content)
	}

	base := "http://unix"
	if connectionType == types.TCP {
		base = location
	}

	endpoint = strings.TrimPrefix(endpoint, "/")
	request, err := http.NewRequestWithContext(ctx, method, base+"/"+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if len(options.QueryParams) > 0 {
		query := request.URL.Query()
		for _, kv := range options.QueryParams {
			query.Add(kv.Key, kv.Value)
		}
		request.URL.RawQuery = query.Encode()
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("Accept", "application/json")

	resp, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to plugin: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		data, rerr := io.ReadAll(resp.Body)
		if rerr == nil && len(data) > 0 {
			statusErr.Message = strings.TrimSpace(string(data))
		}
		return nil, statusErr
	}

	return resp, nil
}
