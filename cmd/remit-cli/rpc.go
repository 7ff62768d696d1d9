package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

var httpClient = &http.Client{
	Timeout:   15 * time.Second,
	Transport: otelhttp.NewTransport(http.DefaultTransport),
}

var rpcCall = callRPC

func callRPC(method string, params ...interface{}) (json.RawMessage, *rpcError, error) {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, nil, err
	}
	resp, err := httpClient.Post(rpcEndpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("contact %s: %w", rpcEndpoint, err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response (HTTP %d): %w", resp.StatusCode, err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

// invoke calls method and decodes the result into out when out is non-nil.
func invoke(method string, out interface{}, params ...interface{}) error {
	result, rpcErr, err := rpcCall(method, params...)
	if err != nil {
		return err
	}
	if rpcErr != nil {
		return rpcErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
