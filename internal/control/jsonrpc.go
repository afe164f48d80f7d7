package control

import (
	"encoding/json"

	"github.com/samber/oops"
)

// JSON-RPC 2.0 envelope. Batches and notifications are not supported; every
// request gets exactly one response.

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func reply(id json.RawMessage, result any, e *rpcError) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: result, Error: e}
}

func parseRPCRequest(body []byte) (rpcRequest, error) {
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return rpcRequest{}, oops.In("control").Wrapf(err, "decode request")
	}
	switch {
	case req.JSONRPC != "" && req.JSONRPC != "2.0":
		return rpcRequest{}, oops.In("control").With("jsonrpc", req.JSONRPC).Errorf("unsupported jsonrpc version")
	case req.Method == "":
		return rpcRequest{}, oops.In("control").Errorf("missing method")
	}
	return req, nil
}
