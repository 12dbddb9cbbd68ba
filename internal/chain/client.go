// Package chain is the JSON-RPC client for the ledger node. It covers the
// three calls the sync pipeline needs: signature history for the program,
// full transaction logs, and raw account data.
package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// SignatureInfo is one entry of the program's signature history.
type SignatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
}

// TransactionDetail is the subset of a fetched transaction the pipeline
// consumes.
type TransactionDetail struct {
	Slot        uint64
	BlockTime   *int64
	LogMessages []string
}

// AccountInfo is a fetched account's raw state.
type AccountInfo struct {
	Owner string
	Data  []byte
}

// Client calls the ledger's JSON-RPC endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a Client for the RPC endpoint URL.
func NewClient(endpoint string) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("rpc endpoint is required")
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("parse %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("parse %s result: %w", method, err)
		}
	}
	return nil
}

// SignaturesForAddress lists up to limit transaction signatures touching
// address, newest first, starting strictly before the optional cursor.
func (c *Client) SignaturesForAddress(ctx context.Context, address string, limit int, before string) ([]SignatureInfo, error) {
	opts := map[string]interface{}{"limit": limit}
	if before != "" {
		opts["before"] = before
	}

	var out []SignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", []interface{}{address, opts}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type transactionResult struct {
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		LogMessages []string `json:"logMessages"`
	} `json:"meta"`
}

// Transaction fetches one transaction's slot, block time, and log lines.
func (c *Client) Transaction(ctx context.Context, signature string) (*TransactionDetail, error) {
	opts := map[string]interface{}{
		"encoding":                       "json",
		"maxSupportedTransactionVersion": 0,
	}

	var out *transactionResult
	if err := c.call(ctx, "getTransaction", []interface{}{signature, opts}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("transaction %s not found", signature)
	}

	detail := &TransactionDetail{Slot: out.Slot, BlockTime: out.BlockTime}
	if out.Meta != nil {
		detail.LogMessages = out.Meta.LogMessages
	}
	return detail, nil
}

type accountInfoResult struct {
	Value *struct {
		Owner string   `json:"owner"`
		Data  []string `json:"data"`
	} `json:"value"`
}

// Account fetches an account's owner and raw base64 data.
func (c *Client) Account(ctx context.Context, address string) (*AccountInfo, error) {
	opts := map[string]interface{}{"encoding": "base64"}

	var out accountInfoResult
	if err := c.call(ctx, "getAccountInfo", []interface{}{address, opts}, &out); err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, fmt.Errorf("account %s not found", address)
	}
	if len(out.Value.Data) == 0 {
		return &AccountInfo{Owner: out.Value.Owner}, nil
	}

	data, err := base64.StdEncoding.DecodeString(out.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode account %s data: %w", address, err)
	}
	return &AccountInfo{Owner: out.Value.Owner, Data: data}, nil
}
