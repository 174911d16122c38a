package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTransactionNotFound is returned when the node has no record of the
// requested signature.
var ErrTransactionNotFound = errors.New("transaction not found")

const rpcRetryAttempts = 3

// RPCClient talks JSON-RPC 2.0 to a blockchain node over HTTP.
type RPCClient struct {
	url    string
	client *http.Client
}

func NewRPCClient(url string, timeout time.Duration) *RPCClient {
	return &RPCClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs a single JSON-RPC request, retrying transient transport
// failures with exponential backoff. Node-level RPC errors are not retried.
func (c *RPCClient) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	var raw json.RawMessage
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("node returned status %d", resp.StatusCode)
		}

		var rpcResp rpcResponse
		if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
			return fmt.Errorf("decode %s response: %w", method, err)
		}
		if rpcResp.Error != nil {
			return backoff.Permanent(fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message))
		}
		raw = rpcResp.Result
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), rpcRetryAttempts-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// GetTransaction fetches a confirmed transaction by signature.
func (c *RPCClient) GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error) {
	params := []any{
		signature,
		map[string]any{"encoding": "json", "maxSupportedTransactionVersion": 0},
	}
	var detail *TransactionDetail
	if err := c.call(ctx, "getTransaction", params, &detail); err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, ErrTransactionNotFound
	}
	return detail, nil
}

// GetSignaturesForAddress lists the most recent transaction signatures that
// involve the given address, newest first.
func (c *RPCClient) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	params := []any{
		address,
		map[string]any{"limit": limit},
	}
	var infos []SignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", params, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// GetBalance returns the native balance of an address in base units.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{address}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// GetTokenAccountsByOwner lists the owner's token accounts holding the given
// mint, returning their addresses.
func (c *RPCClient) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]string, error) {
	params := []any{
		owner,
		map[string]any{"mint": mint},
		map[string]any{"encoding": "jsonParsed"},
	}
	var result struct {
		Value []struct {
			Pubkey string `json:"pubkey"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}
	accounts := make([]string, 0, len(result.Value))
	for _, entry := range result.Value {
		accounts = append(accounts, entry.Pubkey)
	}
	return accounts, nil
}
