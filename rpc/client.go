package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"ontlock/core/auth"
	"ontlock/crypto"
)

// Client calls a node's JSON-RPC endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Int64
}

func NewClient(endpoint string) *Client {
	return &Client{endpoint: endpoint, http: &http.Client{Timeout: 30 * time.Second}}
}

type callOptions struct {
	headers map[string]string
	sign    func(method string, params []string) error
}

// CallOption decorates a single call.
type CallOption func(*callOptions)

// WithSigner authenticates the call as key's account using nonce.
func WithSigner(key *crypto.PrivateKey, nonce uint64) CallOption {
	return func(o *callOptions) {
		o.sign = func(method string, params []string) error {
			sig, err := auth.Sign(key, method, params, nonce)
			if err != nil {
				return err
			}
			o.headers[HeaderAccount] = key.PubKey().Address().String()
			o.headers[HeaderNonce] = strconv.FormatUint(nonce, 10)
			o.headers[HeaderSignature] = hexutil.Encode(sig)
			return nil
		}
	}
}

// WithBearer attaches an operator token.
func WithBearer(token string) CallOption {
	return func(o *callOptions) { o.headers["Authorization"] = "Bearer " + token }
}

// Call invokes method and decodes the result into out when out is non-nil.
// JSON-RPC failures are returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params []string, out interface{}, opts ...CallOption) error {
	if params == nil {
		params = []string{}
	}
	o := &callOptions{headers: map[string]string{HeaderRequestID: uuid.NewString()}}
	for _, opt := range opts {
		opt(o)
	}
	if o.sign != nil {
		if err := o.sign(method, params); err != nil {
			return fmt.Errorf("sign request: %w", err)
		}
	}
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		if err != nil {
			return err
		}
		raw = append(raw, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: c.nextID.Add(1)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}
