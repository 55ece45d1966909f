package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"ontlock/core"
	"ontlock/core/clock"
	"ontlock/crypto"
	"ontlock/native/vault"
	"ontlock/storage"
)

const testJWTSecret = "rpc-test-secret"

type rpcHarness struct {
	srv    *httptest.Server
	client *Client
	key    *crypto.PrivateKey
	addr   string
	nonce  uint64
	height *clock.Manual
}

func newHarness(t *testing.T, cfg ServerConfig) *rpcHarness {
	t.Helper()
	height := clock.NewManual(10)
	node, err := core.NewNode(storage.NewMemDB(), vault.DefaultParams(), height)
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Close() })
	if cfg.JWT.Secret == "" {
		cfg.JWT = JWTConfig{Secret: testJWTSecret, Issuer: "ontlock-tests"}
	}
	server, err := NewServer(node, cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return &rpcHarness{
		srv:    ts,
		client: NewClient(ts.URL + "/rpc"),
		key:    key,
		addr:   key.PubKey().Address().String(),
		height: height,
	}
}

func (h *rpcHarness) signed(t *testing.T, method string, params ...string) error {
	t.Helper()
	h.nonce++
	return h.client.Call(context.Background(), method, params, nil, WithSigner(h.key, h.nonce))
}

func operatorToken(t *testing.T, scope string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   "ontlock-tests",
		"scope": scope,
		"exp":   exp.Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func rpcCode(t *testing.T, err error) int {
	t.Helper()
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr), "expected RPCError, got %v", err)
	return rpcErr.Code
}

func TestPutGetOverRPC(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	require.NoError(t, h.signed(t, "put", h.addr, "example.com", "alice", "s3cret"))

	var raw hexutil.Bytes
	require.NoError(t, h.client.Call(context.Background(), "get", []string{h.addr, "example.com"}, &raw))
	entry, err := vault.DecodeEntry(raw)
	require.NoError(t, err)
	require.Equal(t, "alice", entry.Username)
	require.Equal(t, "s3cret", entry.Password)

	var count uint64
	require.NoError(t, h.client.Call(context.Background(), "getStoredCount", []string{h.addr}, &count))
	require.Equal(t, uint64(1), count)

	var burned string
	require.NoError(t, h.client.Call(context.Background(), "getBurned", nil, &burned))
	require.Equal(t, "0", burned)
}

func TestUnsignedMutationIsUnauthorized(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	err := h.client.Call(context.Background(), "put", []string{h.addr, "example.com", "a", "b"}, nil)
	require.Equal(t, codeUnauthorized, rpcCode(t, err))
}

func TestReplayedSignatureRejected(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	params := []string{h.addr, "example.com", "a", "b"}
	require.NoError(t, h.client.Call(context.Background(), "put", params, nil, WithSigner(h.key, 5)))
	err := h.client.Call(context.Background(), "put", params, nil, WithSigner(h.key, 5))
	require.Equal(t, codeUnauthorized, rpcCode(t, err))
}

func TestErrorCodes(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	err := h.client.Call(context.Background(), "selfdestruct", nil, nil)
	require.Equal(t, codeMethodNotFound, rpcCode(t, err))

	err = h.client.Call(context.Background(), "getAllowance", []string{h.addr, "extra"}, nil)
	require.Equal(t, codeInvalidParams, rpcCode(t, err))

	for _, site := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, h.signed(t, "put", h.addr, site, "u", "p"))
	}
	err = h.signed(t, "put", h.addr, "f", "u", "p")
	require.Equal(t, codeInvariant, rpcCode(t, err))

	err = h.signed(t, "stake", h.addr, "1")
	require.Equal(t, codeCollaborator, rpcCode(t, err))
}

func TestMintRequiresOperatorScope(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	params := []string{h.addr, "10000000000"}

	err := h.client.Call(context.Background(), methodMint, params, nil)
	require.Equal(t, codeUnauthorized, rpcCode(t, err))

	wrongScope := operatorToken(t, "ledger:read", time.Now().Add(time.Hour))
	err = h.client.Call(context.Background(), methodMint, params, nil, WithBearer(wrongScope))
	require.Equal(t, codeUnauthorized, rpcCode(t, err))

	expired := operatorToken(t, ScopeMint, time.Now().Add(-time.Hour))
	err = h.client.Call(context.Background(), methodMint, params, nil, WithBearer(expired))
	require.Equal(t, codeUnauthorized, rpcCode(t, err))

	var minted MintResult
	token := operatorToken(t, ScopeMint, time.Now().Add(time.Hour))
	require.NoError(t, h.client.Call(context.Background(), methodMint, params, &minted, WithBearer(token)))
	require.Equal(t, "10000000000", minted.Balance)

	require.NoError(t, h.signed(t, "stake", h.addr, "1"))
	var balance BalanceResult
	require.NoError(t, h.client.Call(context.Background(), methodBalance, []string{h.addr}, &balance))
	require.Equal(t, "5000000000", balance.Balance)
	require.Equal(t, h.nonce, balance.Nonce)

	var allowance uint64
	require.NoError(t, h.client.Call(context.Background(), "getAllowance", []string{h.addr}, &allowance))
	require.Equal(t, uint64(10), allowance)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, ServerConfig{RateLimit: RateLimit{RequestsPerMinute: 1, Burst: 2}})
	for i := 0; i < 2; i++ {
		require.NoError(t, h.client.Call(context.Background(), "getBurned", nil, nil))
	}
	err := h.client.Call(context.Background(), "getBurned", nil, nil)
	require.Equal(t, codeRateLimited, rpcCode(t, err))
}

func TestHTTPEnvelopeErrors(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	resp, err := http.Post(h.srv.URL+"/rpc", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	resp, err = http.Post(h.srv.URL+"/rpc", "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"get","params":[{"a":1}],"id":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStringParamsAcceptsNumbers(t *testing.T) {
	args, err := stringParams([]json.RawMessage{json.RawMessage(`"olk1abc"`), json.RawMessage(`42`)})
	require.NoError(t, err)
	require.Equal(t, []string{"olk1abc", "42"}, args)

	_, err = stringParams([]json.RawMessage{json.RawMessage(`{"a":1}`)})
	require.Error(t, err)

	args, err = stringParams(nil)
	require.NoError(t, err)
	require.Empty(t, args)
}
