package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ontlock/core"
	"ontlock/core/auth"
	"ontlock/crypto"
	"ontlock/observability"
)

const (
	defaultMaxRequestBytes = 1 << 20

	// HeaderAccount names the account a signed request acts for.
	HeaderAccount = "X-Ontlock-Account"
	// HeaderNonce carries the request nonce in decimal.
	HeaderNonce = "X-Ontlock-Nonce"
	// HeaderSignature carries the 65-byte request signature in 0x hex.
	HeaderSignature = "X-Ontlock-Signature"
	// HeaderRequestID correlates a request across logs and responses.
	HeaderRequestID = "X-Request-ID"

	methodMint    = "ledger_mint"
	methodBalance = "ledger_balance"
)

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	RateLimit    RateLimit
	JWT          JWTConfig
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

type Server struct {
	node     *core.Node
	cfg      ServerConfig
	logger   *slog.Logger
	limiter  *rateLimiter
	operator *operatorAuth
	http     *http.Server
}

type requestIDKey struct{}

func NewServer(node *core.Node, cfg ServerConfig) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxRequestBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter, err := newRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	return &Server{
		node:     node,
		cfg:      cfg,
		logger:   logger.With("component", "rpc"),
		limiter:  limiter,
		operator: newOperatorAuth(cfg.JWT),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	rpcHandler := otelhttp.NewHandler(s.limiter.middleware(http.HandlerFunc(s.handle)), "rpc")
	r.Post("/", rpcHandler.ServeHTTP)
	r.Post("/rpc", rpcHandler.ServeHTTP)
	return r
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// handle decodes a JSON-RPC request and routes it to the node.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, nil)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	code := s.route(w, r, req)
	observability.RPC().ObserveRequest(req.Method, code)
	s.logger.Info("rpc request",
		"request_id", requestIDFrom(r.Context()),
		"method", req.Method,
		"code", code,
		"duration", time.Since(start),
	)
}

// route serves req and returns the JSON-RPC error code written, zero on
// success.
func (s *Server) route(w http.ResponseWriter, r *http.Request, req *RPCRequest) int {
	args, err := stringParams(req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "params must be a list of strings", err.Error())
		return codeInvalidParams
	}
	switch req.Method {
	case methodMint:
		return s.handleMint(w, r, req, args)
	case methodBalance:
		return s.handleBalance(w, r, req, args)
	}

	caller, rpcErr := s.callerFor(r, req.Method, args)
	if rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return rpcErr.Code
	}
	result, err := s.node.Dispatch(r.Context(), caller, req.Method, args)
	if err != nil {
		status, code := errorCode(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return code
	}
	writeResult(w, req.ID, result)
	return 0
}

// callerFor authenticates mutating requests that carry signature headers.
// Unsigned requests run anonymously; the vault rejects any mutation they
// attempt. The nonce commits under its own node lock before Dispatch takes
// the lock again, so other operations may run in between; the spent nonce
// keeps the signed request from being replayed in that window.
func (s *Server) callerFor(r *http.Request, method string, args []string) (auth.Caller, *RPCError) {
	if !core.IsMutation(method) {
		return auth.Anonymous{}, nil
	}
	if want, ok := core.Arity(method); ok && want != len(args) {
		// Dispatch reports the arity failure; a nonce is not spent on it.
		return auth.Anonymous{}, nil
	}
	accountHeader := strings.TrimSpace(r.Header.Get(HeaderAccount))
	if accountHeader == "" {
		return auth.Anonymous{}, nil
	}
	account, err := crypto.ParseAccount(accountHeader)
	if err != nil {
		return nil, &RPCError{Code: codeUnauthorized, Message: "invalid account header", Data: err.Error()}
	}
	nonce, err := strconv.ParseUint(strings.TrimSpace(r.Header.Get(HeaderNonce)), 10, 64)
	if err != nil {
		return nil, &RPCError{Code: codeUnauthorized, Message: "invalid nonce header"}
	}
	sig, err := hexutil.Decode(strings.TrimSpace(r.Header.Get(HeaderSignature)))
	if err != nil {
		return nil, &RPCError{Code: codeUnauthorized, Message: "invalid signature header", Data: err.Error()}
	}
	caller, err := s.node.Authenticate(r.Context(), account, method, args, nonce, sig)
	if err != nil {
		return nil, &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	return caller, nil
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request, req *RPCRequest, args []string) int {
	if err := s.operator.require(r, ScopeMint); err != nil {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, err.Error(), nil)
		return codeUnauthorized
	}
	if len(args) != 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "ledger_mint takes account and value", nil)
		return codeInvalidParams
	}
	account, err := crypto.ParseAccount(args[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account", err.Error())
		return codeInvalidParams
	}
	value, err := uint256.FromDecimal(strings.TrimSpace(args[1]))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid value", err.Error())
		return codeInvalidParams
	}
	balance, err := s.node.Mint(r.Context(), account, value)
	if err != nil {
		status, code := errorCode(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return code
	}
	writeResult(w, req.ID, MintResult{
		Account: crypto.MustNewAddress(crypto.AccountPrefix, account[:]).String(),
		Balance: balance.Dec(),
	})
	return 0
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest, args []string) int {
	if len(args) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "ledger_balance takes one account", nil)
		return codeInvalidParams
	}
	account, err := crypto.ParseAccount(args[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account", err.Error())
		return codeInvalidParams
	}
	balance, err := s.node.Balance(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return codeServerError
	}
	nonce, err := s.node.LastNonce(account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return codeServerError
	}
	writeResult(w, req.ID, BalanceResult{
		Account: crypto.MustNewAddress(crypto.AccountPrefix, account[:]).String(),
		Balance: balance.Dec(),
		Nonce:   nonce,
	})
	return 0
}

// stringParams accepts JSON strings and numbers; numbers keep their literal
// text.
func stringParams(params []json.RawMessage) ([]string, error) {
	out := make([]string, 0, len(params))
	for i, raw := range params {
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			out = append(out, str)
			continue
		}
		var num json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&num); err != nil {
			return nil, fmt.Errorf("param %d is not a string", i)
		}
		out = append(out, num.String())
	}
	return out, nil
}
