package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"ontlock/core/auth"
	"ontlock/core/events"
	"ontlock/core/state"
	"ontlock/native/bank"
	"ontlock/native/vault"
	"ontlock/observability"
	otelsetup "ontlock/observability/otel"
	"ontlock/storage"
)

// Node owns the ledger store and runs every vault operation against it. Each
// mutating operation stages its writes in a fresh state.Manager under a single
// lock; the writes are committed as one batch when the operation succeeds and
// dropped when it fails. Events reach the emitter only after the commit.
type Node struct {
	db      storage.Database
	params  vault.Params
	height  vault.HeightSource
	emitter events.Emitter
	logger  *slog.Logger
	ops     metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// NewNode wires a node over db. The height source is required because stake
// locks are evaluated against it.
func NewNode(db storage.Database, params vault.Params, height vault.HeightSource) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if height == nil {
		return nil, fmt.Errorf("core: height source required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	n := &Node{
		db:      db,
		params:  params,
		height:  height,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
	}
	if counter, err := otelsetup.OperationCounter(); err == nil {
		n.ops = counter
	}
	return n, nil
}

// SetEmitter configures where committed events are delivered. Passing nil
// resets it to a no-op.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

// SetLogger overrides the logger. Passing nil restores slog.Default.
func (n *Node) SetLogger(logger *slog.Logger) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

// Params returns the engine parameters the node runs with.
func (n *Node) Params() vault.Params { return n.params }

// Close releases the underlying store. Operations fail afterwards.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.db.Close()
}

// session bundles the collaborators of a single operation.
type session struct {
	manager *state.Manager
	engine  *vault.Engine
	ledger  *bank.Ledger
	events  *events.Buffer
}

func (n *Node) newSession() *session {
	manager := state.NewManager(n.db)
	buffer := &events.Buffer{}
	ledger := bank.NewLedger(manager)
	ledger.SetEmitter(buffer)
	engine := vault.NewEngine(n.params)
	engine.SetState(manager)
	engine.SetTransferer(ledger)
	engine.SetHeightSource(n.height)
	engine.SetEmitter(buffer)
	return &session{manager: manager, engine: engine, ledger: ledger, events: buffer}
}

// mutate runs fn in a fresh session and commits its writes when fn succeeds.
func (n *Node) mutate(ctx context.Context, op string, fn func(*session) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return internalError(op, ErrNodeClosed)
	}

	start := time.Now()
	s := n.newSession()
	err := fn(s)
	if err == nil {
		if commitErr := s.manager.Commit(); commitErr != nil {
			err = internalError(op, fmt.Errorf("commit: %w", commitErr))
		}
	}
	if err != nil {
		s.manager.Discard()
		s.events.Reset()
		n.record(ctx, op, err, time.Since(start))
		return err
	}
	for _, evt := range s.events.Drain() {
		n.emitter.Emit(evt)
		observability.Events().RecordEvent(evt.EventType())
	}
	n.record(ctx, op, nil, time.Since(start))
	return nil
}

// view runs a read-only operation against committed state and records it
// like a mutation.
func (n *Node) view(ctx context.Context, op string, fn func(*session) error) error {
	start := time.Now()
	err := n.snapshot(op, fn)
	n.recordAt(ctx, slog.LevelDebug, op, err, time.Since(start))
	return err
}

// snapshot runs fn against committed state without recording it.
func (n *Node) snapshot(op string, fn func(*session) error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return internalError(op, ErrNodeClosed)
	}
	return fn(n.newSession())
}

func (n *Node) record(ctx context.Context, op string, err error, took time.Duration) {
	n.recordAt(ctx, slog.LevelInfo, op, err, took)
}

func (n *Node) recordAt(ctx context.Context, level slog.Level, op string, err error, took time.Duration) {
	class := ""
	outcome := "success"
	if err != nil {
		class = string(vault.ClassOf(err))
		outcome = "failure"
	}
	observability.Vault().ObserveOperation(op, class, took)
	if errors.Is(err, vault.ErrAllowanceExceeded) {
		observability.Vault().RecordAllowanceDenial()
	}
	if n.ops != nil {
		n.ops.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		))
	}
	if err != nil {
		n.logger.Warn("vault operation failed", "op", op, "class", class, "error", err, "duration", took)
		return
	}
	n.logger.Log(ctx, level, "vault operation", "op", op, "duration", took)
}

// Authenticate checks a signed request and consumes its nonce. The nonce is
// committed on its own, so a request is never replayable even when the
// operation it authorizes fails.
func (n *Node) Authenticate(ctx context.Context, account [20]byte, method string, args []string, nonce uint64, sig []byte) (auth.Caller, error) {
	const op = "authenticate"
	signer, err := auth.Verify(account, method, args, nonce, sig)
	if err != nil {
		return nil, authorizationError(method, err)
	}
	err = n.mutate(ctx, op, func(s *session) error {
		if err := auth.ConsumeNonce(s.manager, account, nonce); err != nil {
			if errors.Is(err, auth.ErrStaleNonce) {
				return authorizationError(method, err)
			}
			return internalError(method, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signer, nil
}

// LastNonce returns the highest request nonce account has used.
func (n *Node) LastNonce(account [20]byte) (uint64, error) {
	var last uint64
	err := n.snapshot("nonce", func(s *session) error {
		var err error
		last, err = auth.LastNonce(s.manager, account)
		return err
	})
	return last, err
}

// Balance returns the token balance of account on the local ledger.
func (n *Node) Balance(ctx context.Context, account [20]byte) (*uint256.Int, error) {
	var balance *uint256.Int
	err := n.view(ctx, "ledger_balance", func(s *session) error {
		var err error
		balance, err = s.ledger.Balance(account)
		return err
	})
	return balance, err
}

// Mint credits account on the local ledger. Only operators reach this.
func (n *Node) Mint(ctx context.Context, account [20]byte, value *uint256.Int) (*uint256.Int, error) {
	const op = "ledger_mint"
	var balance *uint256.Int
	err := n.mutate(ctx, op, func(s *session) error {
		var err error
		balance, err = s.ledger.Mint(account, value)
		if errors.Is(err, bank.ErrInvalidValue) {
			return validationError(op, err)
		}
		if err != nil {
			return &vault.OpError{Op: op, Class: vault.ClassInvariant, Err: err}
		}
		return nil
	})
	return balance, err
}

func (n *Node) publishBurned() {
	var burned *uint256.Int
	if err := n.snapshot("getBurned", func(s *session) error {
		var err error
		burned, err = s.engine.Burned()
		return err
	}); err != nil {
		return
	}
	tokens, _ := new(big.Float).Quo(
		new(big.Float).SetInt(burned.ToBig()),
		new(big.Float).SetUint64(vault.TokenFactor),
	).Float64()
	observability.Vault().SetBurned(tokens)
}

func traceOperation(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := otelsetup.Tracer().Start(ctx, "vault."+op)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(vault.ClassOf(err)))
		}
		span.End()
	}
}
