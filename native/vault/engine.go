package vault

import (
	"context"
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"ontlock/core/events"
	"ontlock/core/keyspace"
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVGetRaw(key []byte) ([]byte, bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVIterate(prefix []byte, fn func(key, value []byte) error) error
}

// Caller answers whether the party invoking an operation controls account.
type Caller interface {
	IsController(account [20]byte) bool
}

// Transferer moves value between accounts. A returned error means nothing
// moved.
type Transferer interface {
	Transfer(ctx context.Context, from, to [20]byte, value *uint256.Int) error
}

// HeightSource reports the current ledger height. Heights never decrease.
type HeightSource interface {
	CurrentHeight(ctx context.Context) (uint64, error)
}

// Engine enforces the allowance rules over credential storage, stake positions
// and purchases. Every operation computes its new values first, performs the
// external transfer if any, and only then writes state; combined with a staged
// state backend this makes each call all-or-nothing.
type Engine struct {
	params   Params
	state    engineState
	transfer Transferer
	height   HeightSource
	emitter  events.Emitter
}

// NewEngine creates a vault engine with a no-op emitter. Callers wire the
// collaborators via the setters.
func NewEngine(params Params) *Engine {
	return &Engine{params: params, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferer configures the token transfer primitive.
func (e *Engine) SetTransferer(t Transferer) { e.transfer = t }

// SetHeightSource configures the ledger height clock.
func (e *Engine) SetHeightSource(h HeightSource) { e.height = h }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Params returns the engine configuration.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) authorize(op string, caller Caller, account [20]byte) error {
	if caller == nil || !caller.IsController(account) {
		return fail(op, ClassAuthorization, ErrUnauthorized)
	}
	return nil
}

func (e *Engine) checkField(op, name, value string) error {
	if len(value) > e.params.MaxFieldBytes {
		return fail(op, ClassValidation, fmt.Errorf("%w: %s has %d bytes (max %d)", ErrFieldTooLong, name, len(value), e.params.MaxFieldBytes))
	}
	return nil
}

func (e *Engine) currentHeight(ctx context.Context, op string) (uint64, error) {
	if e.height == nil {
		return 0, fail(op, ClassInternal, errNilHeight)
	}
	h, err := e.height.CurrentHeight(ctx)
	if err != nil {
		return 0, fail(op, ClassCollaborator, fmt.Errorf("read height: %w", err))
	}
	return h, nil
}

func (e *Engine) moveValue(ctx context.Context, op string, from, to [20]byte, value *uint256.Int) error {
	if e.transfer == nil {
		return fail(op, ClassInternal, errNilTransfer)
	}
	if err := e.transfer.Transfer(ctx, from, to, value); err != nil {
		return fail(op, ClassCollaborator, fmt.Errorf("%w: %w", ErrTransferFailed, err))
	}
	return nil
}

func (e *Engine) loadUint(key []byte) (uint64, bool, error) {
	var v uint64
	ok, err := e.state.KVGet(key, &v)
	if err != nil {
		return 0, false, err
	}
	return v, ok, nil
}

func (e *Engine) accountUint(ns keyspace.Namespace, account [20]byte) (uint64, error) {
	key, err := keyspace.AccountKey(ns, account[:])
	if err != nil {
		return 0, err
	}
	v, _, err := e.loadUint(key)
	return v, err
}

func checkedAdd(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}
