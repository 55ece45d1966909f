package core

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"ontlock/core/auth"
	"ontlock/core/clock"
	"ontlock/core/events"
	"ontlock/crypto"
	"ontlock/native/bank"
	"ontlock/native/vault"
	"ontlock/storage"
)

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) { r.types = append(r.types, evt.EventType()) }

type testNode struct {
	node    *Node
	height  *clock.Manual
	emitter *recordingEmitter
	key     *crypto.PrivateKey
	account [20]byte
	addr    string
	nonce   uint64
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()
	height := clock.NewManual(1_000)
	node, err := NewNode(storage.NewMemDB(), vault.DefaultParams(), height)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	t.Cleanup(func() { node.Close() })
	emitter := &recordingEmitter{}
	node.SetEmitter(emitter)
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	addr := key.PubKey().Address()
	return &testNode{node: node, height: height, emitter: emitter, key: key, account: addr.Array(), addr: addr.String()}
}

// call signs op with the test key and dispatches it.
func (tn *testNode) call(t *testing.T, op string, args ...string) (interface{}, error) {
	t.Helper()
	if args == nil {
		args = []string{}
	}
	var caller auth.Caller = auth.Anonymous{}
	if IsMutation(op) {
		tn.nonce++
		sig, err := auth.Sign(tn.key, op, args, tn.nonce)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		caller, err = tn.node.Authenticate(context.Background(), tn.account, op, args, tn.nonce, sig)
		if err != nil {
			t.Fatalf("authenticate: %v", err)
		}
	}
	return tn.node.Dispatch(context.Background(), caller, op, args)
}

func (tn *testNode) fund(t *testing.T, tokens uint64) {
	t.Helper()
	if _, err := tn.node.Mint(context.Background(), tn.account, vault.TokenValue(tokens, 1)); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func TestDispatchRejectsUnknownAndArity(t *testing.T) {
	tn := newTestNode(t)
	_, err := tn.node.Dispatch(context.Background(), nil, "transferOwnership", nil)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected unknown operation, got %v", err)
	}
	_, err = tn.node.Dispatch(context.Background(), nil, "put", []string{tn.addr, "site"})
	if !errors.Is(err, ErrArity) || vault.ClassOf(err) != vault.ClassValidation {
		t.Fatalf("expected arity validation error, got %v", err)
	}
	_, err = tn.node.Dispatch(context.Background(), nil, "getBurned", []string{"extra"})
	if !errors.Is(err, ErrArity) {
		t.Fatalf("expected arity error for getBurned, got %v", err)
	}
	_, err = tn.node.Dispatch(context.Background(), nil, "getAllowance", []string{"olk1notvalid"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid account, got %v", err)
	}
}

func TestDispatchAnonymousCannotMutate(t *testing.T) {
	tn := newTestNode(t)
	_, err := tn.node.Dispatch(context.Background(), nil, "put", []string{tn.addr, "site", "u", "p"})
	if !errors.Is(err, vault.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCredentialFlowThroughDispatch(t *testing.T) {
	tn := newTestNode(t)
	for _, site := range []string{"a", "b", "c", "d", "e"} {
		if _, err := tn.call(t, "put", tn.addr, site, "user-"+site, "pw"); err != nil {
			t.Fatalf("put %s: %v", site, err)
		}
	}
	if _, err := tn.call(t, "put", tn.addr, "f", "u", "p"); !errors.Is(err, vault.ErrAllowanceExceeded) {
		t.Fatalf("expected allowance exceeded, got %v", err)
	}

	got, err := tn.call(t, "get", tn.addr, "c")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	entry, err := vault.DecodeEntry(got.(hexutil.Bytes))
	if err != nil || entry.Username != "user-c" {
		t.Fatalf("unexpected entry %+v (%v)", entry, err)
	}
	missing, _ := tn.call(t, "get", tn.addr, "zzz")
	if len(missing.(hexutil.Bytes)) != 0 {
		t.Fatalf("expected empty sentinel for missing entry")
	}

	all, err := tn.call(t, "getAll", tn.addr)
	if err != nil {
		t.Fatalf("getAll: %v", err)
	}
	records, err := vault.DecodeMapping(all.(hexutil.Bytes))
	if err != nil || len(records) != 5 {
		t.Fatalf("expected 5 records, got %d (%v)", len(records), err)
	}

	if _, err := tn.call(t, "delete", tn.addr, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	count, _ := tn.call(t, "getStoredCount", tn.addr)
	if count.(uint64) != 4 {
		t.Fatalf("expected 4 stored, got %v", count)
	}
	if _, err := tn.call(t, "put", tn.addr, "f", "u", "p"); err != nil {
		t.Fatalf("put after delete: %v", err)
	}

	stored := 0
	for _, typ := range tn.emitter.types {
		if typ == events.TypeCredentialStored {
			stored++
		}
	}
	if stored != 6 {
		t.Fatalf("expected 6 committed store events, got %d", stored)
	}
}

func TestStakeNeedsFundsAndRollsBack(t *testing.T) {
	tn := newTestNode(t)
	_, err := tn.call(t, "stake", tn.addr, "1")
	if !errors.Is(err, vault.ErrTransferFailed) || !errors.Is(err, bank.ErrInsufficientBalance) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	if vault.ClassOf(err) != vault.ClassCollaborator {
		t.Fatalf("expected collaborator class, got %s", vault.ClassOf(err))
	}
	stake, _ := tn.call(t, "getCurrentStake", tn.addr)
	if stake.(uint64) != 0 {
		t.Fatalf("failed stake left position %v", stake)
	}
	if len(tn.emitter.types) != 0 {
		t.Fatalf("failed operation emitted %v", tn.emitter.types)
	}

	tn.fund(t, 100)
	if _, err := tn.call(t, "stake", tn.addr, "1"); err != nil {
		t.Fatalf("stake: %v", err)
	}
	allowance, _ := tn.call(t, "getAllowance", tn.addr)
	if allowance.(uint64) != 10 {
		t.Fatalf("expected allowance 10, got %v", allowance)
	}
	balance, _ := tn.node.Balance(context.Background(), tn.account)
	if balance.Cmp(vault.TokenValue(50, 1)) != 0 {
		t.Fatalf("expected 50 tokens left, got %s", balance.Dec())
	}
	staked, _ := tn.call(t, "getTokenStaked", tn.addr)
	alias, _ := tn.call(t, "getLOCKStaked", tn.addr)
	if staked.(string) != vault.TokenValue(1, 50).Dec() || alias != staked {
		t.Fatalf("unexpected token staked %v / %v", staked, alias)
	}

	if _, err := tn.call(t, "unstake", tn.addr, "1"); !errors.Is(err, vault.ErrStakeLocked) {
		t.Fatalf("expected lock, got %v", err)
	}
	unlock, _ := tn.call(t, "getUnlockHeight", tn.addr)
	if unlock.(uint64) != 1_000+vault.DefaultStakeDelay {
		t.Fatalf("unexpected unlock height %v", unlock)
	}
	tn.height.Advance(vault.DefaultStakeDelay)
	if _, err := tn.call(t, "unstake", tn.addr, "1"); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	stake, _ = tn.call(t, "getCurrentStake", tn.addr)
	if stake.(uint64) != 0 {
		t.Fatalf("expected zero stake, got %v", stake)
	}
	balance, _ = tn.node.Balance(context.Background(), tn.account)
	if balance.Cmp(vault.TokenValue(100, 1)) != 0 {
		t.Fatalf("expected full refund, got %s", balance.Dec())
	}
}

func TestBuyBurnsThroughDispatch(t *testing.T) {
	tn := newTestNode(t)
	tn.fund(t, 2_000)
	if _, err := tn.call(t, "buy", tn.addr, "2"); err != nil {
		t.Fatalf("buy: %v", err)
	}
	burned, _ := tn.call(t, "getBurned")
	if burned.(string) != "100000000000" {
		t.Fatalf("expected 2*10^8*500 burned, got %v", burned)
	}
	purchased, _ := tn.call(t, "getPurchased", tn.addr)
	if purchased.(uint64) != 2 {
		t.Fatalf("expected 2 purchased, got %v", purchased)
	}
	allowance, _ := tn.call(t, "getAllowance", tn.addr)
	if allowance.(uint64) != 15 {
		t.Fatalf("expected allowance 15, got %v", allowance)
	}
	if _, err := tn.call(t, "buy", tn.addr, "abc"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestAuthenticateRejectsReplay(t *testing.T) {
	tn := newTestNode(t)
	args := []string{tn.addr, "site", "u", "p"}
	sig, err := auth.Sign(tn.key, "put", args, 1)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := tn.node.Authenticate(context.Background(), tn.account, "put", args, 1, sig); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	_, err = tn.node.Authenticate(context.Background(), tn.account, "put", args, 1, sig)
	if !errors.Is(err, auth.ErrStaleNonce) || vault.ClassOf(err) != vault.ClassAuthorization {
		t.Fatalf("expected stale nonce, got %v", err)
	}
	other := [20]byte{1}
	if _, err := tn.node.Authenticate(context.Background(), other, "put", args, 2, sig); !errors.Is(err, auth.ErrSignatureMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	last, err := tn.node.LastNonce(tn.account)
	if err != nil || last != 1 {
		t.Fatalf("expected last nonce 1, got %d (%v)", last, err)
	}
}

func TestMintValidation(t *testing.T) {
	tn := newTestNode(t)
	if _, err := tn.node.Mint(context.Background(), tn.account, uint256.NewInt(0)); vault.ClassOf(err) != vault.ClassValidation {
		t.Fatalf("expected validation class, got %v", err)
	}
}

func TestClosedNodeFails(t *testing.T) {
	tn := newTestNode(t)
	if err := tn.node.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := tn.node.Dispatch(context.Background(), nil, "getBurned", nil); !errors.Is(err, ErrNodeClosed) {
		t.Fatalf("expected closed node error, got %v", err)
	}
}

func TestOperationsTable(t *testing.T) {
	want := map[string]int{
		"put": 4, "get": 2, "getAll": 1, "delete": 2, "stake": 2, "unstake": 2,
		"getCurrentStake": 1, "getTokenStaked": 1, "getLOCKStaked": 1, "getAllowance": 1,
		"buy": 2, "getBurned": 0, "getStoredCount": 1, "getPurchased": 1, "getUnlockHeight": 1,
	}
	if len(Operations()) != len(want) {
		t.Fatalf("unexpected operation set %v", Operations())
	}
	for op, arity := range want {
		got, ok := Arity(op)
		if !ok || got != arity {
			t.Fatalf("%s: expected arity %d, got %d (%v)", op, arity, got, ok)
		}
	}
}

func operationCount(t *testing.T, op, outcome string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "ontlock_operations_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range m.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["op"] == op && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestReadsAreRecorded(t *testing.T) {
	tn := newTestNode(t)
	allowanceBefore := operationCount(t, "getAllowance", "success")
	balanceBefore := operationCount(t, "ledger_balance", "success")
	failedBefore := operationCount(t, "getStoredCount", "failure")

	if _, err := tn.call(t, "getAllowance", tn.addr); err != nil {
		t.Fatalf("getAllowance: %v", err)
	}
	if _, err := tn.node.Balance(context.Background(), tn.account); err != nil {
		t.Fatalf("balance: %v", err)
	}
	if _, err := tn.call(t, "getStoredCount", "not-an-account"); err == nil {
		t.Fatalf("expected invalid account to fail")
	}

	if got := operationCount(t, "getAllowance", "success"); got != allowanceBefore+1 {
		t.Fatalf("expected getAllowance count %v, got %v", allowanceBefore+1, got)
	}
	if got := operationCount(t, "ledger_balance", "success"); got != balanceBefore+1 {
		t.Fatalf("expected ledger_balance count %v, got %v", balanceBefore+1, got)
	}
	if got := operationCount(t, "getStoredCount", "failure"); got != failedBefore+1 {
		t.Fatalf("expected getStoredCount failure count %v, got %v", failedBefore+1, got)
	}
}
