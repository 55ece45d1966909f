package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"ontlock/core/auth"
	"ontlock/crypto"
)

// Result values returned by Dispatch:
//
//	mutations                          -> true
//	get, getAll                        -> hexutil.Bytes (empty when absent)
//	counts, stake units, allowance     -> uint64
//	getTokenStaked, getBurned          -> decimal string of the base value
//	getUnlockHeight                    -> uint64 (zero when no position)
type operation struct {
	arity   int
	mutates bool
	run     func(ctx context.Context, n *Node, s *session, caller auth.Caller, args []string) (interface{}, error)
}

var operations = map[string]operation{
	"put": {arity: 4, mutates: true, run: func(_ context.Context, _ *Node, s *session, caller auth.Caller, args []string) (interface{}, error) {
		account, err := parseAccount("put", args[0])
		if err != nil {
			return nil, err
		}
		return true, s.engine.Put(caller, account, args[1], args[2], args[3])
	}},
	"get": {arity: 2, run: func(_ context.Context, _ *Node, s *session, _ auth.Caller, args []string) (interface{}, error) {
		account, err := parseAccount("get", args[0])
		if err != nil {
			return nil, err
		}
		data, _, err := s.engine.Get(account, args[1])
		return hexutil.Bytes(data), err
	}},
	"getAll": {arity: 1, run: func(_ context.Context, _ *Node, s *session, _ auth.Caller, args []string) (interface{}, error) {
		account, err := parseAccount("getAll", args[0])
		if err != nil {
			return nil, err
		}
		data, err := s.engine.GetAll(account)
		return hexutil.Bytes(data), err
	}},
	"delete": {arity: 2, mutates: true, run: func(_ context.Context, _ *Node, s *session, caller auth.Caller, args []string) (interface{}, error) {
		account, err := parseAccount("delete", args[0])
		if err != nil {
			return nil, err
		}
		return true, s.engine.Delete(caller, account, args[1])
	}},
	"stake": {arity: 2, mutates: true, run: func(ctx context.Context, _ *Node, s *session, caller auth.Caller, args []string) (interface{}, error) {
		account, units, err := parseAccountAmount("stake", args)
		if err != nil {
			return nil, err
		}
		return true, s.engine.Stake(ctx, caller, account, units)
	}},
	"unstake": {arity: 2, mutates: true, run: func(ctx context.Context, _ *Node, s *session, caller auth.Caller, args []string) (interface{}, error) {
		account, units, err := parseAccountAmount("unstake", args)
		if err != nil {
			return nil, err
		}
		return true, s.engine.Unstake(ctx, caller, account, units)
	}},
	"buy": {arity: 2, mutates: true, run: func(ctx context.Context, _ *Node, s *session, caller auth.Caller, args []string) (interface{}, error) {
		account, units, err := parseAccountAmount("buy", args)
		if err != nil {
			return nil, err
		}
		return true, s.engine.Buy(ctx, caller, account, units)
	}},
	"getCurrentStake": {arity: 1, run: accountQuery("getCurrentStake", func(s *session, account [20]byte) (interface{}, error) {
		return s.engine.CurrentStake(account)
	})},
	"getTokenStaked": {arity: 1, run: accountQuery("getTokenStaked", tokenStaked)},
	"getLOCKStaked":  {arity: 1, run: accountQuery("getLOCKStaked", tokenStaked)},
	"getAllowance": {arity: 1, run: accountQuery("getAllowance", func(s *session, account [20]byte) (interface{}, error) {
		return s.engine.Allowance(account)
	})},
	"getStoredCount": {arity: 1, run: accountQuery("getStoredCount", func(s *session, account [20]byte) (interface{}, error) {
		return s.engine.StoredCount(account)
	})},
	"getPurchased": {arity: 1, run: accountQuery("getPurchased", func(s *session, account [20]byte) (interface{}, error) {
		return s.engine.Purchased(account)
	})},
	"getUnlockHeight": {arity: 1, run: accountQuery("getUnlockHeight", func(s *session, account [20]byte) (interface{}, error) {
		height, _, err := s.engine.UnlockHeight(account)
		return height, err
	})},
	"getBurned": {arity: 0, run: func(_ context.Context, _ *Node, s *session, _ auth.Caller, _ []string) (interface{}, error) {
		burned, err := s.engine.Burned()
		if err != nil {
			return nil, err
		}
		return burned.Dec(), nil
	}},
}

func tokenStaked(s *session, account [20]byte) (interface{}, error) {
	value, err := s.engine.TokenStaked(account)
	if err != nil {
		return nil, err
	}
	return value.Dec(), nil
}

func accountQuery(op string, fn func(*session, [20]byte) (interface{}, error)) func(context.Context, *Node, *session, auth.Caller, []string) (interface{}, error) {
	return func(_ context.Context, _ *Node, s *session, _ auth.Caller, args []string) (interface{}, error) {
		account, err := parseAccount(op, args[0])
		if err != nil {
			return nil, err
		}
		return fn(s, account)
	}
}

// Operations lists every operation name Dispatch accepts.
func Operations() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsMutation reports whether op changes state and therefore needs an
// authenticated caller.
func IsMutation(op string) bool {
	return operations[op].mutates
}

// Arity returns the argument count op expects.
func Arity(op string) (int, bool) {
	o, ok := operations[op]
	return o.arity, ok
}

// Dispatch validates the argument list of op and runs it. Unknown operations
// and wrong argument counts fail before any state is read. A nil caller
// controls no account.
func (n *Node) Dispatch(ctx context.Context, caller auth.Caller, op string, args []string) (interface{}, error) {
	o, ok := operations[op]
	if !ok {
		return nil, validationError(op, fmt.Errorf("%w: %q", ErrUnknownOperation, op))
	}
	if len(args) != o.arity {
		return nil, arityError(op, o.arity, len(args))
	}
	if caller == nil {
		caller = auth.Anonymous{}
	}

	ctx, end := traceOperation(ctx, op)
	var (
		result interface{}
		err    error
	)
	if o.mutates {
		err = n.mutate(ctx, op, func(s *session) error {
			var runErr error
			result, runErr = o.run(ctx, n, s, caller, args)
			return runErr
		})
		if err == nil && op == "buy" {
			n.publishBurned()
		}
	} else {
		err = n.view(ctx, op, func(s *session) error {
			var runErr error
			result, runErr = o.run(ctx, n, s, caller, args)
			return runErr
		})
	}
	end(err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parseAccount(op, value string) ([20]byte, error) {
	account, err := crypto.ParseAccount(value)
	if err != nil {
		return [20]byte{}, validationError(op, fmt.Errorf("%w: account: %v", ErrInvalidArgument, err))
	}
	return account, nil
}

func parseAccountAmount(op string, args []string) ([20]byte, uint64, error) {
	account, err := parseAccount(op, args[0])
	if err != nil {
		return [20]byte{}, 0, err
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(args[1]), 10, 64)
	if err != nil {
		return [20]byte{}, 0, validationError(op, fmt.Errorf("%w: amount %q", ErrInvalidArgument, args[1]))
	}
	return account, amount, nil
}
