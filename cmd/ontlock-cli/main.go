package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"ontlock/cmd/internal/passphrase"
	"ontlock/crypto"
	"ontlock/native/vault"
	"ontlock/rpc"
)

const (
	keyPassEnv       = "ONTLOCK_KEY_PASS"
	operatorTokenEnv = "ONTLOCK_OPERATOR_TOKEN"
	rpcURLEnv        = "ONTLOCK_RPC_URL"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cli struct {
	client *rpc.Client
	pass   func() (string, error)
	stdout io.Writer
}

// keystoreCost is the scrypt cost for keys created by generate-key.
var keystoreCost = crypto.StandardScrypt

// queries map a command onto a read-only method taking one account.
var queries = map[string]string{
	"allowance":     "getAllowance",
	"stake-of":      "getCurrentStake",
	"token-staked":  "getTokenStaked",
	"stored":        "getStoredCount",
	"purchased":     "getPurchased",
	"unlock-height": "getUnlockHeight",
}

// amountCommands map a command onto a signed method taking an amount.
var amountCommands = map[string]string{
	"stake":   "stake",
	"unstake": "unstake",
	"buy":     "buy",
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ontlock-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("rpc", defaultEndpoint(), "JSON-RPC endpoint")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}

	c := &cli{
		client: rpc.NewClient(*endpoint),
		pass:   passphrase.NewSource(keyPassEnv, "account keystore").Get,
		stdout: stdout,
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := c.dispatch(ctx, rest[0], rest[1:]); err != nil {
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) {
			fmt.Fprintf(stderr, "Error: %s (code %d)\n", rpcErr.Message, rpcErr.Code)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) error {
	if method, ok := queries[command]; ok {
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <account>", command)
		}
		var out interface{}
		if err := c.client.Call(ctx, method, args, &out); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, out)
		return nil
	}
	if method, ok := amountCommands[command]; ok {
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <keystore> <amount>", command)
		}
		return c.signed(ctx, args[0], method, args[1])
	}

	switch command {
	case "generate-key":
		if len(args) != 1 {
			return errors.New("usage: generate-key <keystore>")
		}
		return c.generateKey(args[0])
	case "address":
		if len(args) != 1 {
			return errors.New("usage: address <keystore>")
		}
		key, err := c.loadKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, key.PubKey().Address().String())
		return nil
	case "put":
		if len(args) != 4 {
			return errors.New("usage: put <keystore> <website> <username> <password>")
		}
		return c.signed(ctx, args[0], "put", args[1], args[2], args[3])
	case "delete":
		if len(args) != 2 {
			return errors.New("usage: delete <keystore> <website>")
		}
		return c.signed(ctx, args[0], "delete", args[1])
	case "get":
		if len(args) != 2 {
			return errors.New("usage: get <account> <website>")
		}
		var raw hexutil.Bytes
		if err := c.client.Call(ctx, "get", args, &raw); err != nil {
			return err
		}
		entry, err := vault.DecodeEntry(raw)
		if errors.Is(err, vault.ErrEntryNotFound) {
			fmt.Fprintln(c.stdout, "not found")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s\t%s\t%s\n", args[1], entry.Username, entry.Password)
		return nil
	case "get-all":
		if len(args) != 1 {
			return errors.New("usage: get-all <account>")
		}
		var raw hexutil.Bytes
		if err := c.client.Call(ctx, "getAll", args, &raw); err != nil {
			return err
		}
		records, err := vault.DecodeMapping(raw)
		if err != nil {
			return err
		}
		for _, rec := range records {
			fmt.Fprintf(c.stdout, "%s\t%s\t%s\n", rec.Website, rec.Username, rec.Password)
		}
		return nil
	case "burned":
		var burned string
		if err := c.client.Call(ctx, "getBurned", nil, &burned); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, burned)
		return nil
	case "balance":
		if len(args) != 1 {
			return errors.New("usage: balance <account>")
		}
		var res rpc.BalanceResult
		if err := c.client.Call(ctx, "ledger_balance", args, &res); err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s\t%s\n", res.Account, res.Balance)
		return nil
	case "mint":
		if len(args) != 2 {
			return errors.New("usage: mint <account> <value>")
		}
		token := strings.TrimSpace(os.Getenv(operatorTokenEnv))
		if token == "" {
			return fmt.Errorf("%s must hold an operator token", operatorTokenEnv)
		}
		var res rpc.MintResult
		if err := c.client.Call(ctx, "ledger_mint", args, &res, rpc.WithBearer(token)); err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s\t%s\n", res.Account, res.Balance)
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// signed sends method for the keystore's account, prepending the account to
// params and using the next unused nonce.
func (c *cli) signed(ctx context.Context, keystore, method string, params ...string) error {
	key, err := c.loadKey(keystore)
	if err != nil {
		return err
	}
	account := key.PubKey().Address().String()
	var state rpc.BalanceResult
	if err := c.client.Call(ctx, "ledger_balance", []string{account}, &state); err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	args := append([]string{account}, params...)
	if err := c.client.Call(ctx, method, args, nil, rpc.WithSigner(key, state.Nonce+1)); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s ok\n", method)
	return nil
}

func (c *cli) loadKey(path string) (*crypto.PrivateKey, error) {
	pass, err := c.pass()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func (c *cli) generateKey(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	pass, err := c.pass()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystoreWithCost(path, key, pass, keystoreCost); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, key.PubKey().Address().String())
	return nil
}

func defaultEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(rpcURLEnv)); v != "" {
		return v
	}
	return "http://127.0.0.1:8645/rpc"
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: ontlock-cli [--rpc URL] <command> [args]

Keys:
  generate-key <keystore>
  address <keystore>

Credentials:
  put <keystore> <website> <username> <password>
  delete <keystore> <website>
  get <account> <website>
  get-all <account>

Allowance:
  stake|unstake|buy <keystore> <amount>
  allowance|stake-of|token-staked|stored|purchased|unlock-height <account>
  burned

Ledger:
  balance <account>
  mint <account> <value>        (requires ONTLOCK_OPERATOR_TOKEN)`)
}
