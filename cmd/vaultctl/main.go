package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"yzyvault/crypto"
	"yzyvault/native/token"
	sdk "yzyvault/sdk/vault"
)

const (
	defaultEndpoint = "http://127.0.0.1:8645"
	endpointEnv     = "YZY_VAULTD_URL"
	tokenEnv        = "YZY_VAULTD_TOKEN"
	requestTimeout  = 30 * time.Second
)

// globals carries the flags accepted before the command name.
type globals struct {
	endpoint string
	token    string
	// raw switches amount parsing and display to base units.
	raw bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	g, args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) == 0 {
		printUsage(stderr)
		return 1
	}
	switch args[0] {
	case "vault":
		return runVaultCommand(g, args[1:], stdout, stderr)
	case "token":
		return runTokenCommand(g, args[1:], stdout, stderr)
	case "events":
		return runEventsCommand(g, args[1:], stdout, stderr)
	case "export":
		return runExportCommand(g, args[1:], stdout, stderr)
	case "auth":
		return runAuthCommand(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func applyGlobalFlags(args []string) (globals, []string, error) {
	g := globals{
		endpoint: strings.TrimSpace(os.Getenv(endpointEnv)),
		token:    strings.TrimSpace(os.Getenv(tokenEnv)),
	}
	if g.endpoint == "" {
		g.endpoint = defaultEndpoint
	}
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--endpoint" || arg == "--token":
			if i+1 >= len(args) {
				return g, nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--endpoint" {
				g.endpoint = args[i+1]
			} else {
				g.token = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--endpoint="):
			g.endpoint = strings.TrimPrefix(arg, "--endpoint=")
		case strings.HasPrefix(arg, "--token="):
			g.token = strings.TrimPrefix(arg, "--token=")
		case arg == "--raw":
			g.raw = true
		default:
			out = append(out, arg)
		}
	}
	return g, out, nil
}

func (g globals) client() (*sdk.Client, error) {
	return sdk.New(g.endpoint, sdk.WithAuthToken(g.token))
}

// parseAmount reads a human readable amount such as "1.5" unless --raw is set.
func (g globals) parseAmount(raw string) (*big.Int, error) {
	if g.raw {
		return token.ParseAmount(raw)
	}
	return token.ParseUnits(raw, token.DefaultDecimals)
}

func (g globals) formatAmount(amount *big.Int) string {
	if g.raw {
		return amount.String()
	}
	return token.FormatUnits(amount, token.DefaultDecimals)
}

// formatAPIAmount renders a base-unit decimal string returned by the API.
func (g globals) formatAPIAmount(raw string) string {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return raw
	}
	return g.formatAmount(amount)
}

func parseAddress(raw string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.ZeroAddress, fmt.Errorf("invalid address %q: %w", raw, err)
	}
	return addr, nil
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func formatTimestamp(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: vaultctl [--endpoint URL] [--token JWT] [--raw] <command> [args]

Commands:
  vault summary
  vault epoch <epoch> | vault epoch --at <unix>
  vault epochs <from> <to>
  vault account <addr>
  vault reward <addr>
  vault stake <amount>
  vault unstake <amount>
  vault claim
  vault deposit-fee <amount>
  vault set <reward-period|dev-fee|dev-fee-receiver|uniswap-v2-pair|yzy-address|governance> <value>
  token info <token>
  token balance <token> <addr>
  token allowance <token> <owner> <spender>
  token transfer <token> <to> <amount>
  token approve <token> <spender> <amount>
  token set <token> <transfer-fee|owner|vault> <value>
  token pause <token> | token unpause <token>
  token exempt <token> <holder> <true|false>
  events [--type T] [--account A] [--after N] [--limit N]
  export [--format parquet|csv|jsonl] [--from N] [--to N] --out FILE
  auth token --sub <addr> [--ttl 1h] [--issuer I] [--audience A] [--secret-env VAR]

Amounts are whole tokens with up to 18 decimals unless --raw is given.
The endpoint and token default to $YZY_VAULTD_URL and $YZY_VAULTD_TOKEN.`)
}
