package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"yzyvault/crypto"
)

func runTokenCommand(g globals, args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "Usage: vaultctl token <info|balance|allowance|transfer|approve|set|pause|unpause|exempt> <token> [args]")
		return 1
	}
	tokenAddr, err := parseAddress(args[1])
	if err != nil {
		return fail(stderr, err)
	}
	client, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()
	rest := args[2:]

	switch args[0] {
	case "info":
		tok, err := client.Token(ctx, tokenAddr)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "%s (%s) %s\n", tok.Symbol, tok.Name, tok.Address)
		fmt.Fprintf(stdout, "  Decimals:     %d\n", tok.Decimals)
		fmt.Fprintf(stdout, "  Total supply: %s\n", g.formatAPIAmount(tok.TotalSupply))
		fmt.Fprintf(stdout, "  Transfer fee: %d bps -> %s\n", tok.TransferFee, tok.Vault)
		fmt.Fprintf(stdout, "  Paused:       %t\n", tok.Paused)
		fmt.Fprintf(stdout, "  Governance:   %s\n", tok.Governance)
		if len(tok.Exempt) > 0 {
			fmt.Fprintf(stdout, "  Exempt:       %s\n", strings.Join(tok.Exempt, ", "))
		}
		return 0
	case "balance":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "Usage: vaultctl token balance <token> <addr>")
			return 1
		}
		holder, err := parseAddress(rest[0])
		if err != nil {
			return fail(stderr, err)
		}
		balance, err := client.Balance(ctx, tokenAddr, holder)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintln(stdout, g.formatAmount(balance))
		return 0
	case "allowance":
		if len(rest) != 2 {
			fmt.Fprintln(stderr, "Usage: vaultctl token allowance <token> <owner> <spender>")
			return 1
		}
		owner, err := parseAddress(rest[0])
		if err != nil {
			return fail(stderr, err)
		}
		spender, err := parseAddress(rest[1])
		if err != nil {
			return fail(stderr, err)
		}
		allowance, err := client.Allowance(ctx, tokenAddr, owner, spender)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintln(stdout, g.formatAmount(allowance))
		return 0
	case "transfer", "approve":
		if len(rest) != 2 {
			fmt.Fprintf(stderr, "Usage: vaultctl token %s <token> <addr> <amount>\n", args[0])
			return 1
		}
		counterparty, err := parseAddress(rest[0])
		if err != nil {
			return fail(stderr, err)
		}
		amount, err := g.parseAmount(rest[1])
		if err != nil {
			return fail(stderr, err)
		}
		if args[0] == "transfer" {
			err = client.Transfer(ctx, tokenAddr, counterparty, amount)
		} else {
			err = client.Approve(ctx, tokenAddr, counterparty, amount)
		}
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "%s %s to %s: ok\n", args[0], g.formatAmount(amount), counterparty.Hex())
		return 0
	case "set":
		if len(rest) != 2 {
			fmt.Fprintln(stderr, "Usage: vaultctl token set <token> <transfer-fee|owner|vault> <value>")
			return 1
		}
		if err := client.SetTokenParam(ctx, tokenAddr, rest[0], rest[1]); err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "%s = %s\n", rest[0], rest[1])
		return 0
	case "pause", "unpause":
		if err := client.SetPaused(ctx, tokenAddr, args[0] == "pause"); err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "%s %s: ok\n", args[0], tokenAddr.Hex())
		return 0
	case "exempt":
		if len(rest) != 2 {
			fmt.Fprintln(stderr, "Usage: vaultctl token exempt <token> <holder> <true|false>")
			return 1
		}
		var holder crypto.Address
		if holder, err = parseAddress(rest[0]); err != nil {
			return fail(stderr, err)
		}
		exempt, err := strconv.ParseBool(rest[1])
		if err != nil {
			return fail(stderr, fmt.Errorf("exempt must be true or false"))
		}
		if err := client.SetFeeExempt(ctx, tokenAddr, holder, exempt); err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "exempt %s = %t\n", holder.Hex(), exempt)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown token command %q\n", args[0])
		return 1
	}
}
