package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"yzyvault/cmd/internal/secret"
	"yzyvault/services/vaultd/server"
)

const defaultSecretEnv = "YZY_VAULTD_HMAC_SECRET"

func runAuthCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "token" {
		fmt.Fprintln(stderr, "Usage: vaultctl auth token --sub <addr> [--ttl 1h] [--issuer I] [--audience A] [--secret-env VAR]")
		return 1
	}
	fs := flag.NewFlagSet("auth token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sub := fs.String("sub", "", "caller address the token authenticates")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	issuer := fs.String("issuer", "", "iss claim expected by vaultd")
	audience := fs.String("audience", "", "aud claim expected by vaultd")
	secretEnv := fs.String("secret-env", defaultSecretEnv, "environment variable holding the signing secret")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	caller, err := parseAddress(*sub)
	if err != nil {
		return fail(stderr, err)
	}
	if *ttl <= 0 {
		return fail(stderr, fmt.Errorf("ttl must be positive"))
	}
	key, err := secret.NewSource(*secretEnv, "vaultd signing secret").Get()
	if err != nil {
		return fail(stderr, err)
	}
	token, err := server.IssueToken([]byte(key), caller, *issuer, *audience, *ttl, time.Now())
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}
