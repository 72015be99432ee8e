package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"yzyvault/services/vaultd/api"
)

func runVaultCommand(g globals, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: vaultctl vault <summary|epoch|epochs|account|reward|stake|unstake|claim|deposit-fee|set> [args]")
		return 1
	}
	client, err := g.client()
	if err != nil {
		return fail(stderr, err)
	}
	ctx, cancel := withTimeout()
	defer cancel()

	switch args[0] {
	case "summary":
		summary, err := client.Summary(ctx)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "Governance:         %s\n", summary.Governance)
		fmt.Fprintf(stdout, "Vault address:      %s\n", summary.VaultAddress)
		fmt.Fprintf(stdout, "Stakeable token:    %s\n", summary.UniswapV2Pair)
		fmt.Fprintf(stdout, "Fee-source token:   %s\n", summary.YzyAddress)
		fmt.Fprintf(stdout, "Dev fee:            %d bps -> %s\n", summary.DevFee, summary.DevFeeReceiver)
		fmt.Fprintf(stdout, "Reward period:      %ds\n", summary.RewardPeriod)
		fmt.Fprintf(stdout, "Started:            %s\n", formatTimestamp(summary.ContractStartTime))
		fmt.Fprintf(stdout, "Current epoch:      %d\n", summary.CurrentEpoch)
		fmt.Fprintf(stdout, "Total staked:       %s\n", g.formatAPIAmount(summary.TotalStaked))
		fmt.Fprintf(stdout, "Fees deposited:     %s\n", g.formatAPIAmount(summary.TotalDeposited))
		fmt.Fprintf(stdout, "Rewards paid:       %s\n", g.formatAPIAmount(summary.TotalPaid))
		fmt.Fprintf(stdout, "Dev paid:           %s\n", g.formatAPIAmount(summary.TotalDevPaid))
		fmt.Fprintf(stdout, "Undistributed:      %s\n", g.formatAPIAmount(summary.Undistributed))
		return 0
	case "epoch":
		fs := flag.NewFlagSet("vault epoch", flag.ContinueOnError)
		fs.SetOutput(stderr)
		at := fs.Uint64("at", 0, "unix timestamp to resolve instead of an epoch number")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		var epoch *api.Epoch
		switch {
		case *at > 0:
			epoch, err = client.EpochAt(ctx, *at)
		case fs.NArg() == 1:
			n, perr := strconv.ParseUint(fs.Arg(0), 10, 64)
			if perr != nil {
				return fail(stderr, fmt.Errorf("invalid epoch %q", fs.Arg(0)))
			}
			epoch, err = client.Epoch(ctx, n)
		default:
			fmt.Fprintln(stderr, "Usage: vaultctl vault epoch <epoch> | --at <unix>")
			return 1
		}
		if err != nil {
			return fail(stderr, err)
		}
		printEpoch(g, stdout, *epoch)
		return 0
	case "epochs":
		if len(args) != 3 {
			fmt.Fprintln(stderr, "Usage: vaultctl vault epochs <from> <to>")
			return 1
		}
		from, err1 := strconv.ParseUint(args[1], 10, 64)
		to, err2 := strconv.ParseUint(args[2], 10, 64)
		if err1 != nil || err2 != nil {
			return fail(stderr, fmt.Errorf("epoch bounds must be unsigned integers"))
		}
		epochs, err := client.Epochs(ctx, from, to)
		if err != nil {
			return fail(stderr, err)
		}
		for _, epoch := range epochs {
			printEpoch(g, stdout, epoch)
		}
		return 0
	case "account":
		if len(args) != 2 {
			fmt.Fprintln(stderr, "Usage: vaultctl vault account <addr>")
			return 1
		}
		addr, err := parseAddress(args[1])
		if err != nil {
			return fail(stderr, err)
		}
		account, err := client.Account(ctx, addr)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "Account %s\n", account.Address)
		fmt.Fprintf(stdout, "  Staked:        %s\n", g.formatAPIAmount(account.TotalStaked))
		if account.StartedTime > 0 {
			fmt.Fprintf(stdout, "  Started:       %s\n", formatTimestamp(account.StartedTime))
		} else {
			fmt.Fprintln(stdout, "  Started:       never")
		}
		fmt.Fprintf(stdout, "  Settled epoch: %d\n", account.SettledEpoch)
		fmt.Fprintf(stdout, "  Claimable:     %s\n", g.formatAPIAmount(account.Reward))
		fmt.Fprintf(stdout, "  Claimed:       %s\n", g.formatAPIAmount(account.Claimed))
		return 0
	case "reward":
		if len(args) != 2 {
			fmt.Fprintln(stderr, "Usage: vaultctl vault reward <addr>")
			return 1
		}
		addr, err := parseAddress(args[1])
		if err != nil {
			return fail(stderr, err)
		}
		reward, err := client.Reward(ctx, addr)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintln(stdout, g.formatAmount(reward))
		return 0
	case "stake", "unstake", "deposit-fee":
		if len(args) != 2 {
			fmt.Fprintf(stderr, "Usage: vaultctl vault %s <amount>\n", args[0])
			return 1
		}
		amount, err := g.parseAmount(args[1])
		if err != nil {
			return fail(stderr, err)
		}
		switch args[0] {
		case "stake":
			err = client.Stake(ctx, amount)
		case "unstake":
			err = client.Unstake(ctx, amount)
		default:
			err = client.DepositFee(ctx, amount)
		}
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "%s %s: ok\n", args[0], g.formatAmount(amount))
		return 0
	case "claim":
		paid, err := client.Claim(ctx)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "claimed %s\n", g.formatAmount(paid))
		return 0
	case "set":
		if len(args) != 3 {
			fmt.Fprintln(stderr, "Usage: vaultctl vault set <param> <value>")
			return 1
		}
		if err := client.SetVaultParam(ctx, args[1], args[2]); err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stdout, "%s = %s\n", args[1], args[2])
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown vault command %q\n", args[0])
		return 1
	}
}

func printEpoch(g globals, w io.Writer, epoch api.Epoch) {
	state := "not materialised"
	if epoch.Materialised {
		state = "materialised"
	}
	fmt.Fprintf(w, "epoch %d  start %s  period %ds  reward %s  staked %s  (%s)\n",
		epoch.Epoch, formatTimestamp(epoch.StartTime), epoch.Period,
		g.formatAPIAmount(epoch.Reward), g.formatAPIAmount(epoch.TotalStaked), state)
}
