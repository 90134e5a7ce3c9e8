// Command cli drives the chipload API from a terminal.
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

	"github.com/amirasaad/chipload/pkg/poller"
	"github.com/fatih/color"
	"golang.org/x/term"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  me                                        show the current user and balance
  destinations                              list bank accounts to transfer deposits to
  list                                      list your transactions
  deposit <amount>                          request a chip load
  withdraw [-cvu X] [-alias Y] [-bank Z] <amount>
                                            request a cash out
  settle <id> completed|rejected            decide a pending transaction (agents)
  verify [-wait] [-timeout 2m] <id>         check the payment gateway for a deposit

Environment:
  CHIPLOAD_URL    API base URL (default http://localhost:3000)
  CHIPLOAD_TOKEN  bearer token; prompted for when unset`

var (
	ok   = color.New(color.FgGreen, color.Bold)
	warn = color.New(color.FgYellow)
	fail = color.New(color.FgRed, color.Bold)
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

func run(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	baseURL := getenv("CHIPLOAD_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	token := getenv("CHIPLOAD_TOKEN")
	if token == "" && args[0] != "destinations" {
		var err error
		if token, err = promptToken(stderr); err != nil {
			fail.Fprintln(stderr, "No token:", err)
			return 1
		}
	}
	c := newClient(baseURL, token)

	if err := dispatch(c, args[0], args[1:], stdout); err != nil {
		var flagErr flagError
		if errors.As(err, &flagErr) {
			fmt.Fprintln(stderr, err)
			fmt.Fprintln(stderr, usage)
			return 2
		}
		fail.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

type flagError string

func (e flagError) Error() string { return string(e) }

func dispatch(c *client, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "me":
		me, err := c.me()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%s) balance: ", me.Username, me.Role)
		ok.Fprintln(out, me.Balance)
	case "destinations":
		list, err := c.destinations()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			warn.Fprintln(out, "No active destinations")
		}
		for _, d := range list {
			fmt.Fprintf(out, "%-20s alias=%-20s cbu=%s\n", d.BankName, d.Alias, d.CBU)
		}
	case "list":
		list, err := c.transactions()
		if err != nil {
			return err
		}
		for _, t := range list {
			printTransaction(out, &t)
		}
	case "deposit":
		if len(args) != 1 {
			return flagError("deposit takes exactly one amount")
		}
		txn, err := c.createTransaction("deposit", args[0], "", "", "")
		if err != nil {
			return err
		}
		printTransaction(out, txn)
		if txn.ExpectedAmount != nil {
			warn.Fprintf(out, "Transfer exactly %s so the payment is matched automatically\n", *txn.ExpectedAmount)
		}
	case "withdraw":
		fs := flag.NewFlagSet("withdraw", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		cvu := fs.String("cvu", "", "destination CVU/CBU")
		alias := fs.String("alias", "", "destination alias")
		bank := fs.String("bank", "", "destination bank")
		if err := fs.Parse(args); err != nil {
			return flagError(err.Error())
		}
		if fs.NArg() != 1 {
			return flagError("withdraw takes exactly one amount")
		}
		txn, err := c.createTransaction("withdraw", fs.Arg(0), *cvu, *alias, *bank)
		if err != nil {
			return err
		}
		printTransaction(out, txn)
	case "settle":
		if len(args) != 2 {
			return flagError("settle takes an id and a decision")
		}
		txn, err := c.settle(args[0], args[1])
		if err != nil {
			return err
		}
		printTransaction(out, txn)
	case "verify":
		fs := flag.NewFlagSet("verify", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		wait := fs.Bool("wait", false, "keep polling until the payment is found")
		timeout := fs.Duration("timeout", 2*time.Minute, "how long to wait")
		if err := fs.Parse(args); err != nil {
			return flagError(err.Error())
		}
		if fs.NArg() != 1 {
			return flagError("verify takes exactly one id")
		}
		cfg := poller.DefaultConfig()
		cfg.MaxElapsed = *timeout
		return verify(context.Background(), c, fs.Arg(0), *wait, cfg, out)
	default:
		return flagError("unknown command: " + cmd)
	}
	return nil
}

// verify asks the server to check the gateway. With wait set it keeps asking
// until the deposit completes, needs a human, or the timeout passes.
func verify(ctx context.Context, c *client, id string, wait bool, cfg poller.Config, out io.Writer) error {
	var last *verifyView
	check := func(context.Context) (bool, error) {
		v, err := c.verify(id)
		if err != nil {
			return false, err
		}
		last = v
		return !wait || v.Status != "PENDING" || v.ManualVerificationRequired, nil
	}
	cfg.Retryable = func(err error) bool {
		var apiErr *apiError
		return errors.As(err, &apiErr) && apiErr.Transient()
	}
	cfg.OnAttempt = func(attempt int, next time.Duration, err error) {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			warn.Fprintf(out, "attempt %d: %v, retrying in %s\n", attempt, apiErr, next.Round(time.Second))
			return
		}
		fmt.Fprintf(out, "still pending, checking again in %s\n", next.Round(time.Second))
	}

	err := poller.Poll(ctx, cfg, check)
	if errors.Is(err, poller.ErrTimeout) {
		warn.Fprintln(out, "Payment not found yet, try again later")
		return nil
	}
	if err != nil {
		return err
	}
	switch {
	case last.ManualVerificationRequired:
		warn.Fprintln(out, "This agent verifies payments by hand, wait for their approval")
	case last.Status == "COMPLETED":
		ok.Fprintf(out, "COMPLETED")
		if last.PaymentID != "" {
			fmt.Fprintf(out, " (payment %s)", last.PaymentID)
		}
		if last.AlreadyProcessed {
			fmt.Fprint(out, ", already verified")
		}
		fmt.Fprintln(out)
	default:
		fmt.Fprintln(out, last.Status)
	}
	return nil
}

func printTransaction(out io.Writer, t *transactionView) {
	status := warn
	switch t.Status {
	case "COMPLETED":
		status = ok
	case "REJECTED":
		status = fail
	}
	fmt.Fprintf(out, "%s %-8s %10s  ", t.ID, t.Type, t.Amount)
	status.Fprint(out, t.Status)
	if t.OperationCode != "" {
		fmt.Fprintf(out, "  %s", t.OperationCode)
	}
	fmt.Fprintln(out)
}

func promptToken(stderr io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("set CHIPLOAD_TOKEN or run in a terminal")
	}
	fmt.Fprint(stderr, "Token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}
