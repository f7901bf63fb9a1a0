package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/govalues/decimal"
	"github.com/spf13/cobra"

	"github.com/tinoosan/bankledger/internal/config"
	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/registry"
	"github.com/tinoosan/bankledger/internal/storage/memory"
)

// NewDemoCommand walks through registration, the three account kinds and
// the rejected operations against a throwaway in-memory store.
func NewDemoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted session against an in-memory bank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			logger := buildLogger(config.LogConfig{Level: "warn"}, opts.Verbose, cmd.ErrOrStderr())
			reg, err := registry.New(memory.New(), registry.Options{Logger: logger})
			if err != nil {
				return out.Fail(err)
			}
			var log io.Writer = cmd.OutOrStdout()
			if opts.Format == "json" {
				log = io.Discard
			}
			views, err := runDemo(cmd.Context(), reg, log)
			if err != nil {
				return out.Fail(err)
			}
			return out.Success(views, func(w io.Writer) {
				for _, v := range views {
					fmt.Fprintln(w)
					writeStatement(w, v)
				}
			})
		},
	}
}

type demoStep struct {
	desc string
	run  func() (ledger.Transaction, error)
	// want is the error the step is expected to fail with, if any.
	want error
}

func runDemo(ctx context.Context, reg *registry.Registry, w io.Writer) ([]statementView, error) {
	const user, pw = "king", "crown"
	if _, err := reg.RegisterUser(ctx, user, pw); err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "registered %s\n", user)
	if _, err := reg.RegisterUser(ctx, user, "again"); err != nil {
		fmt.Fprintf(w, "second registration of %s rejected: %v\n", user, err)
	}
	if _, err := reg.Authenticate(ctx, user, "wrong"); err != nil {
		fmt.Fprintf(w, "login with a wrong password rejected: %v\n", err)
	}
	if _, err := reg.Authenticate(ctx, user, pw); err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "authenticated %s\n", user)

	base, err := reg.OpenAccount(ctx, user, registry.OpenRequest{Kind: ledger.KindBase})
	if err != nil {
		return nil, err
	}
	sav, err := reg.OpenAccount(ctx, user, registry.OpenRequest{Kind: ledger.KindSavings, InterestRate: decimal.MustParse("0.02")})
	if err != nil {
		return nil, err
	}
	chk, err := reg.OpenAccount(ctx, user, registry.OpenRequest{Kind: ledger.KindChecking, OverdraftLimit: decimal.MustParse("500")})
	if err != nil {
		return nil, err
	}

	deposit := func(n, amt string) func() (ledger.Transaction, error) {
		return func() (ledger.Transaction, error) { return reg.Deposit(ctx, user, n, decimal.MustParse(amt)) }
	}
	withdraw := func(n, amt string) func() (ledger.Transaction, error) {
		return func() (ledger.Transaction, error) { return reg.Withdraw(ctx, user, n, decimal.MustParse(amt)) }
	}
	steps := []demoStep{
		{desc: "deposit 1000.00 into savings " + sav.Number, run: deposit(sav.Number, "1000.00")},
		{desc: "apply interest to savings " + sav.Number, run: func() (ledger.Transaction, error) { return reg.ApplyInterest(ctx, user, sav.Number) }},
		{desc: "deposit 500.00 into checking " + chk.Number, run: deposit(chk.Number, "500.00")},
		{desc: "withdraw 200.00 from checking " + chk.Number, run: withdraw(chk.Number, "200.00")},
		{desc: "withdraw 700.00 from checking " + chk.Number, run: withdraw(chk.Number, "700.00"), want: errs.ErrOverdraftExceeded},
		{desc: "withdraw 100.00 from account " + base.Number, run: withdraw(base.Number, "100.00"), want: errs.ErrInsufficientFunds},
		{desc: "deposit 0 into account " + base.Number, run: deposit(base.Number, "0"), want: errs.ErrInvalidAmount},
	}
	for _, st := range steps {
		tx, err := st.run()
		switch {
		case err == nil && st.want == nil:
			fmt.Fprintf(w, "%s: ok, balance %s\n", st.desc, tx.BalanceAfter.Decimal())
		case st.want != nil && errors.Is(err, st.want):
			fmt.Fprintf(w, "%s: rejected (%v)\n", st.desc, err)
		case err != nil:
			return nil, fmt.Errorf("%s: %w", st.desc, err)
		default:
			return nil, fmt.Errorf("%s: expected %v", st.desc, st.want)
		}
	}

	accts, err := reg.AccountsFor(ctx, user)
	if err != nil {
		return nil, err
	}
	views := make([]statementView, 0, len(accts))
	for _, a := range accts {
		views = append(views, toStatementView(a))
	}
	return views, nil
}
