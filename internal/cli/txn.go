package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/govalues/decimal"
	"github.com/spf13/cobra"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

type moveFunc func(ctx context.Context, s *session, user, number string, amount decimal.Decimal) (ledger.Transaction, error)

// NewDepositCommand creates the deposit command.
func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	return newMoveCommand(rootOpts, "deposit", "Deposit into an account", "Deposited",
		func(ctx context.Context, s *session, user, number string, amount decimal.Decimal) (ledger.Transaction, error) {
			return s.reg.Deposit(ctx, user, number, amount)
		})
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	return newMoveCommand(rootOpts, "withdraw", "Withdraw from an account", "Withdrew",
		func(ctx context.Context, s *session, user, number string, amount decimal.Decimal) (ledger.Transaction, error) {
			return s.reg.Withdraw(ctx, user, number, amount)
		})
}

func newMoveCommand(opts *RootOptions, use, short, verb string, move moveFunc) *cobra.Command {
	a := &authOptions{}
	cmd := &cobra.Command{
		Use:   use + " <number> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAs(cmd, a, func(ctx context.Context, s *session, out *OutputFormatter) error {
				amount, err := decimal.Parse(args[1])
				if err != nil {
					return fmt.Errorf("%w: %q is not a number", errs.ErrInvalidAmount, args[1])
				}
				tx, err := move(ctx, s, a.User, args[0], amount)
				if err != nil {
					return err
				}
				v := toTxView(tx)
				return out.Success(v, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s; balance %s\n", verb, v.Amount, v.BalanceAfter)
				})
			})
		},
	}
	addAuthFlags(cmd, a)
	return cmd
}

// NewInterestCommand creates the interest command.
func NewInterestCommand(opts *RootOptions) *cobra.Command {
	a := &authOptions{}
	cmd := &cobra.Command{
		Use:   "interest <number>",
		Short: "Apply interest to a savings account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAs(cmd, a, func(ctx context.Context, s *session, out *OutputFormatter) error {
				tx, err := s.reg.ApplyInterest(ctx, a.User, args[0])
				if err != nil {
					return err
				}
				v := toTxView(tx)
				return out.Success(v, func(w io.Writer) {
					fmt.Fprintf(w, "Interest %s; balance %s\n", v.Amount, v.BalanceAfter)
				})
			})
		},
	}
	addAuthFlags(cmd, a)
	return cmd
}

// NewStatementCommand creates the statement command.
func NewStatementCommand(opts *RootOptions) *cobra.Command {
	a := &authOptions{}
	cmd := &cobra.Command{
		Use:   "statement <number>",
		Short: "Print an account's transaction history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAs(cmd, a, func(ctx context.Context, s *session, out *OutputFormatter) error {
				acct, err := s.reg.Account(ctx, a.User, args[0])
				if err != nil {
					return err
				}
				v := toStatementView(acct)
				return out.Success(v, func(w io.Writer) { writeStatement(w, v) })
			})
		},
	}
	addAuthFlags(cmd, a)
	return cmd
}
