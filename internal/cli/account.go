package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/govalues/decimal"
	"github.com/spf13/cobra"

	"github.com/tinoosan/bankledger/internal/dictionary"
	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/service/registry"
)

// NewAccountCommand groups account management.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Open, list and label accounts",
	}
	cmd.AddCommand(newAccountOpenCommand(rootOpts))
	cmd.AddCommand(newAccountListCommand(rootOpts))
	cmd.AddCommand(newAccountShowCommand(rootOpts))
	cmd.AddCommand(newAccountMetaCommand(rootOpts))
	return cmd
}

type openOptions struct {
	authOptions
	Type           string
	InterestRate   string
	OverdraftLimit string
	Metadata       map[string]string
}

func (o openOptions) request() (registry.OpenRequest, error) {
	kind, ok := dictionary.ParseKind(o.Type)
	if !ok {
		return registry.OpenRequest{}, fmt.Errorf("%w: unknown account type %q", errs.ErrInvalid, o.Type)
	}
	req := registry.OpenRequest{Kind: kind, Metadata: o.Metadata}
	if o.InterestRate != "" {
		d, err := decimal.Parse(o.InterestRate)
		if err != nil {
			return registry.OpenRequest{}, fmt.Errorf("%w: interest rate: %v", errs.ErrInvalid, err)
		}
		req.InterestRate = d
	}
	if o.OverdraftLimit != "" {
		d, err := decimal.Parse(o.OverdraftLimit)
		if err != nil {
			return registry.OpenRequest{}, fmt.Errorf("%w: overdraft limit: %v", errs.ErrInvalid, err)
		}
		req.OverdraftLimit = d
	}
	if len(req.Metadata) == 0 {
		req.Metadata = nil
	}
	return req, nil
}

func newAccountOpenCommand(opts *RootOptions) *cobra.Command {
	o := &openOptions{}
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open an account",
		Example: `  bank account open -u alice --type savings --interest-rate 0.02
  bank account open -u alice --type checking --overdraft-limit 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAs(cmd, &o.authOptions, func(ctx context.Context, s *session, out *OutputFormatter) error {
				req, err := o.request()
				if err != nil {
					return err
				}
				a, err := s.reg.OpenAccount(ctx, o.User, req)
				if err != nil {
					return err
				}
				v := toAccountView(a)
				return out.Success(v, func(w io.Writer) {
					fmt.Fprintf(w, "Opened %s %s\n", v.Type, v.Number)
				})
			})
		},
	}
	addAuthFlags(cmd, &o.authOptions)
	cmd.Flags().StringVarP(&o.Type, "type", "t", "base", "account type (base|savings|checking)")
	cmd.Flags().StringVar(&o.InterestRate, "interest-rate", "", "savings interest rate as a fraction, e.g. 0.02")
	cmd.Flags().StringVar(&o.OverdraftLimit, "overdraft-limit", "", "checking overdraft limit")
	cmd.Flags().StringToStringVar(&o.Metadata, "meta", nil, "metadata key=value pairs")
	return cmd
}

func newAccountListCommand(opts *RootOptions) *cobra.Command {
	a := &authOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your accounts in opening order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAs(cmd, a, func(ctx context.Context, s *session, out *OutputFormatter) error {
				accts, err := s.reg.AccountsFor(ctx, a.User)
				if err != nil {
					return err
				}
				views := make([]accountView, 0, len(accts))
				for _, acct := range accts {
					views = append(views, toAccountView(acct))
				}
				return out.Success(views, func(w io.Writer) {
					if len(views) == 0 {
						fmt.Fprintln(w, "No accounts")
						return
					}
					for _, v := range views {
						writeAccountLine(w, v)
					}
				})
			})
		},
	}
	addAuthFlags(cmd, a)
	return cmd
}

func newAccountShowCommand(opts *RootOptions) *cobra.Command {
	a := &authOptions{}
	cmd := &cobra.Command{
		Use:   "show <number>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAs(cmd, a, func(ctx context.Context, s *session, out *OutputFormatter) error {
				acct, err := s.reg.Account(ctx, a.User, args[0])
				if err != nil {
					return err
				}
				v := toAccountView(acct)
				return out.Success(v, func(w io.Writer) { writeAccountLine(w, v) })
			})
		},
	}
	addAuthFlags(cmd, a)
	return cmd
}

func newAccountMetaCommand(opts *RootOptions) *cobra.Command {
	a := &authOptions{}
	var patch map[string]string
	cmd := &cobra.Command{
		Use:   "meta <number>",
		Short: "Merge metadata into an account; an empty value removes the key",
		Example: `  bank account meta 000002 -u alice --set nickname="rainy day" --set old=`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runAs(cmd, a, func(ctx context.Context, s *session, out *OutputFormatter) error {
				acct, err := s.reg.UpdateMetadata(ctx, a.User, args[0], patch)
				if err != nil {
					return err
				}
				v := toAccountView(acct)
				return out.Success(v, func(w io.Writer) {
					fmt.Fprintf(w, "Updated %s: %d metadata keys\n", v.Number, len(v.Metadata))
				})
			})
		},
	}
	addAuthFlags(cmd, a)
	cmd.Flags().StringToStringVar(&patch, "set", nil, "key=value pairs to merge")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}
