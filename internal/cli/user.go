package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewUserCommand groups user management.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Register and check users",
	}
	cmd.AddCommand(newUserRegisterCommand(rootOpts))
	cmd.AddCommand(newUserLoginCommand(rootOpts))
	return cmd
}

func newUserRegisterCommand(opts *RootOptions) *cobra.Command {
	a := &authOptions{}
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a new user",
		Example: `  bank user register alice --password s3cret
  BANK_PASSWORD=s3cret bank user register alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				pw := opts.password(a)
				if pw == "" {
					return errors.New("a password is required (--password or $BANK_PASSWORD)")
				}
				u, err := s.reg.RegisterUser(ctx, args[0], pw)
				if err != nil {
					return err
				}
				return out.Success(toUserView(u), func(w io.Writer) {
					fmt.Fprintf(w, "Registered user %s\n", u.Username)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&a.Password, "password", "p", "", "password (default $BANK_PASSWORD)")
	return cmd
}

func newUserLoginCommand(opts *RootOptions) *cobra.Command {
	a := &authOptions{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check a username and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				u, err := s.reg.Authenticate(ctx, a.User, opts.password(a))
				if err != nil {
					return err
				}
				return out.Success(toUserView(u), func(w io.Writer) {
					fmt.Fprintf(w, "Authenticated as %s (%d accounts)\n", u.Username, len(u.Accounts))
				})
			})
		},
	}
	addAuthFlags(cmd, a)
	return cmd
}
