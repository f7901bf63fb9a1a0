package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// authOptions are the credentials every account command authenticates with.
type authOptions struct {
	User     string
	Password string
}

func addAuthFlags(cmd *cobra.Command, a *authOptions) {
	cmd.Flags().StringVarP(&a.User, "user", "u", "", "username")
	cmd.Flags().StringVarP(&a.Password, "password", "p", "", "password (default $BANK_PASSWORD)")
	_ = cmd.MarkFlagRequired("user")
}

func (o *RootOptions) password(a *authOptions) string {
	if a.Password != "" {
		return a.Password
	}
	return o.getenv("BANK_PASSWORD")
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// run opens a session, hands it to fn and closes it afterwards.
func (o *RootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, s *session, out *OutputFormatter) error) error {
	out := o.formatter(cmd)
	ctx := cmd.Context()
	s, err := o.openSession(ctx, cmd.ErrOrStderr())
	if err != nil {
		return out.Fail(err)
	}
	defer s.Close()
	if err := fn(ctx, s, out); err != nil {
		return out.Fail(err)
	}
	return nil
}

// runAs is run preceded by authenticating a.
func (o *RootOptions) runAs(cmd *cobra.Command, a *authOptions, fn func(ctx context.Context, s *session, out *OutputFormatter) error) error {
	return o.run(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
		if _, err := s.reg.Authenticate(ctx, a.User, o.password(a)); err != nil {
			return err
		}
		return fn(ctx, s, out)
	})
}
