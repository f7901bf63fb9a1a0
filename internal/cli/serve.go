package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpapi "github.com/tinoosan/bankledger/internal/httpapi/v1"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr            string
	ShutdownTimeout time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API until interrupted.

Bearer tokens are signed with JWT_HS256_SECRET; without it a random secret
is used and tokens do not survive a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *ServeOptions) error {
	s, err := opts.openSession(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	addr := s.cfg.HTTP.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	api := httpapi.New(s.reg, s.log, httpapi.Options{
		JWTSecret: s.cfg.HTTP.JWTSecret,
		Issuer:    s.cfg.HTTP.JWTIssuer,
		Audience:  s.cfg.HTTP.JWTAudience,
		TokenTTL:  s.cfg.HTTP.TokenTTL,
		Ready:     s.store,
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(api.Handler(), "bank"),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("bank service listening", "addr", srv.Addr, "store", s.cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			s.log.Error("server shutdown error", "err", err)
			return err
		}
		s.log.Info("server stopped")
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		s.log.Error("server error", "err", err)
		return WrapExitError(ExitCommandError, "serve", err)
	}
}
