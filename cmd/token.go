package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/zoombulk/internal/logging"
)

func newTokenCmd() *cobra.Command {
	var (
		force bool
		show  bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Fetch the cached access token, refreshing it when needed",
		Long: `Fetch an access token for the configured credentials. A valid cached token
is reused; --force exchanges the credentials for a new one. The token itself is
masked unless --show is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd.Context(), cmd.OutOrStdout(), force, show)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ignore the cache and request a new token")
	cmd.Flags().BoolVar(&show, "show", false, "Print the full access token")

	return cmd
}

func runToken(ctx context.Context, out io.Writer, force, show bool) error {
	a, err := newApp(ctx, cfg, logger, appOptions{api: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown failed", logging.Err(err))
		}
	}()

	tok, err := a.tokens.AccessToken(ctx, force)
	if err != nil {
		return err
	}

	if show {
		fmt.Fprintln(out, tok.AccessToken)
		return nil
	}
	fmt.Fprintf(out, "Token:      %s\n", logging.SanitizeToken(tok.AccessToken))
	fmt.Fprintf(out, "Type:       %s\n", tok.Type())
	if !tok.Expiry.IsZero() {
		fmt.Fprintf(out, "Expires:    %s (in %s)\n", tok.Expiry.Local().Format(time.RFC3339),
			time.Until(tok.Expiry).Truncate(time.Second))
	}
	fmt.Fprintf(out, "Cache key:  %s\n", a.tokens.Key())
	return nil
}
