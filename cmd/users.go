package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teemow/zoombulk/internal/logging"
)

func newUsersCmd() *cobra.Command {
	var (
		refresh bool
		email   string
	)

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List active users or resolve an email to a user ID",
		Long: `List the account's active users as email and user ID, using the local
user cache when it is still valid. With --email, print the user ID of one
user; an unknown email triggers one refresh of the cache before failing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUsers(cmd.Context(), cmd.OutOrStdout(), email, refresh)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Rebuild the user cache from the API")
	cmd.Flags().StringVar(&email, "email", "", "Resolve a single email to its user ID")

	return cmd
}

func runUsers(ctx context.Context, out io.Writer, email string, refresh bool) error {
	a, err := newApp(ctx, cfg, logger, appOptions{api: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown failed", logging.Err(err))
		}
	}()

	if email != "" {
		if refresh {
			if _, err := a.index.EmailToID(ctx, false, true); err != nil {
				return err
			}
		}
		id, err := a.index.Resolve(ctx, email)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, id)
		return nil
	}

	m, err := a.index.EmailToID(ctx, !refresh, refresh)
	if err != nil {
		return err
	}
	return printUsers(out, m)
}

func printUsers(out io.Writer, m map[string]string) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tUSER ID")
	for _, email := range slices.Sorted(maps.Keys(m)) {
		fmt.Fprintf(tw, "%s\t%s\n", email, m[email])
	}
	return tw.Flush()
}
