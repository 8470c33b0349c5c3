package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/dnsbot/internal/config"
	"gitlab.bluewillows.net/root/dnsbot/internal/ledger"
)

// withStack loads the configuration without Discord settings, opens the
// state store and calls fn.
func withStack(cmd *cobra.Command, fn func(ctx context.Context, st *stack) error) error {
	cfg, err := config.LoadOffline(config.FilePath(configPath))
	if err != nil {
		return err
	}
	logger, closer := setupLogger(config.LoggingConfig{Level: "error", Format: "text"})
	defer closer.Close()

	ctx := cmd.Context()
	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Debug("close state store", slog.String("error", err.Error()))
		}
	}()
	return fn(ctx, st)
}

func newDomainsCommand() *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "List registered domains from the state store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStack(cmd, func(ctx context.Context, st *stack) error {
				var failures map[string]error
				if verify {
					failures = st.manager.VerifyDomains(ctx)
				}
				return printDomains(ctx, cmd.OutOrStdout(), st, verify, failures)
			})
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "check each domain's API token against Cloudflare")
	return cmd
}

func printDomains(ctx context.Context, out io.Writer, st *stack, verified bool, failures map[string]error) error {
	domains := st.manager.Domains(ctx)
	if len(domains) == 0 {
		fmt.Fprintln(out, "no domains registered")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, d := range domains {
		status := ""
		if verified {
			status = "ok"
			if err, ok := failures[d.Name]; ok {
				status = "error: " + err.Error()
			}
		}
		fmt.Fprintf(w, "%s\t%s\n", d.Name, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d domains failed verification", len(failures), len(domains))
	}
	return nil
}

func newLedgerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger [user-id]",
		Short: "Show records created through the bot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, st *stack) error {
				doc, err := st.ledger.All(ctx)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					doc = ledger.Document{args[0]: doc[args[0]]}
				}
				return printLedger(cmd.OutOrStdout(), doc)
			})
		},
	}
}

func printLedger(out io.Writer, doc ledger.Document) error {
	users := make([]string, 0, len(doc))
	for user, recs := range doc {
		if len(recs) > 0 {
			users = append(users, user)
		}
	}
	if len(users) == 0 {
		fmt.Fprintln(out, "no records")
		return nil
	}
	slices.Sort(users)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tNAME\tTYPE\tCREATED\tNOTE")
	for _, user := range users {
		for _, rec := range doc[user] {
			note := ""
			if rec.Incomplete {
				note = "incomplete"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				user, rec.Name, rec.Type, rec.CreatedAt.UTC().Format(time.RFC3339), note)
		}
	}
	return w.Flush()
}
