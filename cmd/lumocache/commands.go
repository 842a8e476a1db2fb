package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lumotrade/backend-go/internal/cachestore"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [key]",
		Short: "List cache entries, optionally for one key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.ensureBackend(cmd.Context())
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			entries, err := b.List(cmd.Context(), key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No cache entries")
				return nil
			}

			now := time.Now()
			rows := make([][]string, 0, len(entries))
			for i := range entries {
				e := &entries[i]
				rows = append(rows, []string{
					e.CacheKey,
					e.Scope,
					humanize.Bytes(uint64(len(e.Payload))),
					humanize.Time(e.UpdatedAt),
					expiryLabel(e, now),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Key", "Scope", "Size", "Updated", "Expires"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d entries via %s backend\n", len(entries), b.Name())
			return nil
		},
	}
}

func expiryLabel(e *cachestore.Entry, now time.Time) string {
	if e.ExpiresAt == nil {
		return "never"
	}
	if e.ExpiredAt(now) {
		return "expired"
	}
	return humanize.Time(time.UnixMilli(*e.ExpiresAt))
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key> <scope>",
		Short: "Print one cache entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.ensureBackend(cmd.Context())
			if err != nil {
				return err
			}
			e, err := b.Find(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("%s %s: %w", args[0], args[1], err)
			}
			var payload bytes.Buffer
			if err := json.Indent(&payload, e.Payload, "", "  "); err != nil {
				payload.Reset()
				payload.Write(e.Payload)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key:     %s\n", e.CacheKey)
			fmt.Fprintf(out, "Scope:   %s\n", e.Scope)
			fmt.Fprintf(out, "Created: %s\n", e.CreatedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "Updated: %s\n", e.UpdatedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "Expires: %s\n", expiryLabel(e, time.Now()))
			fmt.Fprintln(out, payload.String())
			return nil
		},
	}
}

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	var scopePrefix, keep string
	var all bool
	cmd := &cobra.Command{
		Use:   "purge <key>",
		Short: "Delete a key's scopes matching a prefix",
		Long: "Delete every scope of <key> that starts with --scope-prefix, except --keep.\n" +
			"The default removes all daily scopes; --all removes every scope.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.ensureBackend(cmd.Context())
			if err != nil {
				return err
			}
			prefix := scopePrefix
			if all {
				prefix = ""
			}
			n, err := b.DeleteWhere(cmd.Context(), args[0], prefix, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries for %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&scopePrefix, "scope-prefix", cachestore.DailyPrefix, "Only delete scopes with this prefix")
	cmd.Flags().StringVar(&keep, "keep", "", "Scope to keep")
	cmd.Flags().BoolVar(&all, "all", false, "Delete every scope of the key")
	return cmd
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired TTL entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := ctx.ensureBackend(cmd.Context())
			if err != nil {
				return err
			}
			n, err := cachestore.New(b).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Swept %d expired entries\n", n)
			return nil
		},
	}
}
