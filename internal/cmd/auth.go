package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/taskbridge/internal/auth"
	"github.com/Iron-Ham/taskbridge/internal/tui/styles"
)

func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect credentials",
	}

	var watch bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show which credential would be used",
		Long: `Resolve a credential the same way task commands do and show where it
came from. Tokens are masked.

With --watch, auth.json is watched and the status is printed again whenever
it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd, watch)
		},
	}
	statusCmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-print the status when auth.json changes")

	authCmd.AddCommand(statusCmd)
	return authCmd
}

func runAuthStatus(cmd *cobra.Command, watch bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	resolver := a.resolver()
	input := auth.Input{
		BearerToken: a.cfg.Auth.BearerToken,
		AccountID:   a.cfg.Auth.AccountID,
		Home:        a.cfg.Auth.Home,
	}

	if err := printAuthStatus(ctx, out, resolver, input); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	home, err := auth.FindHome(a.cfg.Auth.Home)
	if err != nil {
		return err
	}
	fm := a.fileManager(home)
	defer func() { _ = fm.Close() }()

	var mu sync.Mutex
	fm.OnChange(func() {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out)
		if err := printAuthStatus(ctx, out, resolver, input); err != nil {
			a.logger.Warn("auth status failed", "error", err.Error())
		}
	})
	if err := fm.Watch(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nWatching %s (Ctrl-C to stop)\n", fm.Path())
	<-ctx.Done()
	return nil
}

func printAuthStatus(ctx context.Context, out io.Writer, resolver *auth.Resolver, input auth.Input) error {
	cred, err := resolver.Resolve(ctx, input)
	if err != nil {
		return err
	}

	if home, err := auth.FindHome(input.Home); err == nil {
		fmt.Fprintf(out, "Home:       %s\n", home)
	} else {
		fmt.Fprintf(out, "Home:       %s\n", styles.Muted.Render("(none)"))
	}

	if cred == nil {
		fmt.Fprintln(out, styles.WarningMsg.Render("No credential found"))
		return nil
	}

	accountID := cred.AccountID
	if accountID == "" {
		accountID = "(unknown)"
	}
	fmt.Fprintf(out, "Source:     %s\n", cred.Source)
	fmt.Fprintf(out, "Token:      %s\n", auth.MaskToken(cred.BearerToken))
	fmt.Fprintf(out, "Account ID: %s\n", accountID)
	return nil
}
