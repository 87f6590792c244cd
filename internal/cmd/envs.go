package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/taskbridge/internal/environment"
	"github.com/Iron-Ham/taskbridge/internal/errors"
	"github.com/Iron-Ham/taskbridge/internal/tui/styles"
)

func newEnvsCmd() *cobra.Command {
	var (
		match  string
		asJSON bool
	)
	envsCmd := &cobra.Command{
		Use:   "envs",
		Short: "List environments for this checkout",
		Long: `List the environments available to the current checkout.

Environments are gathered from every GitHub remote of the repository and from
the account-wide listing, merged by id, and sorted with pinned environments
first. Sources that fail are skipped.

--match filters by label or id with a glob, e.g. --match 'web-*'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvs(cmd, match, asJSON)
		},
	}
	envsCmd.Flags().StringVarP(&match, "match", "m", "", "only show environments whose label or id matches this glob")
	addJSONFlag(envsCmd, &asJSON)
	return envsCmd
}

func runEnvs(cmd *cobra.Command, match string, asJSON bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	rows, err := a.environments(ctx)
	if err != nil {
		return err
	}
	rows, err = filterRows(rows, match)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, rows)
	}
	renderRows(out, rows)
	return nil
}

// filterRows keeps rows whose label or id matches pattern. An empty pattern
// keeps everything.
func filterRows(rows []environment.Row, pattern string) ([]environment.Row, error) {
	if pattern == "" {
		return rows, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.NewValidationError("invalid --match pattern: " + err.Error()).WithField("match").WithValue(pattern)
	}
	kept := make([]environment.Row, 0, len(rows))
	for _, row := range rows {
		if g.Match(row.ID) || (row.Label != nil && g.Match(*row.Label)) {
			kept = append(kept, row)
		}
	}
	return kept, nil
}

func renderRows(out io.Writer, rows []environment.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No environments found"))
		return
	}

	labelW, idW := len("LABEL"), len("ID")
	for _, row := range rows {
		labelW = max(labelW, lipgloss.Width(row.LabelOr("-")))
		idW = max(idW, lipgloss.Width(row.ID))
	}
	labelCol := lipgloss.NewStyle().Width(labelW + 2)
	idCol := lipgloss.NewStyle().Width(idW + 2)

	fmt.Fprintln(out, "  "+styles.TableHeader.Render(labelCol.Render("LABEL")+idCol.Render("ID")+"REPOSITORY"))
	for _, row := range rows {
		var line strings.Builder
		if row.Pinned() {
			line.WriteString(styles.PinnedBadge.Render("★ "))
		} else {
			line.WriteString("  ")
		}
		line.WriteString(labelCol.Render(row.LabelOr("-")))
		line.WriteString(idCol.Render(row.ID))
		if row.RepoHints != nil {
			line.WriteString(*row.RepoHints)
		} else {
			line.WriteString(styles.Muted.Render("-"))
		}
		fmt.Fprintln(out, line.String())
	}
}
