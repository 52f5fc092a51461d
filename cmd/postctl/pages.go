package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var assignUserIDs []int

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Manage the pages you can publish to",
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the pages assigned to you",
	RunE:  withApp(runPagesList),
}

var pagesInsightsCmd = &cobra.Command{
	Use:   "insights PAGE_ID",
	Short: "Print the insights of a page as reported by the platform",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runPagesInsights),
}

var pagesAssignCmd = &cobra.Command{
	Use:   "assign PAGE_ID --user ID [--user ID...]",
	Short: "Choose which users can publish to a page (super admins only)",
	Long: `Assign users to a page. The list replaces the current assignment, so pass
every user that should keep access.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runPagesAssign),
}

func init() {
	pagesAssignCmd.Flags().IntSliceVar(&assignUserIDs, "user", nil, "id of a user to assign, repeatable")
	pagesCmd.AddCommand(pagesListCmd, pagesInsightsCmd, pagesAssignCmd)
	rootCmd.AddCommand(pagesCmd)
}

func runPagesList(cmd *cobra.Command, _ []string, a *app) error {
	_, err := a.session.RequirePasswordChosen(cmd.Context())
	if err != nil {
		return err
	}
	pages, err := a.client.MyPages(cmd.Context())
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), pages)
}

func runPagesInsights(cmd *cobra.Command, args []string, a *app) error {
	_, err := a.session.RequirePasswordChosen(cmd.Context())
	if err != nil {
		return err
	}
	raw, err := a.client.PageInsights(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	var out bytes.Buffer
	err = json.Indent(&out, raw, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.String())
	return nil
}

func runPagesAssign(cmd *cobra.Command, args []string, a *app) error {
	_, err := a.session.RequireSuperAdmin(cmd.Context())
	if err != nil {
		return err
	}
	err = a.client.AssignUsersToPage(cmd.Context(), args[0], assignUserIDs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Page %s assigned to %d user(s)\n", args[0], len(assignUserIDs))
	return nil
}
