package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Inspect and edit your saved drafts",
	Long: `Drafts are kept per user in the configured store (a local sqlite file by
default). Without a session they belong to the anonymous user.`,
}

var draftsGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print a draft value",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runDraftsGet),
}

var draftsSetCmd = &cobra.Command{
	Use:   "set KEY JSON_VALUE",
	Short: "Store a draft value",
	Example: `  postctl drafts set content '"Hello world"'
  postctl drafts set selectedPages '["1234"]'`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(runDraftsSet),
}

var draftsDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Delete a draft value",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runDraftsDelete),
}

var draftsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all your draft values",
	RunE:  withApp(runDraftsClear),
}

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your draft values",
	RunE:  withApp(runDraftsList),
}

func init() {
	draftsCmd.AddCommand(draftsGetCmd, draftsSetCmd, draftsDeleteCmd, draftsClearCmd, draftsListCmd)
	rootCmd.AddCommand(draftsCmd)
}

func runDraftsGet(cmd *cobra.Command, args []string, a *app) error {
	owner, err := a.draftOwner(cmd.Context())
	if err != nil {
		return err
	}
	raw, err := a.drafts.GetRaw(cmd.Context(), owner, args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	var value any
	err = json.Unmarshal(raw, &value)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), value)
}

func runDraftsSet(cmd *cobra.Command, args []string, a *app) error {
	var value any
	err := json.Unmarshal([]byte(args[1]), &value)
	if err != nil {
		return fmt.Errorf("the value must be valid JSON, quote plain strings: %w", err)
	}
	owner, err := a.draftOwner(cmd.Context())
	if err != nil {
		return err
	}
	return a.drafts.Set(cmd.Context(), owner, args[0], value)
}

func runDraftsDelete(cmd *cobra.Command, args []string, a *app) error {
	owner, err := a.draftOwner(cmd.Context())
	if err != nil {
		return err
	}
	return a.drafts.Delete(cmd.Context(), owner, args[0])
}

func runDraftsClear(cmd *cobra.Command, _ []string, a *app) error {
	owner, err := a.draftOwner(cmd.Context())
	if err != nil {
		return err
	}
	return a.drafts.Clear(cmd.Context(), owner)
}

func runDraftsList(cmd *cobra.Command, _ []string, a *app) error {
	owner, err := a.draftOwner(cmd.Context())
	if err != nil {
		return err
	}
	entries, err := a.drafts.List(cmd.Context(), owner)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), entries)
}
