package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	var ownerID string

	cmd := &cobra.Command{
		Use:   "start <puzzle-ref>",
		Short: "Start a puzzle, or resume the one already in progress",
		Long: `Start a session for the given puzzle.

If the owner already has a session in progress for the puzzle it is
returned instead of creating a new one. Without --owner the session
belongs to the logged-in player, or to this machine's anonymous owner.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"puzzle_ref": args[0]}
			if ownerID != "" {
				req["owner"] = ownerID
			}

			var result StartResult
			status, err := client.postStatus("/api/v1/start/", req, &result)
			if err != nil {
				return err
			}
			result.Resumed = status == http.StatusOK

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "Explicit owner id (ignored when logged in)")

	return cmd
}

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <session-id>",
		Short: "Mark a session as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result CompleteResult

			if err := client.Post("/api/v1/complete/", map[string]string{"id": args[0]}, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session <session-id>",
		Short: "Show a session and its elapsed time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Session

			if err := client.Get(fmt.Sprintf("/api/v1/sessions/%s/", url.PathEscape(args[0])), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
