package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/query"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List and update stored leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, best prospects first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		p, err := query.ParseParams(filterValues(cmd))
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := st.List(ctx)
		if err != nil {
			return eris.Wrap(err, "list leads")
		}
		res, err := query.Run(items, p.Filter, p.Page, p.PerPage)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one lead with its notes and audit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		b, err := env.Tracker.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), b)
	},
}

var leadsStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Move a lead to another pipeline status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := model.ParseStatus(args[1])
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		b, err := env.Tracker.Transition(cmd.Context(), args[0], status)
		if err != nil {
			return err
		}
		zap.L().Info("lead status updated",
			zap.String("business_id", b.ID),
			zap.String("status", string(b.Status)),
		)
		return printJSON(cmd.OutOrStdout(), b)
	},
}

var leadsNoteCmd = &cobra.Command{
	Use:   "note <id> <content>",
	Short: "Add a note to a lead",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		note, err := env.Tracker.AddNote(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), note)
	},
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a lead with its notes and audit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Tracker.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		zap.L().Info("lead deleted", zap.String("business_id", args[0]))
		return nil
	},
}

var leadsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := st.List(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "list leads")
		}
		return printJSON(cmd.OutOrStdout(), query.ComputeStats(items, now()))
	},
}

func init() {
	addFilterFlags(leadsListCmd)
	leadsListCmd.Flags().Int("page", query.DefaultPage, "page number")
	leadsListCmd.Flags().Int("per-page", query.DefaultPerPage, "leads per page (max 100)")

	leadsCmd.AddCommand(leadsListCmd, leadsShowCmd, leadsStatusCmd, leadsNoteCmd, leadsDeleteCmd, leadsStatsCmd)
	rootCmd.AddCommand(leadsCmd)
}
