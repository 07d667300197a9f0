package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/normalize"
	"github.com/sells-group/leadhunter/internal/scorer"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit a website or the websites of stored leads",
	Long:  "Runs a Lighthouse audit through PageSpeed Insights. With --url the audit is printed with the prospect score it implies. With --id the audits are attached to the leads and their scores refined.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("audit"); err != nil {
			return err
		}

		rawURL, _ := cmd.Flags().GetString("url")
		ids, _ := cmd.Flags().GetStringSlice("id")

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if rawURL != "" {
			a, err := env.Auditor.Audit(ctx, normalize.NormalizeURL(rawURL))
			if err != nil {
				return eris.Wrap(err, "audit url")
			}
			f := a.Factors()
			score := scorer.Score(f)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"audit":          a,
				"prospect_score": score,
				"priority":       scorer.PriorityFromScore(score),
				"needs_redesign": scorer.NeedsRedesign(f),
			})
		}

		res, err := env.Scanner.AuditBatch(ctx, ids)
		if err != nil {
			return eris.Wrap(err, "audit leads")
		}
		zap.L().Info("audit batch complete",
			zap.Int("audited", res.Audited),
			zap.Int("without_site", res.WithoutSite),
			zap.Int("failures", len(res.Failures)),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	auditCmd.Flags().String("url", "", "website to audit")
	auditCmd.Flags().StringSlice("id", nil, "lead ids to audit (repeatable)")
	auditCmd.MarkFlagsMutuallyExclusive("url", "id")
	auditCmd.MarkFlagsOneRequired("url", "id")
	rootCmd.AddCommand(auditCmd)
}
