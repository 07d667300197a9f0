package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/export"
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/query"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to an XLSX workbook",
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
		matched := make([]*model.Business, 0, len(items))
		for _, b := range items {
			if p.Filter.Match(b) {
				matched = append(matched, b)
			}
		}

		at := now()
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = export.Filename(at)
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "create %s", out)
		}
		if err := export.WriteXLSX(f, matched, at); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close %s", out)
		}

		zap.L().Info("export complete", zap.String("file", out), zap.Int("leads", len(matched)))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "output path (default leads-leadhunter-<date>.xlsx)")
	addFilterFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}
