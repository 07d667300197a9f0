package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadhunter/internal/export"
	"github.com/sells-group/leadhunter/internal/lifecycle"
	"github.com/sells-group/leadhunter/internal/mapper"
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/store"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a YAML, JSON or XLSX file",
	Long:  "Imports leads from a YAML or JSON list of records, or from a workbook whose first row names the columns (a leadhunter export can be imported back).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		recs, err := readRecords(importFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := importRecords(ctx, env.Tracker, mapper.New(), recs)
		if err != nil {
			return err
		}
		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.Int("created", sum.Created),
			zap.Int("duplicates", sum.Duplicates),
			zap.Int("rejected", len(sum.Rejected)),
		)
		return printJSON(cmd.OutOrStdout(), sum)
	},
}

// importSummary reports what an import did.
type importSummary struct {
	Created    int      `json:"created"`
	Duplicates int      `json:"duplicates"`
	Rejected   []string `json:"rejected"`
}

// importRecords maps and stores recs. Records that fail to map are reported
// and skipped; the rest are still imported.
func importRecords(ctx context.Context, tracker *lifecycle.Tracker, m *mapper.Mapper, recs []mapper.ManualRecord) (*importSummary, error) {
	sum := &importSummary{Rejected: []string{}}
	for i, rec := range recs {
		if rec.Source == "" {
			rec.Source = model.SourceImport
		}
		b, err := m.Map(rec)
		if err != nil {
			sum.Rejected = append(sum.Rejected, eris.Wrapf(err, "record %d", i+1).Error())
			continue
		}
		switch err := tracker.Create(ctx, b); {
		case err == nil:
			sum.Created++
		case errors.Is(err, store.ErrDuplicate):
			sum.Duplicates++
		case model.IsValidation(err):
			sum.Rejected = append(sum.Rejected, eris.Wrapf(err, "record %d", i+1).Error())
		default:
			return nil, eris.Wrap(err, "import")
		}
	}
	return sum, nil
}

// readRecords decodes manual records from path. The format follows the file
// extension. YAML and JSON files hold a list of records or an object with a
// "leads" list.
func readRecords(path string) ([]mapper.ManualRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return export.ReadXLSX(bytes.NewReader(data))
	case ".yaml", ".yml":
		var recs []mapper.ManualRecord
		if err := yaml.Unmarshal(data, &recs); err == nil {
			return recs, nil
		}
		var doc struct {
			Leads []mapper.ManualRecord `yaml:"leads"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrapf(err, "parse %s", path)
		}
		return doc.Leads, nil
	case ".json":
		var recs []mapper.ManualRecord
		if err := json.Unmarshal(data, &recs); err == nil {
			return recs, nil
		}
		var doc struct {
			Leads []mapper.ManualRecord `json:"leads"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrapf(err, "parse %s", path)
		}
		return doc.Leads, nil
	default:
		return nil, eris.Errorf("unsupported import format %q (want .yaml, .yml, .json or .xlsx)", ext)
	}
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to the file to import (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
