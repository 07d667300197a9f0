package export

import (
	"io"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadhunter/internal/mapper"
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/normalize"
)

// headerFields maps folded column headers, in English or as written by
// WriteXLSX, to ManualRecord fields.
var headerFields = map[string]string{
	"name":                   "name",
	"nom":                    "name",
	"nom de l'etablissement": "name",
	"address":                "address",
	"adresse":                "address",
	"city":                   "city",
	"ville":                  "city",
	"postal_code":            "postal_code",
	"code postal":            "postal_code",
	"phone":                  "phone",
	"telephone":              "phone",
	"email":                  "email",
	"website":                "website",
	"site web":               "website",
	"siret":                  "siret",
	"sector":                 "sector",
	"secteur":                "sector",
	"status":                 "status",
	"statut":                 "status",
	"statut crm":             "status",
	"notes":                  "notes",
}

// ReadXLSX reads lead rows from the first sheet of a workbook. The first row
// names the columns; unknown columns are ignored. Every record is marked as
// imported.
func ReadXLSX(r io.Reader) ([]mapper.ManualRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "export: read workbook")
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "export: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("export: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	fields := make([]string, 0)
	for _, h := range rowToStrings(sheet.Rows[0]) {
		fields = append(fields, headerFields[normalize.Fold(strings.TrimSpace(h))])
	}
	if !slices.Contains(fields, "name") {
		return nil, eris.New("export: workbook has no name column")
	}

	var out []mapper.ManualRecord
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		rec := mapper.ManualRecord{Source: model.SourceImport}
		empty := true
		for i, v := range cells {
			if i >= len(fields) {
				break
			}
			v = strings.TrimSpace(v)
			if v == missing || v == noWebsite {
				v = ""
			}
			if v != "" {
				empty = false
			}
			setField(&rec, fields[i], v)
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out, nil
}

func setField(rec *mapper.ManualRecord, field, v string) {
	switch field {
	case "name":
		rec.Name = v
	case "address":
		rec.Address = v
	case "city":
		rec.City = v
	case "postal_code":
		rec.PostalCode = v
	case "phone":
		rec.Phone = v
	case "email":
		rec.Email = v
	case "website":
		rec.Website = v
	case "siret":
		rec.SIRET = v
	case "sector":
		rec.Sector = keyForLabel(model.SectorLabels, v)
	case "status":
		rec.Status = keyForLabel(model.StatusLabels, v)
	case "notes":
		if v != "" {
			rec.Notes = append(rec.Notes, v)
		}
	}
}

// keyForLabel turns a display label back into its enum value. Values that
// are not labels are returned unchanged.
func keyForLabel[K ~string](labels map[K]string, v string) string {
	folded := normalize.Fold(v)
	for k, l := range labels {
		if normalize.Fold(l) == folded {
			return string(k)
		}
	}
	return v
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
