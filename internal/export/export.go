// Package export writes leads to spreadsheets and reads lead imports back
// from them.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/scorer"
)

// Sheet names.
const (
	LeadsSheet   = "Leads"
	SummarySheet = "Récapitulatif"
)

const (
	missing   = "-"
	noWebsite = "Pas de site web"
)

// Column is one column of the leads sheet.
type Column struct {
	Header string
	Width  float64
}

// Columns lists the leads sheet columns in order.
var Columns = []Column{
	{"Nom de l'établissement", 35},
	{"Adresse", 30},
	{"Ville", 20},
	{"Code Postal", 12},
	{"Téléphone", 18},
	{"Site Web", 35},
	{"Note Google", 12},
	{"Nombre d'avis", 14},
	{"Secteur", 20},
	{"Score Prospect", 14},
	{"Priorité", 12},
	{"Statut CRM", 15},
	{"Source", 12},
	{"Lien Google Maps", 40},
	{"Date ajout", 14},
}

// Row is the flat, labelled projection of a lead used by exports.
type Row struct {
	Name       string
	Address    string
	City       string
	PostalCode string
	Phone      string
	Website    string
	Rating     string
	Reviews    *int
	Sector     string
	Score      int
	Priority   string
	Status     string
	Source     string
	ProfileURL string
	CreatedAt  string
}

// Cells returns the row as strings in column order.
func (r Row) Cells() []string {
	reviews := missing
	if r.Reviews != nil {
		reviews = strconv.Itoa(*r.Reviews)
	}
	return []string{
		r.Name, r.Address, r.City, r.PostalCode, r.Phone, r.Website, r.Rating,
		reviews, r.Sector, strconv.Itoa(r.Score), r.Priority, r.Status, r.Source,
		r.ProfileURL, r.CreatedAt,
	}
}

// Rows projects leads into export rows, keeping their order.
func Rows(items []*model.Business) []Row {
	out := make([]Row, 0, len(items))
	for _, b := range items {
		out = append(out, Row{
			Name:       b.Name,
			Address:    orMissing(b.Address),
			City:       b.City,
			PostalCode: b.PostalCode,
			Phone:      orMissing(b.Phone),
			Website:    website(b.Website),
			Rating:     rating(b.Rating),
			Reviews:    b.ReviewsCount,
			Sector:     sector(b.Sector),
			Score:      b.ProspectScore(),
			Priority:   model.PriorityLabel(b.Priority()),
			Status:     b.Status.Label(),
			Source:     b.Source.Label(),
			ProfileURL: orMissing(b.ProfileURL),
			CreatedAt:  b.CreatedAt.Format("02/01/2006"),
		})
	}
	return out
}

func orMissing(s *string) string {
	if s == nil || *s == "" {
		return missing
	}
	return *s
}

func website(s *string) string {
	if s == nil || *s == "" {
		return noWebsite
	}
	return *s
}

func rating(r *float64) string {
	if r == nil {
		return missing
	}
	return fmt.Sprintf("%.1f / 5", *r)
}

func sector(s model.Sector) string {
	if l := s.Label(); l != "" {
		return l
	}
	return missing
}

// SummaryLine is one metric of the summary sheet.
type SummaryLine struct {
	Metric string
	Value  string
}

// Summary computes the summary sheet of an export made at now.
func Summary(items []*model.Business, now time.Time) []SummaryLine {
	var withSite int
	byPriority := map[scorer.Priority]int{}
	bySource := map[model.Source]int{}
	for _, b := range items {
		if b.HasWebsite() {
			withSite++
		}
		byPriority[b.Priority()]++
		bySource[b.Source]++
	}
	count := func(n int) string { return strconv.Itoa(n) }
	return []SummaryLine{
		{"Total leads exportés", count(len(items))},
		{"Sans site web", count(len(items) - withSite)},
		{"Avec site web", count(withSite)},
		{"Priorité Chaud", count(byPriority[scorer.PriorityHot])},
		{"Priorité Tiède", count(byPriority[scorer.PriorityWarm])},
		{"Priorité Froid", count(byPriority[scorer.PriorityCold])},
		{"Source Google Maps", count(bySource[model.SourcePlacesSearch])},
		{"Source INSEE", count(bySource[model.SourceBusinessRegistry])},
		{"Date d'export", LongDate(now)},
	}
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// LongDate formats t as "2 juin 2024".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}

// Filename returns the download name of an export made at now.
func Filename(now time.Time) string {
	return "leads-leadhunter-" + now.Format("2006-01-02") + ".xlsx"
}

// WriteXLSX writes a workbook with the leads sheet and the summary sheet.
func WriteXLSX(w io.Writer, items []*model.Business, now time.Time) error {
	f, err := Workbook(items, now)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// Workbook builds the export workbook in memory.
func Workbook(items []*model.Business, now time.Time) (*xlsx.File, error) {
	f := xlsx.NewFile()

	leads, err := f.AddSheet(LeadsSheet)
	if err != nil {
		return nil, eris.Wrap(err, "export: add leads sheet")
	}
	header := leads.AddRow()
	for i, c := range Columns {
		header.AddCell().SetString(c.Header)
		leads.SetColWidth(i, i, c.Width)
	}
	for _, r := range Rows(items) {
		row := leads.AddRow()
		for i, v := range r.Cells() {
			cell := row.AddCell()
			switch {
			case i == 7 && r.Reviews != nil:
				cell.SetInt(*r.Reviews)
			case i == 9:
				cell.SetInt(r.Score)
			default:
				cell.SetString(v)
			}
		}
	}

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return nil, eris.Wrap(err, "export: add summary sheet")
	}
	head := summary.AddRow()
	head.AddCell().SetString("Métrique")
	head.AddCell().SetString("Valeur")
	for _, l := range Summary(items, now) {
		row := summary.AddRow()
		row.AddCell().SetString(l.Metric)
		row.AddCell().SetString(l.Value)
	}
	summary.SetColWidth(0, 0, 25)
	summary.SetColWidth(1, 1, 20)
	return f, nil
}
