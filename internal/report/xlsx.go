package report

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/jobinsight/internal/model"
)

// Sheet names written by WriteXLSX.
const (
	SheetSummary  = "Summary"
	SheetSalary   = "Salary"
	SheetRankings = "Rankings"
	SheetPostings = "Postings"
)

// WriteXLSX saves r as a workbook at path. When rows is non-empty a
// Postings sheet lists every posting with its enrichment.
func WriteXLSX(r *Report, rows []model.ReportRow, path string) error {
	f := xlsx.NewFile()

	if err := writeSummary(f, r); err != nil {
		return err
	}
	if err := writeSalary(f, r.Salary); err != nil {
		return err
	}
	if err := writeRankings(f, r); err != nil {
		return err
	}
	if len(rows) > 0 {
		if err := writePostings(f, rows); err != nil {
			return err
		}
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func addSheet(f *xlsx.File, name string, header ...string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: add sheet %s", name)
	}
	if len(header) > 0 {
		addStrings(sheet, header...)
	}
	return sheet, nil
}

func addStrings(sheet *xlsx.Sheet, values ...string) *xlsx.Row {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
	return row
}

func addFloat(row *xlsx.Row, v float64) {
	row.AddCell().SetFloatWithFormat(v, "0.00")
}

func writeSummary(f *xlsx.File, r *Report) error {
	sheet, err := addSheet(f, SheetSummary, "Metric", "Value")
	if err != nil {
		return err
	}
	addStrings(sheet, "Generated at", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	for _, kv := range []struct {
		name string
		v    int
	}{
		{"Total postings", r.Total},
		{"Relevant postings", r.Relevant},
		{"Processed postings", r.Processed},
		{"Enriched postings", r.Enriched},
	} {
		row := addStrings(sheet, kv.name)
		row.AddCell().SetInt(kv.v)
	}
	addFloat(addStrings(sheet, "Remote share"), r.RemoteShare)
	addFloat(addStrings(sheet, "Mean confidence"), r.MeanConfidence)

	for _, c := range r.Features {
		row := addStrings(sheet, "Feature "+c.Key)
		row.AddCell().SetInt(c.Count)
	}
	for _, c := range r.KeywordHits {
		row := addStrings(sheet, "Keyword "+c.Key)
		row.AddCell().SetInt(c.Count)
	}
	return nil
}

func writeSalary(f *xlsx.File, s SalaryStats) error {
	sheet, err := addSheet(f, SheetSalary, "Statistic", "Value")
	if err != nil {
		return err
	}
	row := addStrings(sheet, "Postings with salary")
	row.AddCell().SetInt(s.Count)
	for _, kv := range []struct {
		name string
		v    float64
	}{
		{"Mean minimum", s.MeanMin},
		{"Mean maximum", s.MeanMax},
		{"Median midpoint", s.Median},
		{"Std dev", s.StdDev},
		{"P25", s.P25},
		{"P75", s.P75},
		{"P90", s.P90},
	} {
		addFloat(addStrings(sheet, kv.name), kv.v)
	}

	sheet.AddRow()
	addStrings(sheet, "Bucket", "Postings")
	for _, b := range s.Buckets {
		row := addStrings(sheet, b.Key)
		row.AddCell().SetInt(b.Count)
	}
	return nil
}

func writeRankings(f *xlsx.File, r *Report) error {
	sheet, err := addSheet(f, SheetRankings, "Ranking", "Key", "Value")
	if err != nil {
		return err
	}
	for _, section := range []struct {
		name   string
		counts []Count
	}{
		{"platform", r.Platforms},
		{"category", r.Categories},
		{"seniority", r.Seniority},
		{"skill", r.Skills},
		{"location", r.Locations},
		{"web3 location", r.Web3Locations},
		{"company", r.Companies},
		{"web3 company", r.Web3Companies},
	} {
		for _, c := range section.counts {
			row := addStrings(sheet, section.name, c.Key)
			row.AddCell().SetInt(c.Count)
		}
	}
	for _, a := range r.TopPaying {
		addFloat(addStrings(sheet, "top paying", a.Key), a.Value)
	}
	return nil
}

func writePostings(f *xlsx.File, rows []model.ReportRow) error {
	sheet, err := addSheet(f, SheetPostings,
		"ID", "Title", "Company", "Location", "Salary", "Min", "Max", "Platform", "Relevant",
		"Category", "Seniority", "Skills", "Remote", "Features", "Confidence", "URL")
	if err != nil {
		return err
	}
	for _, r := range rows {
		p := r.Posting
		row := sheet.AddRow()
		row.AddCell().SetInt64(p.ID)
		for _, v := range []string{p.Title, p.Company, p.Location, p.SalaryText} {
			row.AddCell().SetString(v)
		}
		addOptionalInt(row, p.SalaryMin)
		addOptionalInt(row, p.SalaryMax)
		row.AddCell().SetString(p.SourcePlatform)
		row.AddCell().SetBool(p.IsRelevant)

		e := r.Enrichment
		if e == nil {
			e = &model.Enrichment{}
		}
		row.AddCell().SetString(e.Category)
		row.AddCell().SetString(e.Seniority)
		row.AddCell().SetString(strings.Join(e.Skills, ", "))
		row.AddCell().SetBool(e.Remote)
		row.AddCell().SetString(strings.Join(e.Features(), ", "))
		addFloat(row, e.Confidence)
		row.AddCell().SetString(p.SourceURL)
	}
	return nil
}

func addOptionalInt(row *xlsx.Row, v *int) {
	cell := row.AddCell()
	if v != nil {
		cell.SetInt(*v)
	}
}

// ReadSheet returns every row of the named sheet as strings.
func ReadSheet(path, name string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
