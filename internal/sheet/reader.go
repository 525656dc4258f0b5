// Package sheet reads company lists from XLSX workbooks and writes
// enrichment results back into the same rows.
package sheet

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contacts-cli/internal/model"
)

// headerAliases maps each logical column to the header spellings seen
// in the wild. Matching is case-insensitive and substring-based so
// "RAGIONE SOCIALE AZIENDA" still binds the name column.
var headerAliases = map[string][]string{
	"name":     {"RAGIONE SOCIALE", "COMPANY", "AZIENDA", "DENOMINAZIONE"},
	"province": {"PROVINCIA"},
	"website":  {"WEBSITE", "SITO", "WEB", "URL"},
}

// LoadCompanies reads the company list from an XLSX sheet. The first
// row is the header; rows with no company name are skipped. SheetRow
// records each company's row index within the sheet (the header is row
// 0) so results can be written back in place.
func LoadCompanies(path, sheetName string) ([]model.Company, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: open file")
	}
	sh, err := pickSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	if len(sh.Rows) == 0 {
		return nil, eris.Errorf("sheet: %q is empty", sh.Name)
	}

	cols := bindColumns(sh.Rows[0])
	nameCol, ok := cols["name"]
	if !ok {
		return nil, eris.Errorf("sheet: no company name column found in %q", sh.Name)
	}

	var companies []model.Company
	for i := 1; i < len(sh.Rows); i++ {
		row := sh.Rows[i]
		name := strings.TrimSpace(cellAt(row, nameCol))
		if name == "" {
			continue
		}
		c := model.Company{
			ID:       uuid.New().String(),
			Name:     name,
			SheetRow: i,
		}
		if col, ok := cols["province"]; ok {
			c.Province = strings.TrimSpace(cellAt(row, col))
		}
		if col, ok := cols["website"]; ok {
			c.Website = strings.TrimSpace(cellAt(row, col))
		}
		companies = append(companies, c)
	}
	return companies, nil
}

func pickSheet(f *xlsx.File, sheetName string) (*xlsx.Sheet, error) {
	if sheetName != "" {
		if sh, ok := f.Sheet[sheetName]; ok {
			return sh, nil
		}
		return nil, eris.Errorf("sheet: %q not found", sheetName)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("sheet: file has no sheets")
	}
	return f.Sheets[0], nil
}

// bindColumns resolves logical columns against the header row. The
// first alias hit wins per column.
func bindColumns(header *xlsx.Row) map[string]int {
	cols := make(map[string]int)
	for idx, cell := range header.Cells {
		text := strings.ToUpper(strings.TrimSpace(cell.String()))
		if text == "" {
			continue
		}
		for logical, aliases := range headerAliases {
			if _, bound := cols[logical]; bound {
				continue
			}
			for _, alias := range aliases {
				if strings.Contains(text, alias) {
					cols[logical] = idx
					break
				}
			}
		}
	}
	return cols
}

func cellAt(row *xlsx.Row, col int) string {
	if col < 0 || col >= len(row.Cells) {
		return ""
	}
	return row.Cells[col].String()
}
