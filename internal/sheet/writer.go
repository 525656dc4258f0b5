package sheet

import (
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contacts-cli/internal/model"
)

// resultColumns are appended to the header when absent, in this order.
var resultColumns = []string{"EMAILS", "FIRST NAMES", "LAST NAMES", "TITLES"}

// Writer writes enrichment results back into the source workbook. It
// is safe for concurrent Record calls; Flush serializes the whole file
// to disk, so the orchestrator calls it at batch boundaries only.
type Writer struct {
	mu      sync.Mutex
	file    *xlsx.File
	sheet   *xlsx.Sheet
	path    string
	cols    map[string]int
	website int // input website column, -1 when absent
	dirty   bool
}

// NewWriter opens the workbook and ensures the result columns exist in
// the header row, appending any that are missing.
func NewWriter(path, sheetName string) (*Writer, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: open file for writing")
	}
	sh, err := pickSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	if len(sh.Rows) == 0 {
		return nil, eris.Errorf("sheet: %q is empty", sh.Name)
	}

	header := sh.Rows[0]
	cols := make(map[string]int)
	for idx, cell := range header.Cells {
		text := strings.ToUpper(strings.TrimSpace(cell.String()))
		for _, name := range resultColumns {
			if text == name {
				cols[name] = idx
			}
		}
	}
	next := len(header.Cells)
	for _, name := range resultColumns {
		if _, ok := cols[name]; ok {
			continue
		}
		sh.Cell(0, next).SetString(name)
		cols[name] = next
		next++
	}

	website := -1
	if col, ok := bindColumns(header)["website"]; ok {
		website = col
	}

	return &Writer{file: f, sheet: sh, path: path, cols: cols, website: website}, nil
}

// Record writes one company's contacts into its source row. Values are
// comma-joined in contact rank order; positions stay aligned across
// the four columns, with empty slots for contacts missing a field.
func (w *Writer) Record(result model.CompanyResult) {
	if result.Company.SheetRow <= 0 {
		return
	}

	emails := make([]string, len(result.Contacts))
	firsts := make([]string, len(result.Contacts))
	lasts := make([]string, len(result.Contacts))
	titles := make([]string, len(result.Contacts))
	for i, c := range result.Contacts {
		emails[i] = c.Email
		firsts[i] = c.FirstName
		lasts[i] = c.LastName
		titles[i] = c.Title
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	row := result.Company.SheetRow
	w.sheet.Cell(row, w.cols["EMAILS"]).SetString(strings.Join(emails, ", "))
	w.sheet.Cell(row, w.cols["FIRST NAMES"]).SetString(strings.Join(firsts, ", "))
	w.sheet.Cell(row, w.cols["LAST NAMES"]).SetString(strings.Join(lasts, ", "))
	w.sheet.Cell(row, w.cols["TITLES"]).SetString(strings.Join(titles, ", "))

	// Backfill a website the enrichment resolved for a row that had none.
	if w.website >= 0 && result.Company.Website != "" {
		if strings.TrimSpace(cellAt(w.sheet.Rows[row], w.website)) == "" {
			w.sheet.Cell(row, w.website).SetString(result.Company.Website)
		}
	}

	w.dirty = true
}

// Flush saves the workbook if anything changed since the last save.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirty {
		return nil
	}
	if err := w.file.Save(w.path); err != nil {
		return eris.Wrap(err, "sheet: save file")
	}
	w.dirty = false
	return nil
}
