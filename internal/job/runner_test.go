package job

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contacts-cli/internal/enrich"
	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/refdata"
	"github.com/sells-group/contacts-cli/internal/sheet"
	"github.com/sells-group/contacts-cli/internal/store"
	"github.com/sells-group/contacts-cli/internal/websearch"
)

// memStore is an in-memory store.Store for runner and scheduler tests.
// UpdateJob enforces the same forward-only status machine as the real
// backends, with same-status updates passing as no-ops.
type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*model.Job
	results   map[string][]model.CompanyResult
	failSaves bool
}

func newMemStore() *memStore {
	return &memStore{
		jobs:    make(map[string]*model.Job),
		results: make(map[string][]model.CompanyResult),
	}
}

func (m *memStore) CreateJob(_ context.Context, job model.Job) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = uuid.NewString()
	job.Status = model.JobStatusQueued
	job.CreatedAt = time.Now().UTC()
	m.jobs[job.ID] = &job
	snapshot := job
	return &snapshot, nil
}

func (m *memStore) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, eris.Errorf("job %s not found", jobID)
	}
	snapshot := *j
	return &snapshot, nil
}

func (m *memStore) ListJobs(_ context.Context, filter store.JobFilter) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Job
	for _, j := range m.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		out = append(out, *j)
	}
	return out, nil
}

func (m *memStore) UpdateJob(_ context.Context, jobID string, update store.JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return eris.Errorf("job %s not found", jobID)
	}
	if update.Status != nil && j.Status != *update.Status {
		if !j.Status.CanTransition(*update.Status) {
			return eris.Errorf("illegal status transition %s -> %s", j.Status, *update.Status)
		}
		j.Status = *update.Status
	}
	if update.Total != nil {
		j.Total = *update.Total
	}
	if update.Processed != nil {
		j.Processed = *update.Processed
	}
	if update.Found != nil {
		j.Found = *update.Found
	}
	if update.PeopleFound != nil {
		j.PeopleFound = *update.PeopleFound
	}
	if update.Errors != nil {
		j.Errors = *update.Errors
	}
	if update.Rate != nil {
		j.Rate = *update.Rate
	}
	if update.ETA != nil {
		j.ETA = *update.ETA
	}
	if update.ErrorMessage != nil {
		j.ErrorMessage = *update.ErrorMessage
	}
	if update.StartedAt != nil {
		j.StartedAt = update.StartedAt
	}
	if update.FinishedAt != nil {
		j.FinishedAt = update.FinishedAt
	}
	return nil
}

func (m *memStore) SaveResults(_ context.Context, jobID string, results []model.CompanyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves {
		return eris.New("disk full")
	}
	m.results[jobID] = append(m.results[jobID], results...)
	return nil
}

func (m *memStore) GetResults(_ context.Context, jobID string) ([]model.CompanyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[jobID], nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

// stubSearch is a websearch.Client whose probe outcome is fixed.
type stubSearch struct {
	probeErr error
}

func (s *stubSearch) Probe(context.Context) error { return s.probeErr }
func (s *stubSearch) Search(context.Context, string) ([]websearch.Result, error) {
	return nil, nil
}

// stubAdapter emits canned signals per company name and can run a hook
// on every fetch.
type stubAdapter struct {
	mu      sync.Mutex
	signals map[string][]model.Signal
	modes   []enrich.Mode
	onFetch func(company *model.Company)
}

func (a *stubAdapter) Name() model.SignalSource { return model.SourceWebsite }

func (a *stubAdapter) Fetch(_ context.Context, company *model.Company, mode enrich.Mode) []model.Signal {
	a.mu.Lock()
	a.modes = append(a.modes, mode)
	a.mu.Unlock()
	if a.onFetch != nil {
		a.onFetch(company)
	}
	return a.signals[company.Name]
}

func testWorkbook(t *testing.T, names []string) string {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Cleaned_Data")
	require.NoError(t, err)
	header := sh.AddRow()
	header.AddCell().SetString("RAGIONE SOCIALE")
	header.AddCell().SetString("SITO WEB")
	for _, name := range names {
		row := sh.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetString("https://" + name + ".example.it")
	}
	path := filepath.Join(t.TempDir(), "companies.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func loadFixture(t *testing.T, path string) ([]model.Company, *sheet.Writer) {
	t.Helper()
	companies, err := sheet.LoadCompanies(path, "Cleaned_Data")
	require.NoError(t, err)
	writer, err := sheet.NewWriter(path, "Cleaned_Data")
	require.NoError(t, err)
	return companies, writer
}

func testEnricher(t *testing.T, adapter enrich.SourceAdapter) *enrich.Enricher {
	t.Helper()
	ref, err := refdata.Load()
	require.NoError(t, err)
	return enrich.New(ref, 5, adapter)
}

func TestRunner_CompletesToDone(t *testing.T) {
	st := newMemStore()
	path := testWorkbook(t, []string{"acme", "beta", "gamma"})
	companies, writer := loadFixture(t, path)

	adapter := &stubAdapter{signals: map[string][]model.Signal{
		"acme": {
			{Source: model.SourceWebsite, Name: "Mario Rossi", Title: "CEO", Email: "mario.rossi@acme.example.it"},
			{Source: model.SourceWebsite, Name: "Giulia Bianchi", Title: "CFO"},
		},
	}}
	r := NewRunner(st, testEnricher(t, adapter), &stubSearch{}, 2, 100, 0)

	job, err := st.CreateJob(context.Background(), model.Job{SheetPath: path, Total: len(companies)})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background(), job, companies, writer))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDone, got.Status)
	assert.Equal(t, 3, got.Processed)
	assert.Equal(t, 1, got.Found)
	assert.Equal(t, 2, got.PeopleFound)
	assert.Equal(t, 0, got.Errors)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)

	results, err := st.GetResults(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// The sheet was flushed with the merged contacts.
	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	found := false
	for _, row := range f.Sheets[0].Rows[1:] {
		for _, cell := range row.Cells {
			if cell.String() == "mario.rossi@acme.example.it, " {
				found = true
			}
		}
	}
	assert.True(t, found, "contact emails written back to the workbook")
}

func TestRunner_ObservesCancelAtBatchBoundary(t *testing.T) {
	st := newMemStore()
	path := testWorkbook(t, []string{"a", "b", "c", "d", "e", "f"})
	companies, writer := loadFixture(t, path)

	job, err := st.CreateJob(context.Background(), model.Job{SheetPath: path, Total: len(companies)})
	require.NoError(t, err)

	// The first fetch flips the job to cancelled, as the cancel API
	// endpoint would. workers=1 gives a batch width of 2, so the
	// runner must stop at the first boundary after that batch.
	adapter := &stubAdapter{signals: map[string][]model.Signal{}}
	adapter.onFetch = func(*model.Company) {
		cancelled := model.JobStatusCancelled
		_ = st.UpdateJob(context.Background(), job.ID, store.JobUpdate{Status: &cancelled})
	}
	r := NewRunner(st, testEnricher(t, adapter), &stubSearch{}, 1, 100, 0)

	require.NoError(t, r.Run(context.Background(), job, companies, writer))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
	assert.Equal(t, 2, got.Processed, "only the in-flight batch completes")
	assert.Less(t, got.Processed, got.Total)
	require.NotNil(t, got.FinishedAt)
}

func TestRunner_CancelledContextFinishesCancelled(t *testing.T) {
	st := newMemStore()
	path := testWorkbook(t, []string{"a", "b", "c", "d"})
	companies, writer := loadFixture(t, path)

	job, err := st.CreateJob(context.Background(), model.Job{SheetPath: path, Total: len(companies)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	adapter := &stubAdapter{signals: map[string][]model.Signal{}}
	adapter.onFetch = func(*model.Company) { cancel() }
	r := NewRunner(st, testEnricher(t, adapter), &stubSearch{}, 1, 100, 0)

	require.NoError(t, r.Run(ctx, job, companies, writer))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
	require.NotNil(t, got.FinishedAt, "terminal state persists despite the dead context")
	// The second company of the in-flight batch was aborted before any
	// fetch happened, so it never counts as processed.
	assert.Equal(t, 1, got.Processed)
	assert.Equal(t, 0, got.Errors)
}

func TestRunner_PanickingCompanyCountedAsError(t *testing.T) {
	st := newMemStore()
	path := testWorkbook(t, []string{"acme", "beta", "gamma"})
	companies, writer := loadFixture(t, path)

	adapter := &stubAdapter{signals: map[string][]model.Signal{}}
	adapter.onFetch = func(company *model.Company) {
		if company.Name == "beta" {
			panic("malformed markup")
		}
	}
	r := NewRunner(st, testEnricher(t, adapter), &stubSearch{}, 2, 100, 0)

	job, err := st.CreateJob(context.Background(), model.Job{SheetPath: path, Total: len(companies)})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background(), job, companies, writer))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDone, got.Status, "one bad company must not sink the job")
	assert.Equal(t, 3, got.Processed)
	assert.Equal(t, 1, got.Errors)
}

func TestRunner_BelowMinSuccessFractionIsError(t *testing.T) {
	st := newMemStore()
	path := testWorkbook(t, []string{"a", "b", "c", "d"})
	companies, writer := loadFixture(t, path)

	adapter := &stubAdapter{signals: map[string][]model.Signal{}}
	adapter.onFetch = func(*model.Company) { panic("broken source") }
	r := NewRunner(st, testEnricher(t, adapter), &stubSearch{}, 2, 100, 0.5)

	job, err := st.CreateJob(context.Background(), model.Job{SheetPath: path, Total: len(companies)})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background(), job, companies, writer))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "below the minimum fraction")
	assert.Equal(t, 4, got.Processed)
	assert.Equal(t, 4, got.Errors)
	require.NotNil(t, got.FinishedAt)
}

func TestRunner_SaveFailureFinishesWithError(t *testing.T) {
	st := newMemStore()
	st.failSaves = true
	path := testWorkbook(t, []string{"acme"})
	companies, writer := loadFixture(t, path)

	job, err := st.CreateJob(context.Background(), model.Job{SheetPath: path, Total: 1})
	require.NoError(t, err)

	r := NewRunner(st, testEnricher(t, &stubAdapter{}), &stubSearch{}, 1, 100, 0)
	require.NoError(t, r.Run(context.Background(), job, companies, writer))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "disk full")
}

func TestRunner_DegradedWithoutWebsitesIsSetupError(t *testing.T) {
	st := newMemStore()
	path := testWorkbook(t, []string{"acme"})
	companies, writer := loadFixture(t, path)
	companies[0].Website = ""

	job, err := st.CreateJob(context.Background(), model.Job{SheetPath: path, Total: 1})
	require.NoError(t, err)

	search := &stubSearch{probeErr: eris.New("all engines blocked")}
	r := NewRunner(st, testEnricher(t, &stubAdapter{}), search, 1, 100, 0)
	require.NoError(t, r.Run(context.Background(), job, companies, writer))

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "no company has a known website")
	assert.Equal(t, 0, got.Processed)
}

func TestRunner_DegradedModeOnProbeFailure(t *testing.T) {
	st := newMemStore()
	path := testWorkbook(t, []string{"acme"})
	companies, writer := loadFixture(t, path)

	job, err := st.CreateJob(context.Background(), model.Job{SheetPath: path, Total: 1})
	require.NoError(t, err)

	adapter := &stubAdapter{}
	search := &stubSearch{probeErr: eris.New("all engines blocked")}
	r := NewRunner(st, testEnricher(t, adapter), search, 1, 100, 0)

	require.NoError(t, r.Run(context.Background(), job, companies, writer))
	require.Len(t, adapter.modes, 1)
	assert.Equal(t, enrich.ModeDegraded, adapter.modes[0])
}
