package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

var runClock = time.Date(2023, time.June, 15, 10, 30, 0, 0, time.UTC)

type fakeNotifier struct {
	runs []*Run
	err  error
}

func (n *fakeNotifier) NotifyRun(ctx context.Context, profile *Profile, run *Run) error {
	n.runs = append(n.runs, run)
	return n.err
}

func newTestRunner(store RecordStore, notifier RunNotifier) *Runner {
	r := NewRunner(store, slog.Default(), notifier)
	r.now = func() time.Time { return runClock }
	return r
}

func runProfile() *Profile {
	p := NewProfile("partners", "res.partner")
	p.ID = 3
	p.Columns = []ColumnMapping{
		{Field: "name", Cells: []int{0}, Kind: KindChar, AddToDomain: true},
		{Field: "amount", Cells: []int{1}, Kind: KindNumeric},
	}
	return p
}

func wantEntry(t *testing.T, run *Run, status LogStatus, substr string) {
	t.Helper()
	for _, e := range run.Entries {
		if e.Status == status && strings.Contains(e.Message, substr) {
			return
		}
	}
	t.Errorf("no %s entry containing %q, entries: %v", status, substr, run.Entries)
}

// ----------------------------------------------------------------------------
// Runner.Run Tests
// ----------------------------------------------------------------------------

func TestRunnerRun_Success(t *testing.T) {
	store := partnerStore()
	runner := newTestRunner(store, nil)

	src := strings.NewReader("name;amount\nAcme;15,08\nBcn;2,00\n")
	run, err := runner.Run(context.Background(), runProfile(), "partners.csv", src)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.State != RunStateDone {
		t.Errorf("State = %s, want %s", run.State, RunStateDone)
	}
	if run.Created != 2 || run.Updated != 0 || run.Skipped != 0 {
		t.Errorf("counters = %d/%d/%d, want 2/0/0", run.Created, run.Updated, run.Skipped)
	}
	if run.Profile != "partners" || run.ProfileID != 3 || run.Filename != "partners.csv" {
		t.Errorf("run identity = %q(%d) %q", run.Profile, run.ProfileID, run.Filename)
	}
	if !run.Started.Equal(runClock) || !run.Finished.Equal(runClock) {
		t.Errorf("timestamps = %v / %v, want the fixed clock", run.Started, run.Finished)
	}

	if store.createCalls != 1 {
		t.Errorf("createCalls = %d, want one batched call", store.createCalls)
	}
	created := store.created["res.partner"]
	if len(created) != 2 {
		t.Fatalf("created = %v, want 2 records", created)
	}
	if created[0]["name"] != "Acme" || created[1]["name"] != "Bcn" {
		t.Errorf("created names = %v, %v", created[0]["name"], created[1]["name"])
	}

	last := run.Entries[len(run.Entries)-1]
	if last.Status != StatusDone || last.Message != "import_successfully: created 2, updated 0, skipped 0" {
		t.Errorf("summary entry = %s %q", last.Status, last.Message)
	}
	wantEntry(t, run, StatusDone, "line 2: record created")
	wantEntry(t, run, StatusDone, "line 3: record created")
}

func TestRunnerRun_InvalidProfile(t *testing.T) {
	p := runProfile()
	p.Columns = nil

	run, err := newTestRunner(partnerStore(), nil).Run(context.Background(), p, "x.csv", strings.NewReader(""))
	if run != nil {
		t.Errorf("Run() run = %+v, want nil before a run exists", run)
	}
	var ce *ProfileConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Run() error = %v, want *ProfileConfigError", err)
	}
}

func TestRunnerRun_Update(t *testing.T) {
	store := partnerStore()
	store.searchFn = hitOn("Acme", Record{ID: 42})

	p := runProfile()
	p.UpdateRecord = true

	run, err := newTestRunner(store, nil).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount\nAcme;9,00\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Created != 0 || run.Updated != 1 || run.Skipped != 0 {
		t.Errorf("counters = %d/%d/%d, want 0/1/0", run.Created, run.Updated, run.Skipped)
	}
	if store.saveCalls != 1 || store.createCalls != 0 {
		t.Errorf("calls = create %d save %d, want 0 and 1", store.createCalls, store.saveCalls)
	}
	saved := store.saved["res.partner"]
	if len(saved) != 1 || saved[0].ID != 42 {
		t.Fatalf("saved = %v, want one update of record 42", saved)
	}
	if saved[0].Fields["name"] != "Acme" {
		t.Errorf("saved fields = %v, want name Acme", saved[0].Fields)
	}
	wantEntry(t, run, StatusDone, "line 2: record 42 updated")
}

func TestRunnerRun_SkipExisting(t *testing.T) {
	store := partnerStore()
	store.searchFn = hitOn("Acme", Record{ID: 42})

	p := runProfile()
	p.SkipRepeated = true

	run, err := newTestRunner(store, nil).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount\nAcme;9,00\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Created != 0 || run.Skipped != 1 {
		t.Errorf("counters = created %d skipped %d, want 0 and 1", run.Created, run.Skipped)
	}
	if store.createCalls != 0 || store.saveCalls != 0 {
		t.Error("store written for a skipped row")
	}
	wantEntry(t, run, StatusSkipped, "line 2: record 42 already exists")
}

func TestRunnerRun_InFileRepeat(t *testing.T) {
	p := runProfile()
	p.SkipRepeated = true

	run, err := newTestRunner(partnerStore(), nil).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount\nAcme;1,00\nAcme;2,00\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Created != 1 || run.Skipped != 1 {
		t.Errorf("counters = created %d skipped %d, want 1 and 1", run.Created, run.Skipped)
	}
	wantEntry(t, run, StatusSkipped, "line 3: row repeated in file")
}

func TestRunnerRun_RequiredMissing(t *testing.T) {
	run, err := newTestRunner(partnerStore(), nil).Run(context.Background(), runProfile(), "x.csv",
		strings.NewReader("name;amount\n;5,00\nAcme;1,00\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Created != 1 || run.Skipped != 1 {
		t.Errorf("counters = created %d skipped %d, want 1 and 1", run.Created, run.Skipped)
	}
	wantEntry(t, run, StatusSkipped, `required field "name" is missing`)
}

func TestRunnerRun_Excluded(t *testing.T) {
	p := runProfile()
	p.Exclude = []FilterClause{{Cell: 0, Value: "TOTAL"}}

	run, err := newTestRunner(partnerStore(), nil).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount\nAcme;1,00\nTOTAL;99,00\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Created != 1 || run.Skipped != 1 {
		t.Errorf("counters = created %d skipped %d, want 1 and 1", run.Created, run.Skipped)
	}
	wantEntry(t, run, StatusSkipped, "row excluded by profile filter")
}

func TestRunnerRun_RowError(t *testing.T) {
	run, err := newTestRunner(partnerStore(), nil).Run(context.Background(), runProfile(), "x.csv",
		strings.NewReader("name;amount\nAcme;xx\nBcn;1,00\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.State != RunStateDone {
		t.Errorf("State = %s, want done: a bad row must not abort the run", run.State)
	}
	if run.Created != 1 || run.Skipped != 1 {
		t.Errorf("counters = created %d skipped %d, want 1 and 1", run.Created, run.Skipped)
	}
	wantEntry(t, run, StatusSkipped, `error importing numeric for field "amount"`)
}

func TestRunnerRun_ResolverWarning(t *testing.T) {
	store := partnerStore()
	store.searchFn = func(collection string, _ []Condition, _ int) ([]Record, error) {
		if collection == "res.category" {
			return nil, errors.New("connection refused")
		}
		return nil, nil
	}

	p := runProfile()
	p.Columns = append(p.Columns, ColumnMapping{Field: "category", Cells: []int{2}, Kind: KindRelationOne})

	run, err := newTestRunner(store, nil).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount;category\nAcme;1,00;Gold\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The failed lookup is a warning; the draft still imports.
	if run.Created != 1 {
		t.Errorf("Created = %d, want 1", run.Created)
	}
	wantEntry(t, run, StatusError, `resolver "lookup" failed for field "category"`)
}

func TestRunnerRun_CreateFailure(t *testing.T) {
	store := partnerStore()
	store.createErr = errors.New("connection refused")

	run, err := newTestRunner(store, nil).Run(context.Background(), runProfile(), "x.csv",
		strings.NewReader("name;amount\nAcme;1,00\n"))
	if err == nil {
		t.Fatal("Run() error = nil, want store failure")
	}
	if run == nil {
		t.Fatal("Run() run = nil, want the failed run")
	}

	if run.State != RunStateError {
		t.Errorf("State = %s, want %s", run.State, RunStateError)
	}
	if !strings.Contains(run.Failure, "create records in res.partner") {
		t.Errorf("Failure = %q, want create context", run.Failure)
	}
	last := run.Entries[len(run.Entries)-1]
	if last.Status != StatusError || !strings.HasPrefix(last.Message, "import_unsuccessfully: ") {
		t.Errorf("summary entry = %s %q, want import_unsuccessfully", last.Status, last.Message)
	}
}

func TestRunnerRun_SaveFailure(t *testing.T) {
	store := partnerStore()
	store.searchFn = hitOn("Acme", Record{ID: 42})
	store.saveErr = errors.New("connection reset")

	p := runProfile()
	p.UpdateRecord = true

	run, err := newTestRunner(store, nil).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount\nAcme;1,00\n"))
	if err == nil {
		t.Fatal("Run() error = nil, want store failure")
	}
	if run.State != RunStateError || !strings.Contains(run.Failure, "save records in res.partner") {
		t.Errorf("run = %s %q, want save failure", run.State, run.Failure)
	}
}

func TestRunnerRun_ReadFailure(t *testing.T) {
	p := runProfile()
	p.Quote = "'"

	run, err := newTestRunner(partnerStore(), nil).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount\n'unclosed;1\n"))
	if err == nil {
		t.Fatal("Run() error = nil, want parse failure")
	}
	if run.State != RunStateError {
		t.Errorf("State = %s, want %s", run.State, RunStateError)
	}
	wantEntry(t, run, StatusError, "parse rows")
}

func TestRunnerRun_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := newTestRunner(partnerStore(), nil).Run(ctx, runProfile(), "x.csv",
		strings.NewReader("name;amount\nAcme;1,00\n"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if run.State != RunStateError {
		t.Errorf("State = %s, want %s", run.State, RunStateError)
	}
}

// ----------------------------------------------------------------------------
// Notification Tests
// ----------------------------------------------------------------------------

func TestRunnerRun_Notify(t *testing.T) {
	notifier := &fakeNotifier{}
	p := runProfile()
	p.Notify = true

	run, err := newTestRunner(partnerStore(), notifier).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount\nAcme;1,00\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(notifier.runs) != 1 || notifier.runs[0] != run {
		t.Fatalf("notifier runs = %v, want the finished run once", notifier.runs)
	}
}

func TestRunnerRun_NotifyOnFailure(t *testing.T) {
	store := partnerStore()
	store.createErr = errors.New("boom")
	notifier := &fakeNotifier{}

	p := runProfile()
	p.Notify = true

	_, err := newTestRunner(store, notifier).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount\nAcme;1,00\n"))
	if err == nil {
		t.Fatal("Run() error = nil, want store failure")
	}
	if len(notifier.runs) != 1 {
		t.Errorf("notifier runs = %d, want the failed run too", len(notifier.runs))
	}
}

func TestRunnerRun_NotifyOff(t *testing.T) {
	notifier := &fakeNotifier{}

	_, err := newTestRunner(partnerStore(), notifier).Run(context.Background(), runProfile(), "x.csv",
		strings.NewReader("name;amount\nAcme;1,00\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(notifier.runs) != 0 {
		t.Errorf("notifier runs = %d, want none without the notify flag", len(notifier.runs))
	}
}

func TestRunnerRun_NotifyFailureSwallowed(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	p := runProfile()
	p.Notify = true

	run, err := newTestRunner(partnerStore(), notifier).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount\nAcme;1,00\n"))
	if err != nil {
		t.Fatalf("Run() error = %v, notification failures must not fail the run", err)
	}
	if run.State != RunStateDone {
		t.Errorf("State = %s, want %s", run.State, RunStateDone)
	}
}

func TestRunnerRun_NotifyWithoutNotifier(t *testing.T) {
	p := runProfile()
	p.Notify = true

	run, err := newTestRunner(partnerStore(), nil).Run(context.Background(), p, "x.csv",
		strings.NewReader("name;amount\nAcme;1,00\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.State != RunStateDone {
		t.Errorf("State = %s, want %s", run.State, RunStateDone)
	}
}

// ----------------------------------------------------------------------------
// Grouped end-to-end Test
// ----------------------------------------------------------------------------

func TestRunnerRun_Grouped(t *testing.T) {
	store := partnerStore()

	p := NewProfile("partners", "res.partner")
	p.Strategy = StrategyGrouped
	p.Columns = []ColumnMapping{
		{Field: "name", Cells: []int{0}, Kind: KindChar},
		{Field: "street", Cells: []int{1}, Kind: KindChar, ChildOf: "addresses"},
	}

	src := strings.NewReader("name;street\nAcme;Main St\n;Second St\nBcn;Third St\n")
	run, err := newTestRunner(store, nil).Run(context.Background(), p, "x.csv", src)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if run.Created != 2 {
		t.Fatalf("Created = %d, want 2 grouped records", run.Created)
	}
	created := store.created["res.partner"]
	first, ok := created[0]["addresses"].([]FieldMap)
	if !ok || len(first) != 2 {
		t.Fatalf("first record addresses = %v, want both streets folded in", created[0]["addresses"])
	}
	if first[0]["street"] != "Main St" || first[1]["street"] != "Second St" {
		t.Errorf("folded streets = %v, %v", first[0]["street"], first[1]["street"])
	}
}
