package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle of a run. Runs start as drafts and end in
// exactly one of the two terminal states; there are no transitions out
// of done or error.
type RunState string

const (
	RunStateDraft RunState = "draft"
	RunStateDone  RunState = "done"
	RunStateError RunState = "error"
)

// Run is one execution of a profile against one file: the outcome
// counters, the append-only log and the terminal state. Failure carries
// the fatal error text when the state is error.
type Run struct {
	ID        uuid.UUID  `json:"id"`
	ProfileID int64      `json:"profileId"`
	Profile   string     `json:"profile"`
	Filename  string     `json:"filename"`
	State     RunState   `json:"state"`
	Started   time.Time  `json:"startedAt"`
	Finished  time.Time  `json:"finishedAt,omitempty"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Skipped   int        `json:"skipped"`
	Entries   []LogEntry `json:"entries,omitempty"`
	Failure   string     `json:"failure,omitempty"`
}

// Report renders the whole log, one formatted line per entry. This is
// the payload sent by notification.
func (r *Run) Report() string {
	lines := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		lines[i] = e.Line(r.Profile, r.ProfileID, r.Filename)
	}
	return strings.Join(lines, "\n")
}

func (r *Run) log(at time.Time, status LogStatus, format string, args ...any) {
	r.Entries = append(r.Entries, LogEntry{
		Time:    at,
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	})
}

// RunNotifier delivers a finished run's report to whoever the profile
// says should hear about it. Implementations live with the caller; the
// runner only needs this one method.
type RunNotifier interface {
	NotifyRun(ctx context.Context, profile *Profile, run *Run) error
}

// Runner executes profiles against files. One runner is safe for
// concurrent runs; all per-run state lives in the Run.
type Runner struct {
	store    RecordStore
	log      *slog.Logger
	notifier RunNotifier
	now      func() time.Time
}

// NewRunner wires a runner to its record store. The notifier is
// optional; without one, profiles asking for notification only get a
// log line.
func NewRunner(store RecordStore, logger *slog.Logger, notifier RunNotifier) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, log: logger, notifier: notifier, now: time.Now}
}

// Run imports one file through a profile. The returned run always
// carries the full log and counters; the error mirrors the run's
// terminal state, nil for done and the fatal failure for error. Invalid
// profiles fail before a run is created.
func (r *Runner) Run(ctx context.Context, profile *Profile, filename string, src io.Reader) (*Run, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.New(),
		ProfileID: profile.ID,
		Profile:   profile.Name,
		Filename:  filename,
		State:     RunStateDraft,
		Started:   r.now(),
	}
	log := r.log.With("run", run.ID, "profile", profile.Name, "file", filename)
	log.Info("run started", "collection", profile.Collection, "strategy", profile.Strategy)

	rows, err := ReadRows(src, profile)
	if err != nil {
		return r.fail(ctx, profile, run, log, err)
	}

	decoder, err := NewDecoder(profile, r.store, log)
	if err != nil {
		return r.fail(ctx, profile, run, log, err)
	}

	var (
		assembler = NewAssembler(profile, decoder, rows)
		matcher   = NewMatcher(profile, r.store)
		creates   []FieldMap
		updates   []Update
	)
	for {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, profile, run, log, err)
		}

		draft, err := assembler.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return r.fail(ctx, profile, run, log, err)
		}

		for _, warning := range draft.Warnings {
			run.log(r.now(), StatusError, "line %d: %v", draft.Line, warning)
		}
		if draft.Err != nil {
			run.Skipped++
			run.log(r.now(), StatusSkipped, "line %d: %v", draft.Line, draft.Err)
			continue
		}
		if field := draft.MissingRequired(); field != "" {
			run.Skipped++
			run.log(r.now(), StatusSkipped, "line %d: %v", draft.Line, &RequiredFieldError{Field: field})
			continue
		}
		if profile.Excluded(draft.Row) {
			run.Skipped++
			run.log(r.now(), StatusSkipped, "line %d: %v", draft.Line, ErrRowExcluded)
			continue
		}

		decision, err := matcher.Decide(ctx, draft)
		if err != nil {
			return r.fail(ctx, profile, run, log, err)
		}
		switch decision.Action {
		case ActionCreate:
			creates = append(creates, draft.FieldMap())
			run.Created++
			run.log(r.now(), StatusDone, "line %d: record created", draft.Line)
		case ActionUpdate:
			updates = append(updates, Update{ID: decision.Target, Fields: draft.FieldMap()})
			run.Updated++
			run.log(r.now(), StatusDone, "line %d: record %d updated", draft.Line, decision.Target)
		case ActionSkip:
			run.Skipped++
			if decision.InFile {
				run.log(r.now(), StatusSkipped, "line %d: row repeated in file", draft.Line)
			} else {
				run.log(r.now(), StatusSkipped, "line %d: record %d already exists", draft.Line, decision.Target)
			}
		}
	}

	if len(creates) > 0 {
		if _, err := r.store.Create(ctx, profile.Collection, creates); err != nil {
			return r.fail(ctx, profile, run, log, fmt.Errorf("create records in %s: %w", profile.Collection, err))
		}
	}
	if len(updates) > 0 {
		if err := r.store.Save(ctx, profile.Collection, updates); err != nil {
			return r.fail(ctx, profile, run, log, fmt.Errorf("save records in %s: %w", profile.Collection, err))
		}
	}

	run.State = RunStateDone
	run.Finished = r.now()
	run.log(run.Finished, StatusDone, "import_successfully: created %d, updated %d, skipped %d",
		run.Created, run.Updated, run.Skipped)
	log.Info("run finished",
		"created", run.Created,
		"updated", run.Updated,
		"skipped", run.Skipped,
	)

	r.notify(ctx, profile, run, log)
	return run, nil
}

// fail moves the run to its terminal error state. Everything imported so
// far is discarded by never reaching the batched store calls, so an
// aborted run writes nothing.
func (r *Runner) fail(ctx context.Context, profile *Profile, run *Run, log *slog.Logger, err error) (*Run, error) {
	run.State = RunStateError
	run.Failure = err.Error()
	run.Finished = r.now()
	run.log(run.Finished, StatusError, "import_unsuccessfully: %v", err)
	log.Error("run failed", "error", err)

	r.notify(ctx, profile, run, log)
	return run, err
}

// notify sends the report when the profile asks for it. Delivery
// failures are logged and swallowed; the run outcome never depends on
// the notifier.
func (r *Runner) notify(ctx context.Context, profile *Profile, run *Run, log *slog.Logger) {
	if !profile.Notify {
		return
	}
	if r.notifier == nil {
		log.Warn("notification requested but no notifier configured")
		return
	}
	if err := r.notifier.NotifyRun(ctx, profile, run); err != nil {
		log.Error("notification failed", "error", err)
	}
}
