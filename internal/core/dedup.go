package core

import (
	"context"
	"fmt"
	"strings"
)

// Action says what the runner should do with a draft after duplicate
// matching.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Decision is the outcome of duplicate matching for one draft. Target is
// the matched record for updates and skips; InFile marks a duplicate of
// an earlier row in the same file, which no store search can see because
// creates are batched until the end of the run.
type Decision struct {
	Action Action
	Target int64
	InFile bool
}

// Matcher decides between creating, updating and skipping by searching
// the store with each draft's domain. One matcher serves one run: it
// remembers the domains of the drafts it has already sent to create so
// repeated rows inside a single file are caught too.
type Matcher struct {
	profile *Profile
	store   RecordStore
	seen    map[string]struct{}
}

func NewMatcher(profile *Profile, store RecordStore) *Matcher {
	return &Matcher{profile: profile, store: store, seen: map[string]struct{}{}}
}

// Decide runs the decision table for one draft:
//
//	no domain fields        -> create
//	no match                -> create (or skip, when the same domain
//	                           already created a draft this run)
//	match + UpdateRecord    -> update the match
//	match + SkipRepeated    -> skip, reporting the match
//	match, neither flag     -> create a duplicate
//
// UpdateRecord wins over SkipRepeated when both are set. Search failures
// are store failures and abort the run.
func (m *Matcher) Decide(ctx context.Context, draft *Draft) (Decision, error) {
	domain := draft.Domain()
	if len(domain) == 0 {
		return Decision{Action: ActionCreate}, nil
	}

	found, err := m.store.Search(ctx, m.profile.Collection, domain, 1)
	if err != nil {
		return Decision{}, fmt.Errorf("duplicate search in %s: %w", m.profile.Collection, err)
	}

	if len(found) > 0 {
		target := found[0].ID
		if m.profile.UpdateRecord {
			return Decision{Action: ActionUpdate, Target: target}, nil
		}
		if m.profile.SkipRepeated {
			return Decision{Action: ActionSkip, Target: target}, nil
		}
		return Decision{Action: ActionCreate}, nil
	}

	if m.profile.SkipRepeated && m.profile.Strategy != StrategyGrouped {
		key := domainKey(domain)
		if _, dup := m.seen[key]; dup {
			return Decision{Action: ActionSkip, InFile: true}, nil
		}
		m.seen[key] = struct{}{}
	}
	return Decision{Action: ActionCreate}, nil
}

// domainKey flattens a domain into a comparable string. Conditions are
// built in mapping order, so equal domains flatten identically.
func domainKey(domain []Condition) string {
	var b strings.Builder
	for _, c := range domain {
		fmt.Fprintf(&b, "%s\x00%s\x00%v\x1f", c.Field, c.Op, c.Value)
	}
	return b.String()
}
