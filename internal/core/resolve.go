package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ResolveRequest carries everything a resolver needs to turn raw cell
// text into related-record ids: the store, the relation's target
// collection and the non-empty cell values, in cell order.
type ResolveRequest struct {
	Store      RecordStore
	Collection string
	Field      string
	Values     []string
}

// RelationResolver maps raw cell values to ids in the relation's target
// collection. Implementations must not mutate the request. Returning an
// empty slice with a nil error means "no match", which decodes to an
// absent value; returning an error gets downgraded to a logged warning.
type RelationResolver interface {
	Resolve(ctx context.Context, req ResolveRequest) ([]int64, error)
}

// ResolverFunc adapts a plain function to the RelationResolver interface.
type ResolverFunc func(ctx context.Context, req ResolveRequest) ([]int64, error)

func (f ResolverFunc) Resolve(ctx context.Context, req ResolveRequest) ([]int64, error) {
	return f(ctx, req)
}

var (
	resolverMu sync.RWMutex
	resolvers  = map[string]RelationResolver{}
)

// RegisterResolver makes a resolver available to column mappings under
// the given name. Registering a duplicate name panics; registration is
// expected to happen from init functions or during startup wiring.
func RegisterResolver(name string, r RelationResolver) {
	resolverMu.Lock()
	defer resolverMu.Unlock()
	if _, dup := resolvers[name]; dup {
		panic(fmt.Sprintf("core: duplicate resolver registration for %q", name))
	}
	resolvers[name] = r
}

// Resolver returns the resolver registered under name.
func Resolver(name string) (RelationResolver, bool) {
	resolverMu.RLock()
	defer resolverMu.RUnlock()
	r, ok := resolvers[name]
	return r, ok
}

// ResolverNames lists every registered resolver, sorted.
func ResolverNames() []string {
	resolverMu.RLock()
	defer resolverMu.RUnlock()
	names := make([]string, 0, len(resolvers))
	for name := range resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolverFor picks the resolver a mapping asks for, falling back to the
// kind's default when the mapping names none: single relations look up,
// multi relations link whatever already exists.
func resolverFor(m *ColumnMapping) (RelationResolver, string, error) {
	name := m.Resolver
	if name == "" {
		if m.Kind == KindRelationMany {
			name = ResolverAdd
		} else {
			name = ResolverLookup
		}
	}
	r, ok := Resolver(name)
	if !ok {
		return nil, "", &ProfileConfigError{Field: m.Field, Reason: "unknown resolver " + name}
	}
	return r, name, nil
}

// Builtin resolver names.
const (
	ResolverLookup = "lookup"
	ResolverAdd    = "add"
	ResolverCreate = "create"
)

func init() {
	RegisterResolver(ResolverLookup, ResolverFunc(resolveLookup))
	RegisterResolver(ResolverAdd, ResolverFunc(resolveAdd))
	RegisterResolver(ResolverCreate, ResolverFunc(resolveCreate))
}

// resolveLookup matches the first value against the target collection's
// display field and returns the first hit, or nothing.
func resolveLookup(ctx context.Context, req ResolveRequest) ([]int64, error) {
	if len(req.Values) == 0 {
		return nil, nil
	}
	display, err := req.Store.DisplayField(req.Collection)
	if err != nil {
		return nil, err
	}
	found, err := req.Store.Search(ctx, req.Collection, []Condition{
		{Field: display, Op: OpEqual, Value: req.Values[0]},
	}, 1)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return []int64{found[0].ID}, nil
}

// resolveAdd links every value that names an existing record; values
// with no match are dropped rather than created.
func resolveAdd(ctx context.Context, req ResolveRequest) ([]int64, error) {
	display, err := req.Store.DisplayField(req.Collection)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, value := range req.Values {
		for _, part := range splitRelationValue(value) {
			found, err := req.Store.Search(ctx, req.Collection, []Condition{
				{Field: display, Op: OpEqual, Value: part},
			}, 1)
			if err != nil {
				return nil, err
			}
			if len(found) > 0 {
				ids = append(ids, found[0].ID)
			}
		}
	}
	return ids, nil
}

// resolveCreate links every value, creating target records for the ones
// that do not exist yet.
func resolveCreate(ctx context.Context, req ResolveRequest) ([]int64, error) {
	display, err := req.Store.DisplayField(req.Collection)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, value := range req.Values {
		for _, part := range splitRelationValue(value) {
			found, err := req.Store.Search(ctx, req.Collection, []Condition{
				{Field: display, Op: OpEqual, Value: part},
			}, 1)
			if err != nil {
				return nil, err
			}
			if len(found) > 0 {
				ids = append(ids, found[0].ID)
				continue
			}
			created, err := req.Store.Create(ctx, req.Collection, []FieldMap{{display: part}})
			if err != nil {
				return nil, err
			}
			if len(created) == 0 {
				return nil, fmt.Errorf("create in %s returned no record", req.Collection)
			}
			ids = append(ids, created[0].ID)
		}
	}
	return ids, nil
}

// splitRelationValue breaks one cell into individual relation names.
// Multi-value cells separate names with commas.
func splitRelationValue(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
