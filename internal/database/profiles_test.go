package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/NaN-tic/csvimport/internal/core"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleProfile(name string) *core.Profile {
	p := core.NewProfile(name, "res.partner")
	p.Columns = []core.ColumnMapping{
		{Field: "name", Cells: []int{0}, Kind: core.KindChar, AddToDomain: true},
		{Field: "amount", Cells: []int{1}, Kind: core.KindNumeric},
	}
	p.Exclude = []core.FilterClause{{Cell: 2, Op: "contains", Value: "internal"}}
	return p
}

func TestProfileRepo_CreateAndGet(t *testing.T) {
	repo := NewProfileRepo(testDB(t))
	ctx := context.Background()

	p := sampleProfile("partners")
	p.SkipRepeated = true
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.ID == 0 {
		t.Fatal("Create() left ID unset")
	}

	got, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "partners" || got.Collection != "res.partner" {
		t.Errorf("Get() = %s/%s, want partners/res.partner", got.Name, got.Collection)
	}
	if !got.SkipRepeated {
		t.Error("SkipRepeated = false, want true")
	}
	if len(got.Columns) != 2 {
		t.Fatalf("len(Columns) = %d, want 2", len(got.Columns))
	}
	if got.Columns[0].Field != "name" || !got.Columns[0].AddToDomain {
		t.Errorf("Columns[0] = %+v", got.Columns[0])
	}
	if len(got.Exclude) != 1 || got.Exclude[0].Value != "internal" {
		t.Errorf("Exclude = %+v", got.Exclude)
	}
}

func TestProfileRepo_GetByName(t *testing.T) {
	repo := NewProfileRepo(testDB(t))
	ctx := context.Background()

	p := sampleProfile("partners")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByName(ctx, "partners")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("GetByName() id = %d, want %d", got.ID, p.ID)
	}

	if _, err := repo.GetByName(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByName(missing) error = %v, want ErrNotFound", err)
	}
}

func TestProfileRepo_Create_Invalid(t *testing.T) {
	repo := NewProfileRepo(testDB(t))

	p := core.NewProfile("broken", "")
	err := repo.Create(context.Background(), p)
	if err == nil {
		t.Fatal("Create() with invalid profile should fail")
	}
}

func TestProfileRepo_List(t *testing.T) {
	repo := NewProfileRepo(testDB(t))
	ctx := context.Background()

	first := sampleProfile("first")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second := sampleProfile("second")
	second.Active = false
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	all, err := repo.List(ctx, false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List() returned %d profiles, want 2", len(all))
	}
	// Newest first
	if all[0].Name != "second" {
		t.Errorf("List()[0] = %q, want second", all[0].Name)
	}

	active, err := repo.List(ctx, true)
	if err != nil {
		t.Fatalf("List(activeOnly) error = %v", err)
	}
	if len(active) != 1 || active[0].Name != "first" {
		t.Errorf("List(activeOnly) = %v, want only first", active)
	}
}

func TestProfileRepo_Update(t *testing.T) {
	repo := NewProfileRepo(testDB(t))
	ctx := context.Background()

	p := sampleProfile("partners")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	p.Name = "customers"
	p.UpdateRecord = true
	p.Columns = p.Columns[:1]
	if err := repo.Update(ctx, p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "customers" || !got.UpdateRecord {
		t.Errorf("Get() after update = %+v", got)
	}
	if len(got.Columns) != 1 {
		t.Errorf("len(Columns) = %d, want 1", len(got.Columns))
	}
}

func TestProfileRepo_Update_NotFound(t *testing.T) {
	repo := NewProfileRepo(testDB(t))

	p := sampleProfile("ghost")
	p.ID = 42
	if err := repo.Update(context.Background(), p); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestProfileRepo_Delete(t *testing.T) {
	repo := NewProfileRepo(testDB(t))
	ctx := context.Background()

	p := sampleProfile("partners")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	if err := repo.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}

func TestInit_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Init(path)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	repo := NewProfileRepo(db)
	p := sampleProfile("partners")
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	db.Close()

	// Migrations are recorded, reopening must not reapply them
	db, err = Init(path)
	if err != nil {
		t.Fatalf("Init() reopen error = %v", err)
	}
	defer db.Close()
	got, err := NewProfileRepo(db).Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Name != "partners" {
		t.Errorf("Get() after reopen = %q, want partners", got.Name)
	}
}
