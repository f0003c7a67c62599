package store

import (
	"strings"
	"testing"
)

func testSchema() *Schema {
	s := NewSchema()
	s.Register(Collection{
		Name:    "res.partner",
		Display: "name",
		Fields: []Field{
			{Name: "name", Required: true},
			{Name: "amount", Digits: 2},
			{Name: "category", Relation: "res.category"},
			{Name: "addresses", Relation: "res.address", Backref: "partner"},
		},
	})
	s.Register(Collection{
		Name:   "res.category",
		Fields: []Field{{Name: "name", Required: true}},
	})
	return s
}

func TestSchemaCollection(t *testing.T) {
	s := testSchema()

	c, ok := s.Collection("res.partner")
	if !ok {
		t.Fatal("Collection(res.partner) not found")
	}
	if c.Display != "name" {
		t.Errorf("Display = %q, want %q", c.Display, "name")
	}
	if len(c.Fields) != 4 {
		t.Errorf("len(Fields) = %d, want 4", len(c.Fields))
	}

	if _, ok := s.Collection("res.missing"); ok {
		t.Error("Collection(res.missing) found, want missing")
	}
}

func TestCollectionField(t *testing.T) {
	s := testSchema()
	c, _ := s.Collection("res.partner")

	f, ok := c.Field("addresses")
	if !ok {
		t.Fatal("Field(addresses) not found")
	}
	if f.Relation != "res.address" {
		t.Errorf("Relation = %q, want %q", f.Relation, "res.address")
	}
	if f.Backref != "partner" {
		t.Errorf("Backref = %q, want %q", f.Backref, "partner")
	}

	if _, ok := c.Field("missing"); ok {
		t.Error("Field(missing) found, want missing")
	}
}

func TestSchemaRegister_DefaultDisplay(t *testing.T) {
	s := testSchema()

	// res.category registered without an explicit display field
	display, err := s.DisplayField("res.category")
	if err != nil {
		t.Fatalf("DisplayField() error = %v", err)
	}
	if display != "name" {
		t.Errorf("DisplayField() = %q, want %q", display, "name")
	}
}

func TestSchemaRegister_DuplicatePanics(t *testing.T) {
	s := testSchema()

	defer func() {
		if recover() == nil {
			t.Error("Register() with duplicate name should panic")
		}
	}()
	s.Register(Collection{Name: "res.partner"})
}

func TestSchemaNames(t *testing.T) {
	s := testSchema()

	got := s.Names()
	want := []string{"res.category", "res.partner"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSchemaFieldMeta(t *testing.T) {
	s := testSchema()

	meta, err := s.FieldMeta("res.partner", "amount")
	if err != nil {
		t.Fatalf("FieldMeta() error = %v", err)
	}
	if meta.Digits != 2 {
		t.Errorf("Digits = %d, want 2", meta.Digits)
	}

	meta, err = s.FieldMeta("res.partner", "category")
	if err != nil {
		t.Fatalf("FieldMeta() error = %v", err)
	}
	if meta.Relation != "res.category" {
		t.Errorf("Relation = %q, want %q", meta.Relation, "res.category")
	}

	meta, err = s.FieldMeta("res.partner", "name")
	if err != nil {
		t.Fatalf("FieldMeta() error = %v", err)
	}
	if !meta.Required {
		t.Error("Required = false, want true")
	}
}

func TestSchemaFieldMeta_Unknown(t *testing.T) {
	s := testSchema()

	if _, err := s.FieldMeta("res.missing", "name"); err == nil {
		t.Error("FieldMeta() with unknown collection should fail")
	} else if !strings.Contains(err.Error(), "unknown collection") {
		t.Errorf("error = %v, want unknown collection", err)
	}

	if _, err := s.FieldMeta("res.partner", "missing"); err == nil {
		t.Error("FieldMeta() with unknown field should fail")
	} else if !strings.Contains(err.Error(), "unknown field") {
		t.Errorf("error = %v, want unknown field", err)
	}
}

func TestSchemaDisplayField_Unknown(t *testing.T) {
	s := testSchema()

	if _, err := s.DisplayField("res.missing"); err == nil {
		t.Error("DisplayField() with unknown collection should fail")
	}
}
