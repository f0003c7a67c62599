package profilefile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSchema(t *testing.T) {
	doc := []byte(`
collections:
  - name: sale
    display: reference
    fields:
      - name: reference
        required: true
      - name: total
        digits: 2
      - name: lines
        relation: sale_line
        backref: sale
  - name: sale_line
    fields:
      - name: product
`)

	schema, err := ParseSchema(doc)
	if err != nil {
		t.Fatalf("ParseSchema() error = %v", err)
	}

	display, err := schema.DisplayField("sale")
	if err != nil {
		t.Fatalf("DisplayField() error = %v", err)
	}
	if display != "reference" {
		t.Errorf("DisplayField(sale) = %q, want reference", display)
	}

	// Omitted display falls back to name
	display, err = schema.DisplayField("sale_line")
	if err != nil {
		t.Fatalf("DisplayField() error = %v", err)
	}
	if display != "name" {
		t.Errorf("DisplayField(sale_line) = %q, want name", display)
	}

	meta, err := schema.FieldMeta("sale", "total")
	if err != nil {
		t.Fatalf("FieldMeta() error = %v", err)
	}
	if meta.Digits != 2 {
		t.Errorf("Digits = %d, want 2", meta.Digits)
	}

	meta, err = schema.FieldMeta("sale", "lines")
	if err != nil {
		t.Fatalf("FieldMeta() error = %v", err)
	}
	if meta.Relation != "sale_line" {
		t.Errorf("Relation = %q, want sale_line", meta.Relation)
	}

	c, _ := schema.Collection("sale")
	if f, _ := c.Field("lines"); f.Backref != "sale" {
		t.Errorf("Backref = %q, want sale", f.Backref)
	}
}

func TestParseSchema_Empty(t *testing.T) {
	_, err := ParseSchema([]byte("collections: []"))
	if err == nil {
		t.Fatal("ParseSchema() with no collections should fail")
	}
	if !strings.Contains(err.Error(), "no collections") {
		t.Errorf("error = %v, want no collections", err)
	}
}

func TestParseSchema_MissingName(t *testing.T) {
	doc := []byte(`
collections:
  - display: name
    fields:
      - name: x
`)
	_, err := ParseSchema(doc)
	if err == nil {
		t.Fatal("ParseSchema() with unnamed collection should fail")
	}
	if !strings.Contains(err.Error(), "without a name") {
		t.Errorf("error = %v, want without a name", err)
	}
}

func TestParseSchema_Duplicate(t *testing.T) {
	doc := []byte(`
collections:
  - name: sale
    fields:
      - name: reference
  - name: sale
    fields:
      - name: reference
`)
	_, err := ParseSchema(doc)
	if err == nil {
		t.Fatal("ParseSchema() with duplicate collection should fail")
	}
	if !strings.Contains(err.Error(), "twice") {
		t.Errorf("error = %v, want twice", err)
	}
}

func TestParseSchema_BadYAML(t *testing.T) {
	_, err := ParseSchema([]byte("collections: [unclosed"))
	if err == nil {
		t.Fatal("ParseSchema() with malformed yaml should fail")
	}
	if !strings.Contains(err.Error(), "parse schema yaml") {
		t.Errorf("error = %v, want parse schema yaml", err)
	}
}

func TestLoadSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	doc := `
collections:
  - name: sale
    fields:
      - name: reference
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	schema, err := LoadSchema(path)
	if err != nil {
		t.Fatalf("LoadSchema() error = %v", err)
	}
	if _, ok := schema.Collection("sale"); !ok {
		t.Error("Collection(sale) not found after load")
	}
}

func TestLoadSchema_MissingFile(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadSchema() with missing file should fail")
	}
}
