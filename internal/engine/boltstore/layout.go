package boltstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lockplane/storemigrate/database"
	"github.com/lockplane/storemigrate/internal/migration"
	"github.com/lockplane/storemigrate/internal/schema"
)

// Field types a layout may declare.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeJSON   = "json"
)

// Field is one field of a record.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
	Default  any    `json:"default,omitempty"`
}

// BucketLayout is the ordered field list of the records in one bucket.
type BucketLayout struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Layout is one version of a bolt store: its buckets and their record fields.
type Layout struct {
	version     string
	fingerprint string

	Buckets []BucketLayout `json:"buckets"`
}

// NewLayout validates buckets and computes the layout's fingerprint.
func NewLayout(version string, buckets ...BucketLayout) (*Layout, error) {
	l := &Layout{version: version, Buckets: buckets}
	if err := l.init(); err != nil {
		return nil, err
	}
	return l, nil
}

// ParseLayout decodes a layout file.
func ParseLayout(version string, data []byte) (*Layout, error) {
	l := &Layout{version: version}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("failed to parse layout %s: %w", version, err)
	}
	if err := l.init(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Layout) init() error {
	buckets := make(map[string]bool, len(l.Buckets))
	for _, b := range l.Buckets {
		if b.Name == "" || b.Name == metaBucket {
			return fmt.Errorf("layout %s: invalid bucket name %q", l.version, b.Name)
		}
		if buckets[b.Name] {
			return fmt.Errorf("layout %s: bucket %q declared twice", l.version, b.Name)
		}
		buckets[b.Name] = true

		fields := make(map[string]bool, len(b.Fields))
		for _, f := range b.Fields {
			if f.Name == "" {
				return fmt.Errorf("layout %s: bucket %q has a field without a name", l.version, b.Name)
			}
			if fields[f.Name] {
				return fmt.Errorf("layout %s: field %s.%s declared twice", l.version, b.Name, f.Name)
			}
			fields[f.Name] = true
			if !validType(f.Type) {
				return fmt.Errorf("layout %s: field %s.%s has unknown type %q", l.version, b.Name, f.Name, f.Type)
			}
			if f.Default != nil {
				if _, err := coerce(f.Default, f.Type); err != nil {
					return fmt.Errorf("layout %s: default of %s.%s: %w", l.version, b.Name, f.Name, err)
				}
			}
		}
	}

	hash, err := schema.ComputeHash(l.asSchema())
	if err != nil {
		return fmt.Errorf("failed to hash layout %s: %w", l.version, err)
	}
	l.fingerprint = hash
	return nil
}

func validType(t string) bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeJSON:
		return true
	}
	return false
}

// asSchema describes the layout as tables so it shares the relational
// fingerprint.
func (l *Layout) asSchema() *database.Schema {
	s := &database.Schema{}
	for _, b := range l.Buckets {
		table := database.Table{Name: b.Name}
		for _, f := range b.Fields {
			col := database.Column{
				Name:     f.Name,
				Type:     strings.ToUpper(f.Type),
				Nullable: !f.Required,
			}
			if f.Default != nil {
				encoded, _ := json.Marshal(f.Default)
				def := string(encoded)
				col.Default = &def
			}
			table.Columns = append(table.Columns, col)
		}
		s.Tables = append(s.Tables, table)
	}
	return s
}

func (l *Layout) Version() string { return l.version }

func (l *Layout) Fingerprint() string { return l.fingerprint }

// Bucket returns the named bucket layout, or nil.
func (l *Layout) Bucket(name string) *BucketLayout {
	for i := range l.Buckets {
		if l.Buckets[i].Name == name {
			return &l.Buckets[i]
		}
	}
	return nil
}

// Field returns the named field, or nil.
func (b *BucketLayout) Field(name string) *Field {
	for i := range b.Fields {
		if b.Fields[i].Name == name {
			return &b.Fields[i]
		}
	}
	return nil
}

// Normalize converts every field of rec to its declared type, fills defaults
// and drops fields the layout does not declare.
func (b *BucketLayout) Normalize(rec Record) (Record, error) {
	out := make(Record, len(b.Fields))
	for _, f := range b.Fields {
		v := rec[f.Name]
		if v == nil {
			v = f.Default
		}
		if v == nil {
			if f.Required {
				return nil, fmt.Errorf("%s.%s is required", b.Name, f.Name)
			}
			continue
		}
		converted, err := coerce(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", b.Name, f.Name, err)
		}
		out[f.Name] = converted
	}
	return out, nil
}

var _ migration.Schema = (*Layout)(nil)
