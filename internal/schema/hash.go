package schema

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/lockplane/storemigrate/database"
)

// The canonical form is what gets hashed. Field order is fixed by the
// struct definitions and every list is sorted, except index columns whose
// order is significant.
type (
	canonicalTable struct {
		Name        string                `json:"name"`
		Columns     []canonicalColumn     `json:"columns"`
		Indexes     []database.Index      `json:"indexes,omitempty"`
		ForeignKeys []canonicalForeignKey `json:"foreign_keys,omitempty"`
	}
	canonicalColumn struct {
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		Nullable   bool    `json:"nullable"`
		PrimaryKey bool    `json:"pk"`
		Default    *string `json:"default,omitempty"`
	}
	canonicalForeignKey struct {
		Key      string  `json:"key"`
		OnDelete *string `json:"on_delete,omitempty"`
		OnUpdate *string `json:"on_update,omitempty"`
	}
)

// ComputeHash generates a deterministic fingerprint of a schema. Two stores
// whose tables, columns, indexes and foreign keys match produce the same
// hash regardless of declaration order.
func ComputeHash(s *database.Schema) (string, error) {
	if s == nil {
		s = &database.Schema{}
	}

	data, err := json.Marshal(canonicalize(s))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalize(s *database.Schema) []canonicalTable {
	tables := make([]canonicalTable, 0, len(s.Tables))
	for _, t := range s.Tables {
		ct := canonicalTable{
			Name:    t.Name,
			Columns: make([]canonicalColumn, 0, len(t.Columns)),
		}
		for _, c := range t.Columns {
			ct.Columns = append(ct.Columns, canonicalColumn{
				Name:       c.Name,
				Type:       NormalizeType(c.Type),
				Nullable:   c.Nullable,
				PrimaryKey: c.IsPrimaryKey,
				Default:    c.Default,
			})
		}
		slices.SortFunc(ct.Columns, func(a, b canonicalColumn) int { return cmp.Compare(a.Name, b.Name) })

		ct.Indexes = slices.Clone(t.Indexes)
		slices.SortFunc(ct.Indexes, func(a, b database.Index) int { return cmp.Compare(a.Name, b.Name) })

		for _, fk := range t.ForeignKeys {
			ct.ForeignKeys = append(ct.ForeignKeys, canonicalForeignKey{
				Key:      foreignKeyKey(fk),
				OnDelete: fk.OnDelete,
				OnUpdate: fk.OnUpdate,
			})
		}
		slices.SortFunc(ct.ForeignKeys, func(a, b canonicalForeignKey) int { return cmp.Compare(a.Key, b.Key) })

		tables = append(tables, ct)
	}
	slices.SortFunc(tables, func(a, b canonicalTable) int { return cmp.Compare(a.Name, b.Name) })
	return tables
}
