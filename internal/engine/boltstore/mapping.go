package boltstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lockplane/storemigrate/internal/migration"
)

// Converter computes one destination field from a source record. The result
// is converted to the field's declared type afterwards.
type Converter func(source Record) (any, error)

// CopyField reads a field of the source record unchanged.
func CopyField(name string) Converter {
	return func(source Record) (any, error) { return source[name], nil }
}

// Constant always produces v.
func Constant(v any) Converter {
	return func(Record) (any, error) { return v, nil }
}

// BucketMapping fills one destination bucket from a source bucket. When
// Fields is nil, fields present in both layouts are copied by name; otherwise
// Fields is authoritative and unlisted fields take their default.
type BucketMapping struct {
	Destination string
	Source      string
	Fields      map[string]Converter
}

// SourceBucket returns the bucket records are read from.
func (b BucketMapping) SourceBucket() string {
	if b.Source != "" {
		return b.Source
	}
	return b.Destination
}

// Mapping is a per-bucket table of field converters. Destination buckets
// that are not listed stay empty.
type Mapping struct {
	name     string
	inferred bool
	Buckets  []BucketMapping
}

// NewMapping creates an explicit mapping.
func NewMapping(name string, buckets ...BucketMapping) *Mapping {
	return &Mapping{name: name, Buckets: buckets}
}

func (m *Mapping) Name() string { return m.name }

func (m *Mapping) Inferred() bool { return m.inferred }

// convert builds the destination record for one source record.
func (b BucketMapping) convert(layout *BucketLayout, source Record) (Record, error) {
	out := make(Record, len(layout.Fields))
	if b.Fields == nil {
		for _, f := range layout.Fields {
			if v, ok := source[f.Name]; ok {
				out[f.Name] = v
			}
		}
		return layout.Normalize(out)
	}

	names := make([]string, 0, len(b.Fields))
	for name := range b.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if layout.Field(name) == nil {
			return nil, fmt.Errorf("converter for unknown field %s.%s", layout.Name, name)
		}
		v, err := b.Fields[name](source)
		if err != nil {
			return nil, fmt.Errorf("converting %s.%s: %w", layout.Name, name, err)
		}
		out[name] = v
	}
	return layout.Normalize(out)
}

// InferMapping copies every destination bucket from the source bucket of the
// same name. It fails when a field new in the destination is required and
// has no default.
func InferMapping(source, destination *Layout) (*Mapping, error) {
	m := &Mapping{
		name:     source.Version() + "->" + destination.Version(),
		inferred: true,
	}

	for _, dst := range destination.Buckets {
		src := source.Bucket(dst.Name)
		if src == nil {
			continue
		}
		for _, f := range dst.Fields {
			if src.Field(f.Name) == nil && f.Required && f.Default == nil {
				return nil, fmt.Errorf("%w: %s.%s is required without a default and does not exist in %s",
					migration.ErrMappingInference, dst.Name, f.Name, source.Version())
			}
		}
		m.Buckets = append(m.Buckets, BucketMapping{Destination: dst.Name})
	}
	return m, nil
}

// mappingFile is the on-disk form of a mapping. Each field rule either
// copies another source field or sets a constant.
type mappingFile struct {
	Buckets []struct {
		Destination string               `json:"destination"`
		Source      string               `json:"source,omitempty"`
		Fields      map[string]fieldRule `json:"fields,omitempty"`
	} `json:"buckets"`
}

type fieldRule struct {
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}

// ParseMapping compiles a mapping file into converters.
func ParseMapping(name string, data []byte) (*Mapping, error) {
	var file mappingFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse mapping %s: %w", name, err)
	}

	m := &Mapping{name: name}
	seen := make(map[string]bool, len(file.Buckets))
	for _, b := range file.Buckets {
		if b.Destination == "" {
			return nil, fmt.Errorf("invalid mapping %s: bucket without destination", name)
		}
		if seen[b.Destination] {
			return nil, fmt.Errorf("invalid mapping %s: bucket %q is filled twice", name, b.Destination)
		}
		seen[b.Destination] = true

		bm := BucketMapping{Destination: b.Destination, Source: b.Source}
		if b.Fields != nil {
			bm.Fields = make(map[string]Converter, len(b.Fields))
			for field, rule := range b.Fields {
				switch {
				case rule.From != "" && rule.Value != nil:
					return nil, fmt.Errorf("invalid mapping %s: %s.%s sets both from and value", name, b.Destination, field)
				case rule.From != "":
					bm.Fields[field] = CopyField(rule.From)
				default:
					bm.Fields[field] = Constant(rule.Value)
				}
			}
		}
		m.Buckets = append(m.Buckets, bm)
	}
	return m, nil
}

var _ migration.Mapping = (*Mapping)(nil)
