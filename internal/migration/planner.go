package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Detection is the result of matching a store against its declared versions.
type Detection struct {
	Metadata *Metadata
	Schemas  []Schema

	// Index is the position in Schemas of the detected version
	Index int
}

// Current returns the detected schema.
func (d *Detection) Current() Schema {
	return d.Schemas[d.Index]
}

// AtLatest reports whether the store is already at the newest version.
func (d *Detection) AtLatest() bool {
	return d.Index == len(d.Schemas)-1
}

// Plan is an ordered list of steps that brings one store to its latest
// version. It is built once per attempt and carries no state between steps
// other than progress.
type Plan struct {
	Descriptor StoreDescriptor
	Metadata   *Metadata
	Current    Schema
	Steps      []Step

	engine Engine
	opts   options
}

// StepCount returns the number of steps the plan will run.
func (p *Plan) StepCount() int {
	if p == nil {
		return 0
	}
	return len(p.Steps)
}

// Detect reads the store's metadata and finds the first declared version
// compatible with it. Versions are scanned oldest first and the first match
// wins; if more than one version matches, a warning is logged.
func Detect(ctx context.Context, engine Engine, catalog Catalog, descriptor StoreDescriptor, opts ...Option) (*Detection, error) {
	o := newOptions(opts)
	return detect(ctx, engine, catalog, descriptor, o)
}

func detect(ctx context.Context, engine Engine, catalog Catalog, descriptor StoreDescriptor, o options) (*Detection, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}

	md, err := engine.ReadMetadata(ctx, descriptor.Path)
	if err != nil {
		var storeErr *StoreError
		if errors.As(err, &storeErr) {
			return nil, err
		}
		return nil, NewStoreError(descriptor.Path, err)
	}

	schemas := make([]Schema, len(descriptor.Versions))
	for i, version := range descriptor.Versions {
		schema, err := catalog.ResolveSchema(ctx, descriptor.Family, version)
		if err != nil {
			return nil, &VersionError{Version: version, Err: err}
		}
		schemas[i] = schema
	}

	var matches []string
	index := -1
	for i, schema := range schemas {
		if engine.IsCompatible(schema, md) {
			if index < 0 {
				index = i
			}
			matches = append(matches, descriptor.Versions[i])
		}
	}

	if index < 0 {
		return nil, fmt.Errorf("%w: store %s (fingerprint %s) matches none of %s",
			ErrNoCompatibleVersionFound, descriptor.Path, md.Fingerprint, strings.Join(descriptor.Versions, ", "))
	}

	if len(matches) > 1 {
		o.logger.WithFields(logrus.Fields{
			"store":    descriptor.Name,
			"matches":  strings.Join(matches, ", "),
			"selected": descriptor.Versions[index],
		}).Warn("Store is compatible with more than one version; using the oldest")
	}

	return &Detection{Metadata: md, Schemas: schemas, Index: index}, nil
}

// BuildPlan computes the steps needed to bring the store described by
// descriptor to its latest version. It returns nil, nil when the store is
// already at the latest version. Planning never touches the store beyond
// reading its metadata.
func BuildPlan(ctx context.Context, engine Engine, catalog Catalog, descriptor StoreDescriptor, opts ...Option) (*Plan, error) {
	o := newOptions(opts)

	detection, err := detect(ctx, engine, catalog, descriptor, o)
	if err != nil {
		return nil, err
	}

	log := o.logger.WithFields(logrus.Fields{
		"store":   descriptor.Name,
		"version": descriptor.Versions[detection.Index],
	})

	var steps []Step
	for _, t := range descriptor.Transitions()[detection.Index:] {
		source := detection.Schemas[t.Index]
		destination := detection.Schemas[t.Index+1]

		mapping, err := resolveMapping(ctx, catalog, t, source, destination)
		if err != nil {
			return nil, err
		}

		log.WithFields(logrus.Fields{
			"source":      t.Source,
			"destination": t.Destination,
			"mapping":     mapping.Name(),
			"inferred":    mapping.Inferred(),
		}).Debug("Planned migration step")

		steps = append(steps, Step{
			Index:       len(steps),
			Source:      source,
			Destination: destination,
			Mapping:     mapping,
		})
	}

	if len(steps) == 0 {
		log.Debug("Store is at the latest version, no migration necessary")
		return nil, nil
	}

	return &Plan{
		Descriptor: descriptor,
		Metadata:   detection.Metadata,
		Current:    detection.Current(),
		Steps:      steps,
		engine:     engine,
		opts:       o,
	}, nil
}

// TryBuildMigration is BuildPlan under the name callers of the progressive
// migration API expect.
func TryBuildMigration(ctx context.Context, engine Engine, catalog Catalog, descriptor StoreDescriptor, opts ...Option) (*Plan, error) {
	return BuildPlan(ctx, engine, catalog, descriptor, opts...)
}

func resolveMapping(ctx context.Context, catalog Catalog, t Transition, source, destination Schema) (Mapping, error) {
	if !t.Inferred() {
		mapping, err := catalog.ResolveMapping(ctx, t.Mapping)
		if err != nil {
			return nil, &MappingError{Name: t.Mapping, Err: err}
		}
		return mapping, nil
	}

	mapping, err := catalog.InferMapping(ctx, source, destination)
	if err != nil {
		return nil, fmt.Errorf("failed to infer mapping %s -> %s: %w", t.Source, t.Destination, err)
	}
	return mapping, nil
}
