// Package migration upgrades an on-disk store, persisted at some earlier
// schema version, forward through an ordered chain of known versions one
// pairwise step at a time.
//
// Planning reads the store's metadata, detects the first declared version
// compatible with it, and resolves one Step per remaining transition. A nil
// plan means the store is already at the latest version. Performing a plan
// checkpoints the original store, writes every step into a fresh scratch
// store, and only after the last step succeeds replaces the original with the
// final scratch store. Scratch stores are removed on every exit path and the
// original is never modified before the replace.
//
// The package knows nothing about the physical format of a store. Engines
// (see internal/engine/...) provide metadata reading, compatibility checks,
// step execution and store replacement, and a Catalog resolves the schema and
// mapping descriptors those engines understand.
package migration
