// Package settings persists one configuration document per source.
//
// Each source defines a flat settings struct that embeds [Common] and implements [Settings].
// The struct's JSON keys are its persisted fields; fields tagged `json:"-"` are internal and never persisted or reset.
//
// # Schema
//
// [Schema] is an explicit list of [Field] descriptors (name, category, label, default) that drives display and
// string-based editing. Field names are the JSON keys of the struct.
//
// # Documents
//
// A [Document] owns the in-memory value and the file it is persisted to:
//
//	<data-dir>/<app-name>/Sources/<source>.json
//
//   - [Document.Load] keeps the current values when the file is missing, unreadable or corrupt
//   - [Document.Save] writes the whole record as indented JSON
//   - [Document.ResetToDefaults] replaces every persisted field with the default and saves immediately
package settings
