package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/shared"
)

// SourcesDir is the directory under the app data directory that holds source documents.
const SourcesDir = "Sources"

// Store is the type-independent view of a [Document] used by generic tooling.
type Store interface {
	Path() string
	Load() error
	Save() error
	ResetToDefaults() error
	Set(name, raw string) error
	Entries() ([]Entry, error)
}

// Document holds one source's settings value and the file it persists to.
type Document[T Settings] struct {
	mu       sync.RWMutex
	path     string
	value    T
	defaults func() T
	logger   *log.Logger
}

// New creates a document rooted at appDir whose initial value comes from defaults.
func New[T Settings](appDir string, defaults func() T, logger *log.Logger) *Document[T] {
	value := defaults()
	return &Document[T]{
		path:     filepath.Join(appDir, SourcesDir, value.Backend()+".json"),
		value:    value,
		defaults: defaults,
		logger:   shared.WithLogger(logger),
	}
}

// Path returns the file the document persists to.
func (d *Document[T]) Path() string { return d.path }

// Get returns a copy of the current value.
func (d *Document[T]) Get() T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value
}

// Update applies fn to the current value. Changes are not persisted until [Document.Save].
func (d *Document[T]) Update(fn func(*T)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.value)
}

// Load overlays the persisted file onto the current value.
//
// A missing file is a no-op. Unreadable, corrupt or invalid files are logged and leave the current values untouched;
// the returned error is informational only.
func (d *Document[T]) Load() error {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		d.logger.Warn("failed to read settings, keeping current values", "path", d.path, "error", err)
		return fmt.Errorf("failed to read %s: %w", d.path, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.value
	if err := json.Unmarshal(data, &next); err != nil {
		d.logger.Warn("corrupt settings file, keeping current values", "path", d.path, "error", err)
		return fmt.Errorf("%w: %s: %v", shared.ErrInvalidConfig, d.path, err)
	}
	if v, ok := any(next).(Validator); ok {
		if err := v.Validate(); err != nil {
			d.logger.Warn("invalid settings file, keeping current values", "path", d.path, "error", err)
			return fmt.Errorf("%w: %s: %v", shared.ErrInvalidConfig, d.path, err)
		}
	}

	d.value = next
	d.logger.Debug("loaded settings", "backend", next.Backend(), "path", d.path)
	return nil
}

// Save writes the full value as indented JSON, creating parent directories as needed.
func (d *Document[T]) Save() error {
	d.mu.RLock()
	data, err := json.MarshalIndent(d.value, "", "  ")
	d.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	d.logger.Debug("saved settings", "path", d.path)
	return nil
}

// ResetToDefaults copies every persisted field of a fresh default value onto the current value and saves.
//
// Fields excluded from JSON are internal and keep their current values.
func (d *Document[T]) ResetToDefaults() error {
	data, err := json.Marshal(d.defaults())
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}

	d.mu.Lock()
	err = json.Unmarshal(data, &d.value)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	return d.Save()
}

// Set parses raw according to the schema field called name and assigns it.
func (d *Document[T]) Set(name, raw string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	field, ok := d.value.Schema().Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrUnknownSetting, name)
	}

	parsed, err := field.Parse(raw)
	if err != nil {
		return err
	}

	patch, err := json.Marshal(map[string]any{name: parsed})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	next := d.value
	if err := json.Unmarshal(patch, &next); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrInvalidArgument, name, err)
	}
	if v, ok := any(next).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
	}
	d.value = next
	return nil
}

// Entry is a schema field paired with its current value.
type Entry struct {
	Field
	Value any
}

// Entries lists the current values in schema order.
func (d *Document[T]) Entries() ([]Entry, error) {
	current := d.Get()
	values, err := toMap(current)
	if err != nil {
		return nil, err
	}

	schema := current.Schema()
	entries := make([]Entry, 0, len(schema))
	for _, f := range schema {
		entries = append(entries, Entry{Field: f, Value: values[f.Name]})
	}
	return entries, nil
}

// Display formats the entry value, masking secrets.
func (e Entry) Display() string {
	s := fmt.Sprint(e.Value)
	if e.Kind == KindSecret && s != "" {
		return "********"
	}
	return s
}
