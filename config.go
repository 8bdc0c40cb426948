// Settings file loading.
//
// Hosts describe a binder instance in one YAML file:
//
//	store:
//	  dir: /var/lib/binder
//	  name: binder.journal
//	  checksum: xxh3
//	  sync_writes: true
//	cache:
//	  capacity: 50
//	  render_scale: 1.5
//	reset:
//	  retained_keys: [analytics_id, user_preferences]
//
// Zero values fall back to the defaults of Config and Options.
package binder

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the on-disk configuration.
type Settings struct {
	Store StoreSettings `yaml:"store"`
	Cache CacheSettings `yaml:"cache"`
	Reset ResetSettings `yaml:"reset"`
}

// StoreSettings configures the journal.
type StoreSettings struct {
	// Dir is the directory holding the journal.
	Dir string `yaml:"dir"`

	// Name is the journal file name.
	// Default: binder.journal
	Name string `yaml:"name"`

	// Checksum is one of xxh3, fnv1a, blake2b.
	// Default: xxh3
	Checksum string `yaml:"checksum"`

	// SyncWrites fsyncs after every commit.
	SyncWrites bool `yaml:"sync_writes"`

	// MaxRecordSize bounds a single journal line, in bytes.
	MaxRecordSize int `yaml:"max_record_size"`
}

// CacheSettings configures the page cache.
type CacheSettings struct {
	Capacity    int     `yaml:"capacity"`
	RenderScale float64 `yaml:"render_scale"`
}

// ResetSettings configures the full reset.
type ResetSettings struct {
	// RetainedKeys survive the storage wipe.
	// Default: DefaultRetainedKeys
	RetainedKeys []string `yaml:"retained_keys"`
}

// DefaultJournalName is used when StoreSettings.Name is empty.
const DefaultJournalName = "binder.journal"

// LoadSettings reads and validates a settings file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes and validates settings YAML.
func ParseSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks settings for values the defaults cannot fix.
func (s *Settings) Validate() error {
	if s.Store.Dir == "" {
		return fmt.Errorf("store.dir is required")
	}
	if _, err := algorithmByName(s.Store.Checksum); err != nil {
		return fmt.Errorf("store.checksum: %w", err)
	}
	if s.Store.MaxRecordSize < 0 {
		return fmt.Errorf("store.max_record_size must not be negative")
	}
	if s.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative")
	}
	if s.Cache.RenderScale < 0 {
		return fmt.Errorf("cache.render_scale must not be negative")
	}
	return nil
}

// JournalName returns the journal file name.
func (s *Settings) JournalName() string {
	if s.Store.Name == "" {
		return DefaultJournalName
	}
	return s.Store.Name
}

// Config returns the store configuration.
func (s *Settings) Config(logger *slog.Logger) Config {
	alg, _ := algorithmByName(s.Store.Checksum)
	return Config{
		HashAlgorithm: alg,
		MaxRecordSize: s.Store.MaxRecordSize,
		SyncWrites:    s.Store.SyncWrites,
		Logger:        logger,
	}
}

// Options returns registry options with the given collaborators.
func (s *Settings) Options(loader Loader, renderer Renderer, composer Composer, wipe WipeFunc, logger *slog.Logger) Options {
	return Options{
		Loader:        loader,
		Renderer:      renderer,
		Composer:      composer,
		Wipe:          wipe,
		RetainedKeys:  s.Reset.RetainedKeys,
		CacheCapacity: s.Cache.Capacity,
		RenderScale:   s.Cache.RenderScale,
		Logger:        logger,
	}
}
