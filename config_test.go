// Settings tests.
//
// Settings are the YAML face of Config and Options. These tests check that
// every key reaches the field it names, that empty keys fall through to the
// runtime defaults rather than to zero values, and that values no default
// can repair are rejected up front.
package binder

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const sampleSettings = `
store:
  dir: /var/lib/binder
  name: pages.journal
  checksum: blake2b
  sync_writes: true
  max_record_size: 1048576
cache:
  capacity: 20
  render_scale: 2
reset:
  retained_keys: [theme]
`

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings([]byte(sampleSettings))
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}

	if s.Store.Dir != "/var/lib/binder" {
		t.Errorf("Dir = %q", s.Store.Dir)
	}
	if s.JournalName() != "pages.journal" {
		t.Errorf("JournalName = %q, want pages.journal", s.JournalName())
	}
	if !s.Store.SyncWrites {
		t.Error("SyncWrites not set")
	}
	if s.Cache.Capacity != 20 || s.Cache.RenderScale != 2 {
		t.Errorf("Cache = %+v", s.Cache)
	}
	if !slices.Equal(s.Reset.RetainedKeys, []string{"theme"}) {
		t.Errorf("RetainedKeys = %v", s.Reset.RetainedKeys)
	}

	c := s.Config(nil)
	if c.HashAlgorithm != AlgBlake2b {
		t.Errorf("HashAlgorithm = %d, want %d", c.HashAlgorithm, AlgBlake2b)
	}
	if c.MaxRecordSize != 1048576 || !c.SyncWrites {
		t.Errorf("Config = %+v", c)
	}

	o := s.Options(testLoader, &testRenderer{}, &testComposer{}, nil, nil)
	if o.CacheCapacity != 20 || o.RenderScale != 2 {
		t.Errorf("Options cache = %d, %v", o.CacheCapacity, o.RenderScale)
	}
	if !slices.Equal(o.RetainedKeys, []string{"theme"}) {
		t.Errorf("Options RetainedKeys = %v", o.RetainedKeys)
	}
}

func TestSettingsDefaults(t *testing.T) {
	s, err := ParseSettings([]byte("store:\n  dir: /tmp/x\n"))
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}
	if s.JournalName() != DefaultJournalName {
		t.Errorf("JournalName = %q, want %q", s.JournalName(), DefaultJournalName)
	}
	if c := s.Config(nil); c.HashAlgorithm != AlgXXHash3 {
		t.Errorf("HashAlgorithm = %d, want %d", c.HashAlgorithm, AlgXXHash3)
	}
	if o := s.Options(testLoader, &testRenderer{}, &testComposer{}, nil, nil); o.RetainedKeys != nil {
		t.Errorf("RetainedKeys = %v, want nil so the registry default applies", o.RetainedKeys)
	}
}

func TestSettingsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing dir", "cache:\n  capacity: 5\n", "store.dir"},
		{"bad checksum", "store:\n  dir: x\n  checksum: md5\n", "store.checksum"},
		{"negative record size", "store:\n  dir: x\n  max_record_size: -1\n", "max_record_size"},
		{"negative capacity", "store:\n  dir: x\ncache:\n  capacity: -1\n", "cache.capacity"},
		{"negative scale", "store:\n  dir: x\ncache:\n  render_scale: -1\n", "render_scale"},
		{"not yaml", "store: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSettings([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParseSettings = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

// TestSettingsOpen drives a full Open and NewRegistry from a settings file.
func TestSettingsOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "binder.yaml")
	body := "store:\n  dir: " + dir + "\n  checksum: fnv1a\ncache:\n  capacity: 3\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	store, err := Open(s.Store.Dir, s.JournalName(), s.Config(nil))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if store.header.Algorithm != AlgFNV1a {
		t.Errorf("journal algorithm = %d, want %d", store.header.Algorithm, AlgFNV1a)
	}

	reg, err := NewRegistry(t.Context(), store, s.Options(testLoader, &testRenderer{}, &testComposer{}, nil, nil))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Cache().Capacity() != 3 {
		t.Errorf("cache capacity = %d, want 3", reg.Cache().Capacity())
	}
}

func TestLoadSettingsMissing(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadSettings of a missing file succeeded")
	}
}
