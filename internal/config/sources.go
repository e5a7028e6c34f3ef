package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/podium/internal/core/schedule"
)

// Duration wraps time.Duration with YAML decoding from strings like "6h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("failed to parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Source is one entry of the YAML source registry: which adapter serves a
// source and how its fetches are paced.
type Source struct {
	Name     string         `yaml:"name"`
	Adapter  string         `yaml:"adapter"`
	Settings map[string]any `yaml:"settings"`
	Rated    bool           `yaml:"rated"`

	DelayOnSuccess       Duration `yaml:"delay_on_success"`
	DelayOnError         Duration `yaml:"delay_on_error"`
	MinDelayAfterEnd     Duration `yaml:"min_delay_after_end"`
	MaxDelayAfterEnd     Duration `yaml:"max_delay_after_end"`
	LongContestThreshold Duration `yaml:"long_contest_threshold"`
}

// Timing converts the source's delays into scheduling terms.
func (s *Source) Timing() schedule.Timing {
	return schedule.Timing{
		DelayOnSuccess:       time.Duration(s.DelayOnSuccess),
		DelayOnError:         time.Duration(s.DelayOnError),
		MinDelayAfterEnd:     time.Duration(s.MinDelayAfterEnd),
		MaxDelayAfterEnd:     time.Duration(s.MaxDelayAfterEnd),
		LongContestThreshold: time.Duration(s.LongContestThreshold),
	}
}

// SourceRegistry is the loaded source registry, resolved once at startup.
type SourceRegistry struct {
	Sources []Source `yaml:"sources"`

	byName map[string]*Source
}

// LoadSources reads and indexes the YAML source registry.
func LoadSources(path string) (*SourceRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source registry: %w", err)
	}

	var registry SourceRegistry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse source registry: %w", err)
	}
	registry.index()
	return &registry, nil
}

// NewSourceRegistry builds a registry from already-loaded entries (tests,
// embedded defaults).
func NewSourceRegistry(sources []Source) *SourceRegistry {
	registry := &SourceRegistry{Sources: sources}
	registry.index()
	return registry
}

func (r *SourceRegistry) index() {
	r.byName = make(map[string]*Source, len(r.Sources))
	for i := range r.Sources {
		r.byName[r.Sources[i].Name] = &r.Sources[i]
	}
}

// Get returns the source entry for a name.
func (r *SourceRegistry) Get(name string) (*Source, bool) {
	s, ok := r.byName[name]
	return s, ok
}
