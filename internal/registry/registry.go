// Package registry loads the YAML source registry that drives a scrape
// run: which carrier pages to fetch, how to parse them, and whether a
// source is discovered indirectly through another one.
package registry

import (
	"fmt"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fsc-watch/internal/model"
)

// SourceMode says how a source's artifact is obtained.
type SourceMode string

const (
	// ModeDirect fetches the source URL itself.
	ModeDirect SourceMode = "DIRECT"
	// ModeDiscovery fetches an index page and emits child artifacts
	// processed under the child source id.
	ModeDiscovery SourceMode = "DISCOVERY"
)

// Source is one registry entry.
type Source struct {
	ID             string             `yaml:"id"`
	Carrier        string             `yaml:"carrier"`
	Mode           SourceMode         `yaml:"mode"`
	URL            *string            `yaml:"url"`
	ParserID       string             `yaml:"parser_id"`
	ArtifactType   model.ArtifactType `yaml:"artifact_type"`
	DiffEnabled    bool               `yaml:"diff_enabled"`
	ChildSourceID  string             `yaml:"child_source_id,omitempty"`
	DiscoveredOnly bool               `yaml:"discovered_only,omitempty"`
}

// Registry is the full parsed registry file.
type Registry struct {
	Version string   `yaml:"version"`
	Sources []Source `yaml:"sources"`
}

// Load reads and validates a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", path)
	}
	if err := reg.validate(); err != nil {
		return nil, eris.Wrapf(err, "registry: %s", path)
	}
	return &reg, nil
}

// SourceByID returns the source with the given id, or nil.
func (r *Registry) SourceByID(id string) *Source {
	for i := range r.Sources {
		if r.Sources[i].ID == id {
			return &r.Sources[i]
		}
	}
	return nil
}

func (r *Registry) validate() error {
	if r.Version == "" {
		return eris.New("version is required")
	}
	seen := make(map[string]struct{}, len(r.Sources))
	for i := range r.Sources {
		s := &r.Sources[i]
		if err := s.validate(); err != nil {
			return err
		}
		if _, dup := seen[s.ID]; dup {
			return eris.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	for i := range r.Sources {
		s := &r.Sources[i]
		if s.Mode == ModeDiscovery && s.ChildSourceID != "" && r.SourceByID(s.ChildSourceID) == nil {
			return eris.Errorf("source %q: child_source_id %q not in registry", s.ID, s.ChildSourceID)
		}
	}
	return nil
}

func (s *Source) validate() error {
	if s.ID == "" {
		return eris.New("source id is required")
	}
	if s.Carrier == "" {
		return eris.Errorf("source %q: carrier is required", s.ID)
	}
	switch s.Mode {
	case ModeDirect, ModeDiscovery:
	default:
		return eris.Errorf("source %q: mode %q is not DIRECT or DISCOVERY", s.ID, s.Mode)
	}
	if s.ParserID == "" {
		return eris.Errorf("source %q: parser_id is required", s.ID)
	}
	switch s.ArtifactType {
	case model.ArtifactHTML, model.ArtifactPDF:
	default:
		return eris.Errorf("source %q: artifact_type %q is not html or pdf", s.ID, s.ArtifactType)
	}
	if s.URL != nil {
		u, err := url.Parse(*s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return eris.Errorf("source %q: url %q is not an absolute http(s) url", s.ID, *s.URL)
		}
	}
	if s.Mode == ModeDiscovery && s.ChildSourceID == "" {
		return eris.Errorf("source %q: discovery source needs child_source_id", s.ID)
	}
	if s.URL == nil && !s.DiscoveredOnly {
		return eris.Errorf("source %q: url is required unless discovered_only", s.ID)
	}
	return nil
}

// Fetchable lists sources a scrape run fetches directly, in file order.
// Discovered-only sources are reached via their parent.
func (r *Registry) Fetchable() []Source {
	out := make([]Source, 0, len(r.Sources))
	for _, s := range r.Sources {
		if s.DiscoveredOnly {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (s *Source) String() string {
	return fmt.Sprintf("%s (%s %s)", s.ID, s.Carrier, s.Mode)
}
