package reference

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/clinsim/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Source is one static collection of test definitions. Earlier sources win
// on a (test name, gender) collision during Load.
type Source interface {
	Name() string
	Definitions() ([]models.TestDefinition, error)
}

type staticSource struct {
	name string
	defs []models.TestDefinition
}

func NewStaticSource(name string, defs []models.TestDefinition) Source {
	return staticSource{name: name, defs: defs}
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Definitions() ([]models.TestDefinition, error) {
	return s.defs, nil
}

type fileSource struct {
	path string
}

// FileSource reads a YAML catalog of the form {tests: [...]}.
func FileSource(path string) Source {
	return fileSource{path: path}
}

func (s fileSource) Name() string { return s.path }

func (s fileSource) Definitions() ([]models.TestDefinition, error) {
	content, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil {
		return nil, err
	}
	var catalog struct {
		Tests []models.TestDefinition `yaml:"tests"`
	}
	if err := yaml.Unmarshal(content, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse reference catalog %s: %w", s.path, err)
	}
	if len(catalog.Tests) == 0 {
		return nil, fmt.Errorf("reference catalog %s is empty", s.path)
	}
	return catalog.Tests, nil
}

// snapshot is an immutable view of the merged catalog. Readers hold a
// pointer to one snapshot; Reload builds a new one and swaps it.
type snapshot struct {
	defs   []models.TestDefinition
	byName map[string][]int
	names  []string
	groups []string
}

type Library struct {
	mu      sync.RWMutex
	sources []Source
	snap    *snapshot
}

func New(sources ...Source) *Library {
	return &Library{sources: sources}
}

var (
	defaultLibrary *Library
	defaultOnce    sync.Once
)

// Default returns the process-wide library backed by the builtin panels.
func Default() *Library {
	defaultOnce.Do(func() {
		defaultLibrary = New(BuiltinSources()...)
	})
	return defaultLibrary
}

// Load merges all sources into a fresh snapshot and swaps it in. Duplicate
// (test name, gender) keys from later sources are skipped.
func (l *Library) Load() error {
	snap := &snapshot{byName: map[string][]int{}}
	type key struct {
		name   string
		gender models.Gender
	}
	claimed := map[key]bool{}
	groupSeen := map[string]bool{}

	for _, source := range l.sources {
		defs, err := source.Definitions()
		if err != nil {
			return fmt.Errorf("reference source %s: %w", source.Name(), err)
		}
		for _, def := range defs {
			def.Gender = models.NormalizeGender(string(def.Gender))
			k := key{name: strings.ToLower(def.TestName), gender: def.Gender}
			if claimed[k] {
				continue
			}
			claimed[k] = true

			idx := len(snap.defs)
			snap.defs = append(snap.defs, def)
			if _, seen := snap.byName[k.name]; !seen {
				snap.names = append(snap.names, def.TestName)
			}
			snap.byName[k.name] = append(snap.byName[k.name], idx)
			if def.Group != "" && !groupSeen[def.Group] {
				groupSeen[def.Group] = true
				snap.groups = append(snap.groups, def.Group)
			}
		}
	}

	if len(snap.defs) == 0 {
		return fmt.Errorf("reference library has no test definitions")
	}

	l.mu.Lock()
	l.snap = snap
	l.mu.Unlock()
	return nil
}

// Reload rebuilds the snapshot from the configured sources. Administrative;
// in-flight readers keep iterating the old snapshot.
func (l *Library) Reload() error {
	return l.Load()
}

func (l *Library) snapshot() (*snapshot, error) {
	l.mu.RLock()
	snap := l.snap
	l.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	if err := l.Load(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap, nil
}

// SearchResult groups the gender variants of one test name.
type SearchResult struct {
	TestName string                  `json:"test_name"`
	Variants []models.TestDefinition `json:"variants"`
}

// Search matches test names case-insensitively by substring and returns at
// most limit grouped results.
func (l *Library) Search(query string, limit int) ([]SearchResult, error) {
	snap, err := l.snapshot()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	results := make([]SearchResult, 0, limit)
	for _, name := range snap.names {
		lower := strings.ToLower(name)
		if needle != "" && !strings.Contains(lower, needle) {
			continue
		}
		variants := make([]models.TestDefinition, 0, 2)
		for _, idx := range snap.byName[lower] {
			variants = append(variants, snap.defs[idx])
		}
		results = append(results, SearchResult{TestName: name, Variants: variants})
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (l *Library) TestsByGroup(group string) ([]models.TestDefinition, error) {
	snap, err := l.snapshot()
	if err != nil {
		return nil, err
	}
	var defs []models.TestDefinition
	for _, def := range snap.defs {
		if strings.EqualFold(def.Group, group) {
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func (l *Library) Groups() ([]string, error) {
	snap, err := l.snapshot()
	if err != nil {
		return nil, err
	}
	groups := make([]string, len(snap.groups))
	copy(groups, snap.groups)
	sort.Strings(groups)
	return groups, nil
}

// UniqueTestNames returns every distinct test name in source order.
func (l *Library) UniqueTestNames() ([]string, error) {
	snap, err := l.snapshot()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(snap.names))
	copy(names, snap.names)
	return names, nil
}

// GenderSpecific picks the variant of a test for the given gender: exact
// match first, then Both, then the first variant in source order.
func (l *Library) GenderSpecific(testName string, gender models.Gender) (models.TestDefinition, bool) {
	snap, err := l.snapshot()
	if err != nil {
		return models.TestDefinition{}, false
	}
	indexes := snap.byName[strings.ToLower(testName)]
	if len(indexes) == 0 {
		return models.TestDefinition{}, false
	}
	for _, idx := range indexes {
		if snap.defs[idx].Gender == gender {
			return snap.defs[idx], true
		}
	}
	for _, idx := range indexes {
		if snap.defs[idx].Gender == models.GenderBoth {
			return snap.defs[idx], true
		}
	}
	return snap.defs[indexes[0]], true
}

// RandomNormalValue picks a uniform random sample, or the range midpoint
// when the definition carries no samples.
func RandomNormalValue(def models.TestDefinition) float64 {
	if len(def.NormalSamples) > 0 {
		return def.NormalSamples[rand.IntN(len(def.NormalSamples))]
	}
	return (def.MinValue + def.MaxValue) / 2
}
