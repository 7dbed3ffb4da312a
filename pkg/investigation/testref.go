package investigation

import (
	"fmt"
	"strconv"
	"strings"
)

// RefKind discriminates the three identifier families a caller may order
// with: a durable numeric case-investigation id, or a config_/default_
// pseudo-id naming a not-yet-materialized catalog entry.
type RefKind int

const (
	RefNumeric RefKind = iota
	RefConfig
	RefDefault
)

const (
	configPrefix  = "config_"
	defaultPrefix = "default_"
)

type TestRef struct {
	Kind RefKind
	ID   int64
	Slug string
}

// ParseTestRef decodes a wire identifier once, at the ledger boundary.
func ParseTestRef(raw string) (TestRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TestRef{}, fmt.Errorf("empty test identifier")
	}
	if slug, ok := strings.CutPrefix(trimmed, configPrefix); ok {
		if slug == "" {
			return TestRef{}, fmt.Errorf("test identifier %q has no slug", raw)
		}
		return TestRef{Kind: RefConfig, Slug: slug}, nil
	}
	if slug, ok := strings.CutPrefix(trimmed, defaultPrefix); ok {
		if slug == "" {
			return TestRef{}, fmt.Errorf("test identifier %q has no slug", raw)
		}
		return TestRef{Kind: RefDefault, Slug: slug}, nil
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return TestRef{}, fmt.Errorf("invalid test identifier %q", raw)
	}
	return TestRef{Kind: RefNumeric, ID: id}, nil
}

func (t TestRef) String() string {
	switch t.Kind {
	case RefConfig:
		return configPrefix + t.Slug
	case RefDefault:
		return defaultPrefix + t.Slug
	default:
		return strconv.FormatInt(t.ID, 10)
	}
}

// Slugify turns a test name into the identifier slug used by config_ and
// default_ pseudo-ids.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '/':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
