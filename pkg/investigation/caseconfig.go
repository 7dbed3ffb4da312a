package investigation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/clinsim/platform/pkg/common/models"
)

// CaseConfig is the parsed per-case configuration document: demographics
// plus the investigation policy and any inline lab overrides.
type CaseConfig struct {
	Gender                   models.Gender
	DefaultLabsEnabled       bool
	InstantResults           bool
	DefaultTurnaroundMinutes int
	InlineLabs               []InlineLab
}

// InlineLab is a lab override embedded in the configuration document.
// Documents are hand-edited by instructors, so numeric fields tolerate both
// JSON numbers and numeric strings.
type InlineLab struct {
	ID                string     `json:"id,omitempty"`
	TestName          string     `json:"test_name"`
	TestGroup         string     `json:"test_group,omitempty"`
	Gender            string     `json:"gender,omitempty"`
	MinValue          flexFloat  `json:"min_value,omitempty"`
	MaxValue          flexFloat  `json:"max_value,omitempty"`
	CurrentValue      flexFloat  `json:"current_value,omitempty"`
	Unit              string     `json:"unit,omitempty"`
	NormalSamples     flexFloats `json:"normal_samples,omitempty"`
	IsAbnormal        bool       `json:"is_abnormal,omitempty"`
	TurnaroundMinutes flexFloat  `json:"turnaround_minutes,omitempty"`
}

type caseConfigDoc struct {
	Demographics struct {
		Gender string `json:"gender"`
	} `json:"demographics"`
	Investigations struct {
		DefaultLabsEnabled       *bool       `json:"default_labs_enabled"`
		InstantResults           bool        `json:"instant_results"`
		DefaultTurnaroundMinutes flexFloat   `json:"default_turnaround_minutes"`
		Labs                     []InlineLab `json:"labs"`
	} `json:"investigations"`
}

// ParseCaseConfig decodes a case's configuration document. An absent or
// empty document yields the defaults (labs enabled, male demographics); a
// present but unparseable document is ErrConfiguration, never an implicit
// empty policy.
func ParseCaseConfig(doc []byte) (CaseConfig, error) {
	cfg := CaseConfig{
		Gender:             models.GenderMale,
		DefaultLabsEnabled: true,
	}
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return cfg, nil
	}

	var parsed caseConfigDoc
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return CaseConfig{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if parsed.Demographics.Gender != "" {
		cfg.Gender = models.NormalizeGender(parsed.Demographics.Gender)
	}
	if parsed.Investigations.DefaultLabsEnabled != nil {
		cfg.DefaultLabsEnabled = *parsed.Investigations.DefaultLabsEnabled
	}
	cfg.InstantResults = parsed.Investigations.InstantResults
	cfg.DefaultTurnaroundMinutes = int(parsed.Investigations.DefaultTurnaroundMinutes)
	cfg.InlineLabs = parsed.Investigations.Labs
	return cfg, nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = 0
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("numeric string %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexFloats accepts an array of numbers or numeric strings, a single
// number, or a string holding either a JSON array or a comma-separated
// list. Stored representations of normal samples vary across sources.
type flexFloats []float64

func (f *flexFloats) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = nil
		return nil
	}
	switch trimmed[0] {
	case '[':
		var raw []flexFloat
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		out := make([]float64, len(raw))
		for i, v := range raw {
			out[i] = float64(v)
		}
		*f = out
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		return f.parseString(s)
	default:
		var v float64
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		*f = []float64{v}
		return nil
	}
}

func (f *flexFloats) parseString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*f = nil
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var nested flexFloats
		if err := json.Unmarshal([]byte(s), &nested); err != nil {
			return err
		}
		*f = nested
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return fmt.Errorf("sample %q: %w", part, err)
		}
		out = append(out, v)
	}
	*f = out
	return nil
}
