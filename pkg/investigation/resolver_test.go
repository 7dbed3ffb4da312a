package investigation

import (
	"strings"
	"testing"

	"github.com/clinsim/platform/pkg/common/models"
	"github.com/clinsim/platform/pkg/reference"
	"github.com/google/uuid"
)

func testLibrary(t *testing.T) *reference.Library {
	t.Helper()
	lib := reference.New(reference.NewStaticSource("test", []models.TestDefinition{
		{TestName: "Potassium", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 3.5, MaxValue: 5.5, Unit: "mmol/L", NormalSamples: []float64{4.0, 4.2, 4.5}},
		{TestName: "Sodium", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 135, MaxValue: 145, Unit: "mmol/L", NormalSamples: []float64{138, 140}},
		{TestName: "Haemoglobin", Group: "Haematology", Gender: models.GenderMale, MinValue: 13, MaxValue: 17, Unit: "g/dL", NormalSamples: []float64{14, 15}},
		{TestName: "Haemoglobin", Group: "Haematology", Gender: models.GenderFemale, MinValue: 11.5, MaxValue: 15.5, Unit: "g/dL", NormalSamples: []float64{12, 13}},
	}))
	if err := lib.Load(); err != nil {
		t.Fatalf("failed to load test library: %v", err)
	}
	return lib
}

func findEntry(catalog []models.OrderableTest, name string) (models.OrderableTest, int) {
	var found models.OrderableTest
	count := 0
	for _, entry := range catalog {
		if strings.EqualFold(entry.TestName, name) {
			found = entry
			count++
		}
	}
	return found, count
}

func TestResolveOrderableDatabaseOverrideWins(t *testing.T) {
	lib := testLibrary(t)
	cfg := CaseConfig{Gender: models.GenderMale, DefaultLabsEnabled: true, InlineLabs: []InlineLab{
		{TestName: "Potassium", CurrentValue: 3.9, MinValue: 3.5, MaxValue: 5.5, Unit: "mmol/L"},
	}}
	rows := []models.CaseInvestigation{
		{ID: 42, CaseID: uuid.New(), TestName: "Potassium", TestGroup: "Biochemistry", CurrentValue: 6.8, MinValue: 3.5, MaxValue: 5.5, IsAbnormal: true},
	}

	catalog, err := ResolveOrderable(cfg, rows, lib)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, count := findEntry(catalog, "Potassium")
	if count != 1 {
		t.Fatalf("expected exactly one potassium entry, got %d", count)
	}
	if entry.Source != models.SourceDatabase || entry.ID != "42" {
		t.Fatalf("expected database override to win, got %+v", entry)
	}
	if entry.CurrentValue != 6.8 || !entry.IsAbnormal {
		t.Fatalf("expected abnormal override value, got %+v", entry)
	}
}

func TestResolveOrderableConfigOutranksDefault(t *testing.T) {
	lib := testLibrary(t)
	cfg := CaseConfig{Gender: models.GenderMale, DefaultLabsEnabled: true, InlineLabs: []InlineLab{
		{TestName: "Sodium", CurrentValue: 128, MinValue: 135, MaxValue: 145, Unit: "mmol/L", IsAbnormal: true},
	}}

	catalog, err := ResolveOrderable(cfg, nil, lib)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, count := findEntry(catalog, "Sodium")
	if count != 1 {
		t.Fatalf("expected exactly one sodium entry, got %d", count)
	}
	if entry.Source != models.SourceConfig || entry.ID != "config_sodium" {
		t.Fatalf("expected config entry with synthetic id, got %+v", entry)
	}
}

func TestResolveOrderableSynthesizesDefaults(t *testing.T) {
	lib := testLibrary(t)
	cfg := CaseConfig{Gender: models.GenderFemale, DefaultLabsEnabled: true}

	catalog, err := ResolveOrderable(cfg, nil, lib)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(catalog) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(catalog))
	}

	hb, count := findEntry(catalog, "Haemoglobin")
	if count != 1 {
		t.Fatalf("expected one haemoglobin entry, got %d", count)
	}
	if hb.Source != models.SourceDefault || hb.ID != "default_haemoglobin" {
		t.Fatalf("expected default entry, got %+v", hb)
	}
	if hb.Gender != models.GenderFemale || hb.MinValue != 11.5 {
		t.Fatalf("expected the female variant, got %+v", hb)
	}
	if hb.IsAbnormal {
		t.Fatal("default entries must not be abnormal")
	}
	inRange := false
	for _, sample := range []float64{12, 13} {
		if hb.CurrentValue == sample {
			inRange = true
		}
	}
	if !inRange {
		t.Fatalf("expected current value from normal samples, got %v", hb.CurrentValue)
	}
}

func TestResolveOrderableDefaultsDisabledExcludesReferenceOnly(t *testing.T) {
	lib := testLibrary(t)
	cfg := CaseConfig{Gender: models.GenderMale, DefaultLabsEnabled: false, InlineLabs: []InlineLab{
		{TestName: "Potassium", CurrentValue: 4.1},
	}}

	catalog, err := ResolveOrderable(cfg, nil, lib)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(catalog) != 1 {
		t.Fatalf("expected only the configured test, got %d entries", len(catalog))
	}
	if _, count := findEntry(catalog, "Sodium"); count != 0 {
		t.Fatal("reference-only test leaked into the catalog")
	}
}

func TestResolveOrderableKeepsConfiguredTestsOutsideLibrary(t *testing.T) {
	lib := testLibrary(t)
	cfg := CaseConfig{Gender: models.GenderMale, DefaultLabsEnabled: true, InlineLabs: []InlineLab{
		{TestName: "Tryptase", CurrentValue: 28, MinValue: 0, MaxValue: 11.4, Unit: "ug/L", IsAbnormal: true},
	}}

	catalog, err := ResolveOrderable(cfg, nil, lib)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, count := findEntry(catalog, "Tryptase")
	if count != 1 {
		t.Fatalf("expected configured custom test to stay orderable, got %d", count)
	}
	if entry.TestGroup != "General" {
		t.Fatalf("expected group fallback, got %q", entry.TestGroup)
	}
}
