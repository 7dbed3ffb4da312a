package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clinsim/platform/pkg/common/models"
)

func testSources() []Source {
	first := NewStaticSource("first", []models.TestDefinition{
		{TestName: "Haemoglobin", Group: "Haematology", Gender: models.GenderMale, MinValue: 13, MaxValue: 17, Unit: "g/dL", NormalSamples: []float64{14, 15, 16}},
		{TestName: "Haemoglobin", Group: "Haematology", Gender: models.GenderFemale, MinValue: 11.5, MaxValue: 15.5, Unit: "g/dL", NormalSamples: []float64{12, 13, 14}},
		{TestName: "Potassium", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 3.5, MaxValue: 5.5, Unit: "mmol/L", NormalSamples: []float64{4.0, 4.2, 4.5}},
	})
	second := NewStaticSource("second", []models.TestDefinition{
		// Duplicate key: first source already claimed (Potassium, Both).
		{TestName: "Potassium", Group: "Point Of Care", Gender: models.GenderBoth, MinValue: 3.0, MaxValue: 6.0, Unit: "mmol/L"},
		{TestName: "Ferritin", Group: "Iron Studies", Gender: models.GenderMale, MinValue: 30, MaxValue: 400, Unit: "ug/L"},
	})
	return []Source{first, second}
}

func TestLoadDeduplicatesByNameAndGender(t *testing.T) {
	lib := New(testSources()...)
	if err := lib.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def, ok := lib.GenderSpecific("Potassium", models.GenderBoth)
	if !ok {
		t.Fatal("expected potassium to resolve")
	}
	if def.Group != "Biochemistry" {
		t.Fatalf("expected earlier source to win, got group %q", def.Group)
	}
	if def.MinValue != 3.5 || def.MaxValue != 5.5 {
		t.Fatalf("expected first-source range, got [%v, %v]", def.MinValue, def.MaxValue)
	}
}

func TestSearchGroupsGenderVariants(t *testing.T) {
	lib := New(testSources()...)
	results, err := lib.Search("haemo", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 grouped result, got %d", len(results))
	}
	if len(results[0].Variants) != 2 {
		t.Fatalf("expected 2 gender variants, got %d", len(results[0].Variants))
	}
}

func TestSearchLimitCountsGroups(t *testing.T) {
	lib := New(testSources()...)
	results, err := lib.Search("", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected limit to cap grouped results at 2, got %d", len(results))
	}
}

func TestGenderSpecificFallbackChain(t *testing.T) {
	lib := New(testSources()...)

	// Exact match wins.
	def, ok := lib.GenderSpecific("Haemoglobin", models.GenderFemale)
	if !ok || def.Gender != models.GenderFemale {
		t.Fatalf("expected female variant, got %+v ok=%v", def, ok)
	}

	// No exact match falls back to Both.
	def, ok = lib.GenderSpecific("Potassium", models.GenderFemale)
	if !ok || def.Gender != models.GenderBoth {
		t.Fatalf("expected Both variant, got %+v ok=%v", def, ok)
	}

	// Neither exact nor Both: first variant in source order.
	def, ok = lib.GenderSpecific("Ferritin", models.GenderFemale)
	if !ok || def.Gender != models.GenderMale {
		t.Fatalf("expected first-source variant, got %+v ok=%v", def, ok)
	}

	if _, ok := lib.GenderSpecific("Missing", models.GenderMale); ok {
		t.Fatal("expected unknown test to miss")
	}
}

func TestRandomNormalValue(t *testing.T) {
	def := models.TestDefinition{NormalSamples: []float64{4.0, 4.2, 4.5}}
	allowed := map[float64]bool{4.0: true, 4.2: true, 4.5: true}
	for i := 0; i < 50; i++ {
		v := RandomNormalValue(def)
		if !allowed[v] {
			t.Fatalf("value %v is not one of the normal samples", v)
		}
	}

	empty := models.TestDefinition{MinValue: 3.5, MaxValue: 5.5}
	for i := 0; i < 5; i++ {
		if v := RandomNormalValue(empty); v != 4.5 {
			t.Fatalf("expected midpoint 4.5, got %v", v)
		}
	}
}

func TestFileSourceAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	catalog := `tests:
  - name: Amylase
    group: Biochemistry
    gender: Both
    min: 30
    max: 110
    unit: U/L
    normal_samples: [45, 72, 98]
`
	if err := os.WriteFile(path, []byte(catalog), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	lib := New(append(testSources(), FileSource(path))...)
	if err := lib.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def, ok := lib.GenderSpecific("Amylase", models.GenderMale)
	if !ok || def.Unit != "U/L" || len(def.NormalSamples) != 3 {
		t.Fatalf("expected file-sourced amylase, got %+v ok=%v", def, ok)
	}

	// Reload swaps in a fresh snapshot; the file now omits Amylase.
	if err := os.WriteFile(path, []byte("tests:\n  - name: Lipase\n    group: Biochemistry\n    gender: Both\n    min: 0\n    max: 60\n    unit: U/L\n"), 0o600); err != nil {
		t.Fatalf("failed to rewrite catalog: %v", err)
	}
	if err := lib.Reload(); err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}
	if _, ok := lib.GenderSpecific("Amylase", models.GenderMale); ok {
		t.Fatal("expected amylase to disappear after reload")
	}
	if _, ok := lib.GenderSpecific("Lipase", models.GenderMale); !ok {
		t.Fatal("expected lipase after reload")
	}
}

func TestBuiltinSourcesLoad(t *testing.T) {
	lib := New(BuiltinSources()...)
	if err := lib.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names, err := lib.UniqueTestNames()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) < 20 {
		t.Fatalf("expected a reasonably sized builtin catalog, got %d names", len(names))
	}
	groups, err := lib.Groups()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) < 5 {
		t.Fatalf("expected multiple groups, got %v", groups)
	}
}
