package investigation

import (
	"strconv"
	"strings"

	"github.com/clinsim/platform/pkg/common/models"
	"github.com/clinsim/platform/pkg/reference"
)

// ResolveOrderable merges the three investigation sources into the
// orderable catalog for one session's case. Precedence per test name:
// database override > inline config lab > reference-library default.
func ResolveOrderable(cfg CaseConfig, rows []models.CaseInvestigation, lib *reference.Library) ([]models.OrderableTest, error) {
	configured := map[string]models.OrderableTest{}
	var seedOrder []string

	// Seed with inline config labs, then overlay database rows; database
	// rows win key collisions.
	for _, lab := range cfg.InlineLabs {
		if lab.TestName == "" {
			continue
		}
		entry := inlineLabEntry(lab)
		key := strings.ToLower(lab.TestName)
		if _, seen := configured[key]; !seen {
			seedOrder = append(seedOrder, key)
		}
		configured[key] = entry
	}
	for _, row := range rows {
		entry := databaseEntry(row)
		key := strings.ToLower(row.TestName)
		if _, seen := configured[key]; !seen {
			seedOrder = append(seedOrder, key)
		}
		configured[key] = entry
	}

	if !cfg.DefaultLabsEnabled {
		// Reference-only tests are excluded entirely.
		catalog := make([]models.OrderableTest, 0, len(seedOrder))
		for _, key := range seedOrder {
			catalog = append(catalog, configured[key])
		}
		return catalog, nil
	}

	names, err := lib.UniqueTestNames()
	if err != nil {
		return nil, err
	}
	catalog := make([]models.OrderableTest, 0, len(names))
	covered := map[string]bool{}
	for _, name := range names {
		key := strings.ToLower(name)
		covered[key] = true
		if entry, ok := configured[key]; ok {
			catalog = append(catalog, entry)
			continue
		}
		def, ok := lib.GenderSpecific(name, cfg.Gender)
		if !ok {
			continue
		}
		catalog = append(catalog, defaultEntry(def))
	}
	// Configured tests outside the reference library stay orderable.
	for _, key := range seedOrder {
		if !covered[key] {
			catalog = append(catalog, configured[key])
		}
	}
	return catalog, nil
}

func inlineLabEntry(lab InlineLab) models.OrderableTest {
	id := lab.ID
	if id == "" {
		id = configPrefix + Slugify(lab.TestName)
	}
	return models.OrderableTest{
		ID:                id,
		TestName:          lab.TestName,
		TestGroup:         fallbackGroup(lab.TestGroup),
		Gender:            models.NormalizeGender(lab.Gender),
		Unit:              lab.Unit,
		NormalSamples:     []float64(lab.NormalSamples),
		CurrentValue:      float64(lab.CurrentValue),
		MinValue:          float64(lab.MinValue),
		MaxValue:          float64(lab.MaxValue),
		IsAbnormal:        lab.IsAbnormal,
		TurnaroundMinutes: int(lab.TurnaroundMinutes),
		Source:            models.SourceConfig,
	}
}

func databaseEntry(row models.CaseInvestigation) models.OrderableTest {
	return models.OrderableTest{
		ID:                strconv.FormatInt(row.ID, 10),
		TestName:          row.TestName,
		TestGroup:         fallbackGroup(row.TestGroup),
		Gender:            row.Gender,
		Unit:              row.Unit,
		NormalSamples:     row.NormalSamples,
		CurrentValue:      row.CurrentValue,
		MinValue:          row.MinValue,
		MaxValue:          row.MaxValue,
		IsAbnormal:        row.IsAbnormal,
		TurnaroundMinutes: row.TurnaroundMinutes,
		Source:            models.SourceDatabase,
	}
}

func defaultEntry(def models.TestDefinition) models.OrderableTest {
	return models.OrderableTest{
		ID:            defaultPrefix + Slugify(def.TestName),
		TestName:      def.TestName,
		TestGroup:     fallbackGroup(def.Group),
		Gender:        def.Gender,
		Unit:          def.Unit,
		NormalSamples: def.NormalSamples,
		CurrentValue:  reference.RandomNormalValue(def),
		MinValue:      def.MinValue,
		MaxValue:      def.MaxValue,
		IsAbnormal:    false,
		Source:        models.SourceDefault,
	}
}

func fallbackGroup(group string) string {
	if group == "" {
		return "General"
	}
	return group
}
