package reference

import "github.com/clinsim/platform/pkg/common/models"

// BuiltinSources returns the static panels compiled into the service. An
// external YAML catalog, when configured, is appended after these, so the
// builtin definitions win collisions.
func BuiltinSources() []Source {
	return []Source{
		NewStaticSource("core-panels", corePanels()),
		NewStaticSource("extended-panels", extendedPanels()),
	}
}

func corePanels() []models.TestDefinition {
	return []models.TestDefinition{
		// Haematology
		{TestName: "Haemoglobin", Group: "Haematology", Gender: models.GenderMale, MinValue: 13.0, MaxValue: 17.0, Unit: "g/dL", NormalSamples: []float64{13.8, 14.5, 15.2, 16.1}},
		{TestName: "Haemoglobin", Group: "Haematology", Gender: models.GenderFemale, MinValue: 11.5, MaxValue: 15.5, Unit: "g/dL", NormalSamples: []float64{12.1, 12.9, 13.6, 14.4}},
		{TestName: "White Cell Count", Group: "Haematology", Gender: models.GenderBoth, MinValue: 4.0, MaxValue: 11.0, Unit: "x10^9/L", NormalSamples: []float64{5.2, 6.8, 7.4, 8.9}},
		{TestName: "Platelet Count", Group: "Haematology", Gender: models.GenderBoth, MinValue: 150, MaxValue: 400, Unit: "x10^9/L", NormalSamples: []float64{190, 230, 280, 320}},
		{TestName: "Haematocrit", Group: "Haematology", Gender: models.GenderMale, MinValue: 0.40, MaxValue: 0.52, Unit: "L/L", NormalSamples: []float64{0.42, 0.45, 0.48}},
		{TestName: "Haematocrit", Group: "Haematology", Gender: models.GenderFemale, MinValue: 0.36, MaxValue: 0.47, Unit: "L/L", NormalSamples: []float64{0.38, 0.41, 0.44}},
		{TestName: "ESR", Group: "Haematology", Gender: models.GenderBoth, MinValue: 0, MaxValue: 20, Unit: "mm/hr", NormalSamples: []float64{4, 8, 12, 15}},
		{TestName: "INR", Group: "Coagulation", Gender: models.GenderBoth, MinValue: 0.8, MaxValue: 1.2, Unit: "", NormalSamples: []float64{0.9, 1.0, 1.1}},
		{TestName: "APTT", Group: "Coagulation", Gender: models.GenderBoth, MinValue: 25, MaxValue: 35, Unit: "s", NormalSamples: []float64{27, 30, 33}},

		// Biochemistry
		{TestName: "Sodium", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 135, MaxValue: 145, Unit: "mmol/L", NormalSamples: []float64{137, 139, 141, 143}},
		{TestName: "Potassium", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 3.5, MaxValue: 5.5, Unit: "mmol/L", NormalSamples: []float64{3.8, 4.1, 4.5, 4.9}},
		{TestName: "Urea", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 2.5, MaxValue: 7.8, Unit: "mmol/L", NormalSamples: []float64{3.4, 4.6, 5.8, 6.9}},
		{TestName: "Creatinine", Group: "Biochemistry", Gender: models.GenderMale, MinValue: 60, MaxValue: 110, Unit: "umol/L", NormalSamples: []float64{72, 85, 94, 102}},
		{TestName: "Creatinine", Group: "Biochemistry", Gender: models.GenderFemale, MinValue: 45, MaxValue: 90, Unit: "umol/L", NormalSamples: []float64{54, 66, 75, 84}},
		{TestName: "Glucose (Fasting)", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 3.9, MaxValue: 5.5, Unit: "mmol/L", NormalSamples: []float64{4.2, 4.6, 5.0, 5.3}},
		{TestName: "Calcium (Corrected)", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 2.2, MaxValue: 2.6, Unit: "mmol/L", NormalSamples: []float64{2.28, 2.38, 2.48}},
		{TestName: "Magnesium", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 0.7, MaxValue: 1.0, Unit: "mmol/L", NormalSamples: []float64{0.76, 0.84, 0.92}},
		{TestName: "Phosphate", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 0.8, MaxValue: 1.5, Unit: "mmol/L", NormalSamples: []float64{0.9, 1.1, 1.3}},
		{TestName: "CRP", Group: "Biochemistry", Gender: models.GenderBoth, MinValue: 0, MaxValue: 5, Unit: "mg/L", NormalSamples: []float64{0.8, 1.6, 2.9, 4.2}},
	}
}

func extendedPanels() []models.TestDefinition {
	return []models.TestDefinition{
		// Liver function
		{TestName: "ALT", Group: "Liver Function", Gender: models.GenderBoth, MinValue: 0, MaxValue: 40, Unit: "U/L", NormalSamples: []float64{14, 22, 28, 35}},
		{TestName: "AST", Group: "Liver Function", Gender: models.GenderBoth, MinValue: 0, MaxValue: 40, Unit: "U/L", NormalSamples: []float64{16, 21, 29, 34}},
		{TestName: "ALP", Group: "Liver Function", Gender: models.GenderBoth, MinValue: 30, MaxValue: 130, Unit: "U/L", NormalSamples: []float64{52, 71, 89, 112}},
		{TestName: "Bilirubin (Total)", Group: "Liver Function", Gender: models.GenderBoth, MinValue: 0, MaxValue: 21, Unit: "umol/L", NormalSamples: []float64{6, 10, 14, 18}},
		{TestName: "Albumin", Group: "Liver Function", Gender: models.GenderBoth, MinValue: 35, MaxValue: 50, Unit: "g/L", NormalSamples: []float64{38, 42, 46}},

		// Endocrine
		{TestName: "TSH", Group: "Endocrine", Gender: models.GenderBoth, MinValue: 0.4, MaxValue: 4.0, Unit: "mIU/L", NormalSamples: []float64{0.9, 1.6, 2.4, 3.2}},
		{TestName: "Free T4", Group: "Endocrine", Gender: models.GenderBoth, MinValue: 9, MaxValue: 25, Unit: "pmol/L", NormalSamples: []float64{12, 15, 18, 22}},
		{TestName: "HbA1c", Group: "Endocrine", Gender: models.GenderBoth, MinValue: 20, MaxValue: 42, Unit: "mmol/mol", NormalSamples: []float64{28, 33, 37, 40}},
		{TestName: "Testosterone", Group: "Endocrine", Gender: models.GenderMale, MinValue: 10, MaxValue: 35, Unit: "nmol/L", NormalSamples: []float64{14, 19, 24, 30}},
		{TestName: "Testosterone", Group: "Endocrine", Gender: models.GenderFemale, MinValue: 0.5, MaxValue: 2.4, Unit: "nmol/L", NormalSamples: []float64{0.8, 1.3, 1.9}},
		{TestName: "Cortisol (9am)", Group: "Endocrine", Gender: models.GenderBoth, MinValue: 140, MaxValue: 690, Unit: "nmol/L", NormalSamples: []float64{220, 340, 470, 590}},

		// Iron studies & lipids
		{TestName: "Ferritin", Group: "Iron Studies", Gender: models.GenderMale, MinValue: 30, MaxValue: 400, Unit: "ug/L", NormalSamples: []float64{65, 120, 210, 310}},
		{TestName: "Ferritin", Group: "Iron Studies", Gender: models.GenderFemale, MinValue: 15, MaxValue: 200, Unit: "ug/L", NormalSamples: []float64{25, 58, 96, 150}},
		{TestName: "Total Cholesterol", Group: "Lipids", Gender: models.GenderBoth, MinValue: 0, MaxValue: 5.0, Unit: "mmol/L", NormalSamples: []float64{3.6, 4.1, 4.6}},
		{TestName: "Triglycerides", Group: "Lipids", Gender: models.GenderBoth, MinValue: 0, MaxValue: 1.7, Unit: "mmol/L", NormalSamples: []float64{0.8, 1.1, 1.4}},

		// Cardiac
		{TestName: "Troponin I", Group: "Cardiac", Gender: models.GenderBoth, MinValue: 0, MaxValue: 0.04, Unit: "ng/mL", NormalSamples: []float64{0.01, 0.02, 0.03}},
		{TestName: "BNP", Group: "Cardiac", Gender: models.GenderBoth, MinValue: 0, MaxValue: 100, Unit: "pg/mL", NormalSamples: []float64{22, 45, 68, 90}},
	}
}
