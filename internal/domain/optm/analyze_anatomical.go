package optm

import "fmt"

// AnalyzeAnatomical compares the CTM value and the CCM series. CCM entries are
// paired by position, not by location: ccm[i] is compared with the previous
// ccm[i] and surplus entries on either side are ignored.
func AnalyzeAnatomical(current, previous *PatientSnapshot) []AnalysisRecord {
	if current == nil || previous == nil {
		return nil
	}
	cur := current.AnatomicalMeasurements
	prev := previous.AnatomicalMeasurements

	var records []AnalysisRecord
	if cur.CTM != nil && prev.CTM != nil {
		pct := CalculateImprovement(*cur.CTM, *prev.CTM, true)
		cat := CalculateImprovementCategory(pct)
		records = append(records, AnalysisRecord{
			Identifier:            "CTM",
			CurrentValue:          floatPtr(*cur.CTM),
			PreviousValue:         floatPtr(*prev.CTM),
			Improvement:           cat,
			ImprovementPercentage: pct,
			Notes: fmt.Sprintf("CTM measured %s (previous %s). %s",
				formatValue(*cur.CTM), formatValue(*prev.CTM), improvementPhrase(cat, pct)),
		})
	}

	n := len(cur.CCM)
	if len(prev.CCM) < n {
		n = len(prev.CCM)
	}
	for i := 0; i < n; i++ {
		c, p := cur.CCM[i], prev.CCM[i]
		pct := CalculateImprovement(c.Value, p.Value, true)
		cat := CalculateImprovementCategory(pct)
		records = append(records, AnalysisRecord{
			Identifier:            measurementLabel("CCM", c),
			CurrentValue:          floatPtr(c.Value),
			PreviousValue:         floatPtr(p.Value),
			Improvement:           cat,
			ImprovementPercentage: pct,
			Notes: fmt.Sprintf("CCM at %s measured %s %s (previous %s %s). %s",
				locationOrUnknown(c.Location), formatValue(c.Value), c.Unit,
				formatValue(p.Value), p.Unit, improvementPhrase(cat, pct)),
		})
	}
	return records
}

func measurementLabel(prefix string, m AnatomicalMeasurement) string {
	label := prefix
	if m.Location != "" {
		label += " " + m.Location
	}
	if m.Side != nil && *m.Side != "" {
		label += " (" + *m.Side + ")"
	}
	return label
}

func locationOrUnknown(loc string) string {
	if loc == "" {
		return "unspecified location"
	}
	return loc
}
