package optm

import (
	"sort"
	"strings"
)

// AnalyzeBiomarkers compares every biomarker present in both snapshots.
// Biomarkers without a previous reading are left out. Returns nil when either
// snapshot is missing.
func AnalyzeBiomarkers(current, previous *PatientSnapshot) []AnalysisRecord {
	if current == nil || previous == nil {
		return nil
	}

	keys := make([]string, 0, len(current.Biomarkers))
	for k, v := range current.Biomarkers {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	records := make([]AnalysisRecord, 0, len(keys))
	for _, key := range keys {
		prev := previous.Biomarkers[key]
		if prev == nil {
			continue
		}
		value := *current.Biomarkers[key]
		status := GetBiomarkerStatus(key, value)
		pct := CalculateImprovement(value, *prev, IsLowerBetter(key))

		rec := AnalysisRecord{
			Identifier:            key,
			CurrentValue:          floatPtr(value),
			PreviousValue:         floatPtr(*prev),
			Status:                &status,
			Improvement:           CalculateImprovementCategory(pct),
			ImprovementPercentage: pct,
		}
		rec.Notes = biomarkerNotes(key, value, status, rec)
		records = append(records, rec)
	}
	return records
}

func biomarkerNotes(key string, value float64, status BiomarkerStatus, rec AnalysisRecord) string {
	var b strings.Builder
	b.WriteString(BiomarkerName(key))
	switch status {
	case StatusElevated:
		b.WriteString(" is elevated")
	case StatusLow:
		b.WriteString(" is below the normal range")
	default:
		b.WriteString(" is within the normal range")
	}

	b.WriteString(" (")
	b.WriteString(formatValue(value))
	if rng, ok := LookupReferenceRange(key); ok {
		b.WriteString(" " + rng.Unit)
	}
	b.WriteString("; reference " + FormatReferenceRange(key) + "). ")

	b.WriteString(improvementPhrase(rec.Improvement, rec.ImprovementPercentage))

	if info, ok := biomarkerTable[key]; ok {
		b.WriteString(" " + info.remark)
	}
	return b.String()
}
