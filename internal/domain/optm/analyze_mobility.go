package optm

import (
	"fmt"
	"math"
)

const (
	kneeFlexionTarget   = 135.0
	kneeExtensionTarget = 0.0
	// Midpoint of the 4-7 degree anterior pelvic tilt norm.
	pelvicTiltTarget = 5.5
)

// AnalyzeMobility compares knee flexion, knee extension and pelvic tilt. Each
// joint is analyzed only when both snapshots carry a reading for it.
func AnalyzeMobility(current, previous *PatientSnapshot) []AnalysisRecord {
	if current == nil || previous == nil {
		return nil
	}
	cur := current.MobilityMeasurements
	prev := previous.MobilityMeasurements

	var records []AnalysisRecord

	if cur.KneeFlexion != nil && prev.KneeFlexion != nil {
		c, p := cur.KneeFlexion.Value, prev.KneeFlexion.Value
		pct := CalculateImprovement(c, p, false)
		records = append(records, mobilityRecord("Knee Flexion", cur.KneeFlexion, c, p, pct, kneeFlexionTarget))
	}

	if cur.KneeExtension != nil && prev.KneeExtension != nil {
		// Closer to full extension (0 degrees) is better in either direction.
		c, p := cur.KneeExtension.Value, prev.KneeExtension.Value
		pct := CalculateImprovement(math.Abs(c), math.Abs(p), true)
		records = append(records, mobilityRecord("Knee Extension", cur.KneeExtension, c, p, pct, kneeExtensionTarget))
	}

	if cur.PelvicTilt != nil && prev.PelvicTilt != nil {
		c, p := cur.PelvicTilt.Value, prev.PelvicTilt.Value
		pct := CalculateImprovement(math.Abs(c-pelvicTiltTarget), math.Abs(p-pelvicTiltTarget), true)
		records = append(records, mobilityRecord("Pelvic Tilt", cur.PelvicTilt, c, p, pct, pelvicTiltTarget))
	}

	return records
}

func mobilityRecord(identifier string, m *JointMotion, current, previous, pct, target float64) AnalysisRecord {
	cat := CalculateImprovementCategory(pct)

	qualifier := m.Side
	if qualifier == "" {
		qualifier = m.Direction
	}
	subject := identifier
	if qualifier != "" {
		subject += " (" + qualifier + ")"
	}

	return AnalysisRecord{
		Identifier:            identifier,
		CurrentValue:          floatPtr(current),
		PreviousValue:         floatPtr(previous),
		Improvement:           cat,
		ImprovementPercentage: pct,
		Target:                floatPtr(target),
		Notes: fmt.Sprintf("%s measured %s° (previous %s°, target %s°). %s",
			subject, formatValue(current), formatValue(previous), formatValue(target),
			improvementPhrase(cat, pct)),
	}
}
