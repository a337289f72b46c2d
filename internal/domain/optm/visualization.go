package optm

import "sort"

// BiomarkerChartPoint is one bar of the biomarker chart.
type BiomarkerChartPoint struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Current  float64  `json:"current"`
	Previous *float64 `json:"previous,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Status   string   `json:"status"`
}

type MeasurementChartPoint struct {
	Name     string   `json:"name"`
	Current  float64  `json:"current"`
	Previous *float64 `json:"previous,omitempty"`
	Unit     string   `json:"unit,omitempty"`
}

type MobilityChartPoint struct {
	Name     string   `json:"name"`
	Current  float64  `json:"current"`
	Previous *float64 `json:"previous,omitempty"`
	Target   *float64 `json:"target,omitempty"`
}

// RadarChartPoint is one axis of the per-domain radar chart.
type RadarChartPoint struct {
	Domain   string  `json:"domain"`
	Value    float64 `json:"value"`
	FullMark float64 `json:"full_mark"`
}

// VisualizationData is a chart-ready projection of two snapshots and their
// analysis. It is read-only output and never fed back into the engine.
type VisualizationData struct {
	BiomarkerChartData  []BiomarkerChartPoint   `json:"biomarker_chart_data"`
	AnatomicalChartData []MeasurementChartPoint `json:"anatomical_chart_data"`
	MobilityChartData   []MobilityChartPoint    `json:"mobility_chart_data"`
	RadarChartData      []RadarChartPoint       `json:"radar_chart_data"`
	OverallProgress     OverallProgress         `json:"overall_progress"`
	Recommendations     []Recommendation        `json:"recommendations"`
}

// PrepareVisualizationData reshapes snapshots and an analysis result into chart
// series. When result is nil the analysis is computed from the snapshots.
func PrepareVisualizationData(current, previous *PatientSnapshot, result *AnalysisResult) *VisualizationData {
	if result == nil {
		result = Analyze(current, previous)
	}
	data := &VisualizationData{
		BiomarkerChartData:  []BiomarkerChartPoint{},
		AnatomicalChartData: []MeasurementChartPoint{},
		MobilityChartData:   []MobilityChartPoint{},
		RadarChartData:      radarData(result),
		OverallProgress:     result.OverallProgress,
		Recommendations:     result.Recommendations,
	}
	if current == nil {
		return data
	}

	data.BiomarkerChartData = biomarkerChart(current, previous)
	data.AnatomicalChartData = anatomicalChart(current, previous)
	data.MobilityChartData = mobilityChart(current, previous)
	return data
}

func biomarkerChart(current, previous *PatientSnapshot) []BiomarkerChartPoint {
	keys := make([]string, 0, len(current.Biomarkers))
	for k, v := range current.Biomarkers {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	points := make([]BiomarkerChartPoint, 0, len(keys))
	for _, k := range keys {
		v := *current.Biomarkers[k]
		p := BiomarkerChartPoint{
			Key:     k,
			Name:    BiomarkerName(k),
			Current: v,
			Status:  string(GetBiomarkerStatus(k, v)),
		}
		if previous != nil {
			if pv := previous.Biomarkers[k]; pv != nil {
				p.Previous = floatPtr(*pv)
			}
		}
		if rng, ok := LookupReferenceRange(k); ok {
			p.Min = floatPtr(rng.Min)
			p.Max = floatPtr(rng.Max)
			p.Unit = rng.Unit
		}
		points = append(points, p)
	}
	return points
}

func anatomicalChart(current, previous *PatientSnapshot) []MeasurementChartPoint {
	cur := current.AnatomicalMeasurements
	var prev AnatomicalMeasurements
	if previous != nil {
		prev = previous.AnatomicalMeasurements
	}

	points := []MeasurementChartPoint{}
	if cur.CTM != nil {
		p := MeasurementChartPoint{Name: "CTM", Current: *cur.CTM}
		if prev.CTM != nil {
			p.Previous = floatPtr(*prev.CTM)
		}
		points = append(points, p)
	}

	series := []struct {
		prefix string
		cur    []AnatomicalMeasurement
		prev   []AnatomicalMeasurement
	}{
		{"CCM", cur.CCM, prev.CCM},
		{"CAP", cur.CAP, prev.CAP},
		{"CBP", cur.CBP, prev.CBP},
	}
	for _, s := range series {
		for i, m := range s.cur {
			p := MeasurementChartPoint{Name: measurementLabel(s.prefix, m), Current: m.Value, Unit: m.Unit}
			if i < len(s.prev) {
				p.Previous = floatPtr(s.prev[i].Value)
			}
			points = append(points, p)
		}
	}
	return points
}

func mobilityChart(current, previous *PatientSnapshot) []MobilityChartPoint {
	cur := current.MobilityMeasurements
	var prev MobilityMeasurements
	if previous != nil {
		prev = previous.MobilityMeasurements
	}

	joints := []struct {
		name   string
		cur    *JointMotion
		prev   *JointMotion
		target *float64
	}{
		{"Knee Flexion", cur.KneeFlexion, prev.KneeFlexion, floatPtr(kneeFlexionTarget)},
		{"Knee Extension", cur.KneeExtension, prev.KneeExtension, floatPtr(kneeExtensionTarget)},
		{"Pelvic Tilt", cur.PelvicTilt, prev.PelvicTilt, floatPtr(pelvicTiltTarget)},
		{"Cervical Rotation", cur.CervicalRotation, prev.CervicalRotation, nil},
		{"Shoulder Flexion", cur.ShoulderFlexion, prev.ShoulderFlexion, nil},
		{"Hip Flexion", cur.HipFlexion, prev.HipFlexion, nil},
	}

	points := []MobilityChartPoint{}
	for _, j := range joints {
		if j.cur == nil {
			continue
		}
		p := MobilityChartPoint{Name: j.name, Current: j.cur.Value, Target: j.target}
		if j.prev != nil {
			p.Previous = floatPtr(j.prev.Value)
		}
		points = append(points, p)
	}
	return points
}

func radarData(result *AnalysisResult) []RadarChartPoint {
	domains := []struct {
		name    string
		records []AnalysisRecord
	}{
		{"Biomarkers", result.BiomarkerAnalysis},
		{"Anatomical", result.AnatomicalAnalysis},
		{"Mobility", result.MobilityAnalysis},
		{"Imaging", result.ImagingAnalysis},
	}
	points := make([]RadarChartPoint, 0, len(domains))
	for _, d := range domains {
		points = append(points, RadarChartPoint{
			Domain:   d.name,
			Value:    mean(percentages(d.records)),
			FullMark: 100,
		})
	}
	return points
}
