package optm

import (
	"fmt"
	"sort"
)

// imagingPlaceholderPercentage is reported for every matched pre/post pair.
// Images are not compared visually; the pair is scored as the lower bound of
// the moderate tier.
const imagingPlaceholderPercentage = 50.0

// AnalyzeImaging pools the studies of both snapshots, groups them by body part
// and emits one record for each body part that has both a pre-treatment and a
// post-treatment study. The improvement category is a fixed placeholder.
func AnalyzeImaging(current, previous *PatientSnapshot) []AnalysisRecord {
	if current == nil || previous == nil {
		return nil
	}

	seen := make(map[string]bool)
	byPart := make(map[string][]ImagingStudy)
	for _, snap := range []*PatientSnapshot{current, previous} {
		for _, img := range snap.Imaging {
			if img.ID != "" {
				if seen[img.ID] {
					continue
				}
				seen[img.ID] = true
			}
			byPart[img.BodyPart] = append(byPart[img.BodyPart], img)
		}
	}

	parts := make([]string, 0, len(byPart))
	for p := range byPart {
		parts = append(parts, p)
	}
	sort.Strings(parts)

	var records []AnalysisRecord
	for _, part := range parts {
		pre, post := latestByStage(byPart[part], ImagingPreTreatment), latestByStage(byPart[part], ImagingPostTreatment)
		if pre == nil || post == nil {
			continue
		}
		records = append(records, AnalysisRecord{
			Identifier:            part,
			Improvement:           ImprovementModerate,
			ImprovementPercentage: imagingPlaceholderPercentage,
			Notes: fmt.Sprintf("%s %s on %s compared with %s %s on %s. Qualitative review recommended; automated image comparison is not performed.",
				post.Type, ImagingPostTreatment, post.Date.Format("2006-01-02"),
				pre.Type, ImagingPreTreatment, pre.Date.Format("2006-01-02")),
		})
	}
	return records
}

func latestByStage(studies []ImagingStudy, stage string) *ImagingStudy {
	var found *ImagingStudy
	for i := range studies {
		if studies[i].Stage != stage {
			continue
		}
		if found == nil || studies[i].Date.After(found.Date) {
			found = &studies[i]
		}
	}
	return found
}
