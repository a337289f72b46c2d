package optm

import (
	"fmt"
	"sort"
	"strconv"
)

// ReferenceRange is the normal interval of a biomarker.
type ReferenceRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit"`
}

type biomarkerInfo struct {
	name   string
	rng    ReferenceRange
	remark string
}

// biomarkerTable is read-only after package initialisation.
var biomarkerTable = map[string]biomarkerInfo{
	"crp": {
		name:   "C-Reactive Protein",
		rng:    ReferenceRange{Min: 0, Max: 8, Unit: "mg/L"},
		remark: "CRP reflects systemic inflammation and usually tracks joint inflammatory activity.",
	},
	"il6": {
		name:   "Interleukin-6",
		rng:    ReferenceRange{Min: 0, Max: 7, Unit: "pg/mL"},
		remark: "IL-6 is a pro-inflammatory cytokine associated with synovial inflammation.",
	},
	"tnfAlpha": {
		name:   "TNF-alpha",
		rng:    ReferenceRange{Min: 0, Max: 8.1, Unit: "pg/mL"},
		remark: "TNF-alpha drives cartilage catabolism and inflammatory pain.",
	},
	"mmp9": {
		name:   "MMP-9",
		rng:    ReferenceRange{Min: 0, Max: 600, Unit: "ng/mL"},
		remark: "MMP-9 indicates extracellular matrix degradation activity.",
	},
	"mmp13": {
		name:   "MMP-13",
		rng:    ReferenceRange{Min: 0, Max: 100, Unit: "pg/mL"},
		remark: "MMP-13 is the main collagenase degrading type II cartilage collagen.",
	},
	"ckMm": {
		name:   "Creatine Kinase (CK-MM)",
		rng:    ReferenceRange{Min: 30, Max: 200, Unit: "U/L"},
		remark: "CK-MM reflects skeletal muscle stress and recovery.",
	},
	"mda": {
		name:   "Malondialdehyde",
		rng:    ReferenceRange{Min: 0, Max: 4, Unit: "umol/L"},
		remark: "MDA is a marker of oxidative stress and lipid peroxidation.",
	},
	"comp": {
		name:   "Cartilage Oligomeric Matrix Protein",
		rng:    ReferenceRange{Min: 0, Max: 11, Unit: "U/L"},
		remark: "COMP release reflects cartilage turnover and breakdown.",
	},
	"dDimer": {
		name:   "D-Dimer",
		rng:    ReferenceRange{Min: 0, Max: 0.5, Unit: "mg/L FEU"},
		remark: "D-dimer reflects fibrin turnover and should stay low during rehabilitation.",
	},
	"substanceP": {
		name:   "Substance P",
		rng:    ReferenceRange{Min: 0, Max: 200, Unit: "pg/mL"},
		remark: "Substance P is a neuropeptide linked to pain signalling and neurogenic inflammation.",
	},
	"vitaminD": {
		name:   "Vitamin D (25-OH)",
		rng:    ReferenceRange{Min: 30, Max: 100, Unit: "ng/mL"},
		remark: "Adequate vitamin D supports bone mineralisation and muscle function.",
	},
	"igf1": {
		name:   "IGF-1",
		rng:    ReferenceRange{Min: 100, Max: 300, Unit: "ng/mL"},
		remark: "IGF-1 supports tissue repair and cartilage matrix synthesis.",
	},
	"piianp": {
		name:   "PIIANP",
		rng:    ReferenceRange{Min: 300, Max: 1000, Unit: "ng/mL"},
		remark: "PIIANP reflects type II collagen synthesis and cartilage repair.",
	},
	"omega3Index": {
		name:   "Omega-3 Index",
		rng:    ReferenceRange{Min: 8, Max: 12, Unit: "%"},
		remark: "A higher omega-3 index is associated with lower inflammatory tone.",
	},
}

var lowerIsBetterBiomarkers = map[string]bool{
	"crp": true, "il6": true, "tnfAlpha": true, "mda": true, "comp": true,
	"mmp9": true, "mmp13": true, "dDimer": true, "substanceP": true,
}

// IsLowerBetter reports whether a falling value of the biomarker is an
// improvement. Keys outside the allow-list are higher-is-better.
func IsLowerBetter(key string) bool {
	return lowerIsBetterBiomarkers[key]
}

// IsKnownBiomarker reports whether key is part of the reference table.
func IsKnownBiomarker(key string) bool {
	_, ok := biomarkerTable[key]
	return ok
}

// LookupReferenceRange returns a copy of the reference range for key.
func LookupReferenceRange(key string) (ReferenceRange, bool) {
	info, ok := biomarkerTable[key]
	return info.rng, ok
}

// BiomarkerKeys returns all known biomarker keys in sorted order.
func BiomarkerKeys() []string {
	keys := make([]string, 0, len(biomarkerTable))
	for k := range biomarkerTable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BiomarkerName returns the display name of key, or key itself when unknown.
func BiomarkerName(key string) string {
	if info, ok := biomarkerTable[key]; ok {
		return info.name
	}
	return key
}

// GetBiomarkerStatus classifies value against the reference range of key.
// Unknown keys are reported as normal.
func GetBiomarkerStatus(key string, value float64) BiomarkerStatus {
	info, ok := biomarkerTable[key]
	if !ok {
		return StatusNormal
	}
	if value < info.rng.Min {
		return StatusLow
	}
	if value > info.rng.Max {
		return StatusElevated
	}
	return StatusNormal
}

// FormatReferenceRange renders the range of key as "min - max unit".
func FormatReferenceRange(key string) string {
	info, ok := biomarkerTable[key]
	if !ok {
		return "Not available"
	}
	return fmt.Sprintf("%s - %s %s", formatValue(info.rng.Min), formatValue(info.rng.Max), info.rng.Unit)
}

// BiomarkerReference is the public view of one reference table row.
type BiomarkerReference struct {
	Key           string         `json:"key"`
	Name          string         `json:"name"`
	Range         ReferenceRange `json:"range"`
	Formatted     string         `json:"formatted"`
	LowerIsBetter bool           `json:"lower_is_better"`
}

// ReferenceTable lists every biomarker reference in key order.
func ReferenceTable() []BiomarkerReference {
	keys := BiomarkerKeys()
	out := make([]BiomarkerReference, 0, len(keys))
	for _, k := range keys {
		info := biomarkerTable[k]
		out = append(out, BiomarkerReference{
			Key:           k,
			Name:          info.name,
			Range:         info.rng,
			Formatted:     FormatReferenceRange(k),
			LowerIsBetter: IsLowerBetter(k),
		})
	}
	return out
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}
