// Package patient holds the curated clinical and molecular snapshot of one
// patient. Records are built by curation upstream and are read-only input to
// eligibility evaluation.
package patient

import (
	"strings"
	"time"
)

// Gender of the patient as curated
type Gender string

const (
	Male   Gender = "MALE"
	Female Gender = "FEMALE"
	Other  Gender = "OTHER"
)

// Record is the snapshot evaluated against trial eligibility criteria.
// Pointer fields are nil when the value is unknown.
type Record struct {
	PatientID string `json:"patientId"`
	SampleID  string `json:"sampleId,omitempty"`

	Demographics   Demographics   `json:"demographics"`
	ClinicalStatus ClinicalStatus `json:"clinicalStatus"`
	Tumor          TumorDetails   `json:"tumor"`

	Complications    []Complication    `json:"complications,omitempty"`
	PriorConditions  []Condition       `json:"priorConditions,omitempty"`
	LabValues        []LabValue        `json:"labValues,omitempty"`
	Medications      []Medication      `json:"medications,omitempty"`
	TreatmentHistory []TreatmentEntry  `json:"treatmentHistory,omitempty"`
	Surgeries        []Surgery         `json:"surgeries,omitempty"`
	Molecular        *MolecularRecord  `json:"molecular,omitempty"`
	Attributes       map[string]string `json:"attributes,omitempty"`
}

// Demographics of the patient
type Demographics struct {
	BirthYear int    `json:"birthYear,omitempty"` // zero when not curated
	Gender    Gender `json:"gender"`
}

// ClinicalStatus is the patient's status at registration
type ClinicalStatus struct {
	WHO              *int  `json:"who,omitempty"`
	HasComplications *bool `json:"hasComplications,omitempty"`
	HasToxicities    *bool `json:"hasToxicities,omitempty"`
}

// TumorDetails describes the primary tumor and its spread
type TumorDetails struct {
	PrimaryTumorLocation  string   `json:"primaryTumorLocation,omitempty"`
	DOIDs                 []string `json:"doids,omitempty"`
	Stage                 string   `json:"stage,omitempty"`
	HasMeasurableDisease  *bool    `json:"hasMeasurableDisease,omitempty"`
	HasBrainLesions       *bool    `json:"hasBrainLesions,omitempty"`
	HasActiveBrainLesions *bool    `json:"hasActiveBrainLesions,omitempty"`
	HasLiverLesions       *bool    `json:"hasLiverLesions,omitempty"`
}

// Complication is a cancer-related complication
type Complication struct {
	Name     string   `json:"name"`
	IcdCodes []string `json:"icdCodes,omitempty"`
}

// Condition is an entry of the patient's medical history
type Condition struct {
	Name     string   `json:"name"`
	DOIDs    []string `json:"doids,omitempty"`
	IcdCodes []string `json:"icdCodes,omitempty"`
	Year     *int     `json:"year,omitempty"`
}

// LabValue is one laboratory measurement
type LabValue struct {
	Code        string    `json:"code"`
	Date        time.Time `json:"date"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit,omitempty"`
	RefLimitUp  *float64  `json:"refLimitUp,omitempty"`
	RefLimitLow *float64  `json:"refLimitLow,omitempty"`
}

// Medication is a medication the patient takes or took
type Medication struct {
	Name       string     `json:"name"`
	Categories []string   `json:"categories,omitempty"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	StopDate   *time.Time `json:"stopDate,omitempty"`
}

// TreatmentEntry is one line of prior oncological treatment
type TreatmentEntry struct {
	Name       string   `json:"name"`
	Drugs      []string `json:"drugs,omitempty"`
	Categories []string `json:"categories,omitempty"`
	IsSystemic bool     `json:"isSystemic"`
	StartYear  *int     `json:"startYear,omitempty"`
	StopYear   *int     `json:"stopYear,omitempty"`
}

// Surgery is a surgical procedure
type Surgery struct {
	Name    string     `json:"name"`
	EndDate *time.Time `json:"endDate,omitempty"`
}

// MolecularRecord carries driver events already interpreted by the
// molecular subsystem.
type MolecularRecord struct {
	Date                     *time.Time      `json:"date,omitempty"`
	TestedGenes              []string        `json:"testedGenes,omitempty"`
	Variants                 []Variant       `json:"variants,omitempty"`
	Amplifications           []Amplification `json:"amplifications,omitempty"`
	Fusions                  []Fusion        `json:"fusions,omitempty"`
	TumorMutationalBurden    *float64        `json:"tumorMutationalBurden,omitempty"`
	IsMicrosatelliteUnstable *bool           `json:"isMicrosatelliteUnstable,omitempty"`
}

// Variant is a small somatic variant
type Variant struct {
	Gene         string `json:"gene"`
	Event        string `json:"event"`
	IsReportable bool   `json:"isReportable"`
	IsActivating bool   `json:"isActivating"`
	IsHotspot    bool   `json:"isHotspot"`
}

// Amplification is a copy number gain of a gene
type Amplification struct {
	Gene         string `json:"gene"`
	IsReportable bool   `json:"isReportable"`
}

// Fusion is a gene fusion
type Fusion struct {
	GeneStart    string `json:"geneStart"`
	GeneEnd      string `json:"geneEnd"`
	IsReportable bool   `json:"isReportable"`
}

// Event renders the fusion the way it is displayed in reports
func (f Fusion) Event() string {
	return f.GeneStart + "::" + f.GeneEnd
}

// AgeRangeAt returns the lowest and highest age the patient can have on the
// given date. Only the birth year is curated, so the two differ by one. ok
// is false when the birth year is unknown.
func (r *Record) AgeRangeAt(date time.Time) (lowest, highest int, ok bool) {
	if r.Demographics.BirthYear <= 0 {
		return 0, 0, false
	}
	highest = date.Year() - r.Demographics.BirthYear
	return highest - 1, highest, true
}

// TestsGene reports whether the molecular record covers gene
func (m *MolecularRecord) TestsGene(gene string) bool {
	if m == nil {
		return false
	}
	for _, g := range m.TestedGenes {
		if strings.EqualFold(g, gene) {
			return true
		}
	}
	return false
}

// IsActiveAt reports whether the medication is taken on the given date
func (m Medication) IsActiveAt(date time.Time) bool {
	if m.StartDate != nil && m.StartDate.After(date) {
		return false
	}
	return m.StopDate == nil || !m.StopDate.Before(date)
}

// HasCategory reports whether the medication belongs to category
func (m Medication) HasCategory(category string) bool {
	for _, c := range m.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// MostRecentLabValue returns the latest measurement for code on or before
// date, or nil if there is none.
func (r *Record) MostRecentLabValue(code string, date time.Time) *LabValue {
	var latest *LabValue
	for i := range r.LabValues {
		lab := &r.LabValues[i]
		if !strings.EqualFold(lab.Code, code) || lab.Date.After(date) {
			continue
		}
		if latest == nil || lab.Date.After(latest.Date) {
			latest = lab
		}
	}
	return latest
}

// SystemicTreatmentLines counts the prior systemic treatment lines
func (r *Record) SystemicTreatmentLines() int {
	lines := 0
	for _, t := range r.TreatmentHistory {
		if t.IsSystemic {
			lines++
		}
	}
	return lines
}
