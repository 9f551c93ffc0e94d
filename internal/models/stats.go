package models

import "time"

// DashboardStats aggregates enrollment statistics.
type DashboardStats struct {
	Total           int                 `json:"total"`
	CurrentMonth    int                 `json:"current_month"`
	Monthly         []MonthlyCount      `json:"monthly"`
	ByCareer        []CareerCount       `json:"by_career"`
	ByMunicipality  []MunicipalityCount `json:"by_municipality"`
	ByAcademicLevel []LabelCount        `json:"by_academic_level"`
	AgeHistogram    []AgeCount          `json:"age_histogram"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// MonthlyCount is one calendar-month bucket, Month formatted as YYYY-MM.
type MonthlyCount struct {
	Month string `db:"month" json:"month"`
	Count int    `db:"count" json:"count"`
}

// CareerCount groups enrollments per career.
type CareerCount struct {
	Career string      `db:"career" json:"career"`
	Shift  CareerShift `db:"shift" json:"shift"`
	Count  int         `db:"count" json:"count"`
}

// MunicipalityCount nests community counts under a municipality.
type MunicipalityCount struct {
	Municipality string       `json:"municipality"`
	Count        int          `json:"count"`
	Communities  []LabelCount `json:"communities"`
}

// LocationCount is a flat municipality/community row.
type LocationCount struct {
	Municipality string `db:"municipality"`
	Community    string `db:"community"`
	Count        int    `db:"count"`
}

// LabelCount is a generic label/count pair.
type LabelCount struct {
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}

// AgeCount is one histogram bucket.
type AgeCount struct {
	Age   int `json:"age"`
	Count int `json:"count"`
}

// AgeOn returns the age in whole years on ref.
func AgeOn(birth, ref time.Time) int {
	age := ref.Year() - birth.Year()
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		age--
	}
	return age
}
