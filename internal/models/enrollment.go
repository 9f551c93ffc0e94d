package models

import "time"

// AssetKind names one of the documents attached to an enrollment.
type AssetKind string

// Supported asset kinds.
const (
	AssetIDFront           AssetKind = "id_front"
	AssetIDBack            AssetKind = "id_back"
	AssetBirthCertificate  AssetKind = "birth_certificate"
	AssetDiploma           AssetKind = "diploma"
	AssetGradesCertificate AssetKind = "grades_certificate"
	AssetSignature         AssetKind = "signature"
)

// AssetKinds lists every kind in storage column order.
var AssetKinds = []AssetKind{
	AssetIDFront,
	AssetIDBack,
	AssetBirthCertificate,
	AssetDiploma,
	AssetGradesCertificate,
	AssetSignature,
}

// Valid reports whether k is a known asset kind.
func (k AssetKind) Valid() bool {
	for _, kind := range AssetKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Column returns the enrollments column holding the asset URL.
func (k AssetKind) Column() string {
	return string(k) + "_url"
}

// Label is the human readable document name.
func (k AssetKind) Label() string {
	switch k {
	case AssetIDFront:
		return "ID card (front)"
	case AssetIDBack:
		return "ID card (back)"
	case AssetBirthCertificate:
		return "Birth certificate"
	case AssetDiploma:
		return "Diploma"
	case AssetGradesCertificate:
		return "Grades certificate"
	case AssetSignature:
		return "Signature"
	default:
		return string(k)
	}
}

// Assets maps each kind to its stored URL. A nil or missing entry means no document.
type Assets map[AssetKind]*string

// URL returns the stored URL for kind or "".
func (a Assets) URL(kind AssetKind) string {
	if a == nil || a[kind] == nil {
		return ""
	}
	return *a[kind]
}

// Set stores url for kind; an empty url clears it.
func (a Assets) Set(kind AssetKind, url string) {
	if url == "" {
		a[kind] = nil
		return
	}
	a[kind] = &url
}

// Any reports whether at least one document is present.
func (a Assets) Any() bool {
	for _, kind := range AssetKinds {
		if a.URL(kind) != "" {
			return true
		}
	}
	return false
}

// Clone returns a copy of a with every kind present.
func (a Assets) Clone() Assets {
	out := make(Assets, len(AssetKinds))
	for _, kind := range AssetKinds {
		out.Set(kind, a.URL(kind))
	}
	return out
}

// Gender values.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// Enrollment is a student registration for a career.
type Enrollment struct {
	ID                    string    `json:"id"`
	FullName              string    `json:"full_name"`
	BirthDate             time.Time `json:"birth_date"`
	Gender                string    `json:"gender"`
	MaritalStatus         string    `json:"marital_status"`
	Cedula                *string   `json:"cedula,omitempty"`
	Department            string    `json:"department"`
	Municipality          string    `json:"municipality"`
	Community             string    `json:"community"`
	Address               string    `json:"address"`
	Phone                 string    `json:"phone"`
	Email                 *string   `json:"email,omitempty"`
	AcademicLevel         string    `json:"academic_level"`
	EmergencyName         string    `json:"emergency_name"`
	EmergencyRelationship string    `json:"emergency_relationship"`
	EmergencyPhone        string    `json:"emergency_phone"`
	EmergencyAddress      string    `json:"emergency_address"`
	CareerID              string    `json:"career_id"`
	CareerName            string    `json:"career_name,omitempty"`
	CareerShift           string    `json:"career_shift,omitempty"`
	UserID                *string   `json:"user_id,omitempty"`
	UserName              *string   `json:"user_name,omitempty"`
	Assets                Assets    `json:"assets"`
	Printed               bool      `json:"printed"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// DocumentFilter narrows listings by document completeness.
type DocumentFilter string

// Document filter values.
const (
	DocumentsAny     DocumentFilter = ""
	DocumentsWith    DocumentFilter = "with"
	DocumentsWithout DocumentFilter = "without"
)

// EnrollmentFilter captures listing predicates.
type EnrollmentFilter struct {
	Date       *time.Time
	UserID     string
	PublicOnly bool
	Career     string
	Search     string
	Documents  DocumentFilter
	Printed    *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// DuplicateMatch reports which unique fields already exist.
type DuplicateMatch struct {
	Cedula bool
	Email  bool
}

// Found reports whether any field collided.
func (d DuplicateMatch) Found() bool {
	return d.Cedula || d.Email
}

// Actor identifies who performs a write. A nil actor is a public submission.
type Actor struct {
	UserID string
	Role   UserRole
}
