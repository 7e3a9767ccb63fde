package casefile

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/acolher/core"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
)

// Mode selects how an edit is persisted.
type Mode string

const (
	ModePlain   Mode = "plain"
	ModeRenewal Mode = "renewal" // archive the current state as history before updating
)

type (
	Contact struct {
		Name         string `json:"name" validate:"required"`
		Phone        string `json:"phone"`
		Relationship string `json:"relationship"`
		Address      string `json:"address"`
	}

	FamilyMember struct {
		Name           string      `json:"name" validate:"required"`
		Kinship        string      `json:"kinship"`
		BirthDate      null.String `json:"birth_date" validate:"isodate"`
		EducationLevel string      `json:"education_level"`
		Occupation     string      `json:"occupation"`
		Income         string      `json:"income"`
	}

	Treatment struct {
		Treatment  string `json:"treatment" validate:"required"`
		Location   string `json:"location"`
		Frequency  string `json:"frequency"`
		Medication string `json:"medication"`
	}

	Commitment struct {
		Description     string      `json:"description" validate:"required"`
		Responsible     string      `json:"responsible"`
		Network         string      `json:"network"`
		Deadline        null.String `json:"deadline" validate:"isodate"`
		ExpectedResults string      `json:"expected_results"`
		ObtainedResults string      `json:"obtained_results"`
	}

	PriorAdmission struct {
		InstitutionName string      `json:"institution_name" validate:"required"`
		EntryDate       null.String `json:"entry_date" validate:"isodate"`
		ExitDate        null.String `json:"exit_date" validate:"isodate"`
		Motive          string      `json:"motive"`
	}

	SiblingRef struct {
		Name     string      `json:"name" validate:"required"`
		Location string      `json:"location"`
		Date     null.String `json:"date" validate:"isodate"`
	}

	// Content is the editable body of a case file, grouped by form section.
	Content struct {
		// identification
		ChildName        string      `json:"child_name" validate:"required"`
		SocialName       string      `json:"social_name"`
		BirthDate        null.String `json:"birth_date" validate:"isodate"`
		Gender           string      `json:"gender"`
		Race             string      `json:"race"`
		Nationality      string      `json:"nationality"`
		Hometown         string      `json:"hometown"`
		BirthCertificate string      `json:"birth_certificate"`
		CPF              string      `json:"cpf"`
		NIS              string      `json:"nis"`

		// admission circumstances
		AdmissionDate          null.String      `json:"admission_date" validate:"isodate"`
		IsFirstAdmission       bool             `json:"is_first_admission"`
		TransferredFrom        string           `json:"transferred_from"`
		TransferredDate        null.String      `json:"transferred_date" validate:"isodate"`
		ReferralAgency         string           `json:"referral_agency"`
		CourtCaseNumber        string           `json:"court_case_number"`
		GuardianshipMeasure    string           `json:"guardianship_measure"`
		AdmissionReasonTypes   []string         `json:"admission_reason_types"`
		AdmissionReasonDetails string           `json:"admission_reason_details"`
		PriorAdmissions        []PriorAdmission `json:"prior_admissions" validate:"dive"`

		// vulnerabilities
		HasDisability   bool     `json:"has_disability"`
		Disabilities    []string `json:"disabilities"`
		UsesDrugs       bool     `json:"uses_drugs"`
		DrugsUsed       []string `json:"drugs_used"`
		ThreatenedLife  bool     `json:"threatened_life"`
		Vulnerabilities string   `json:"vulnerabilities"`

		// physical description
		Height              string `json:"height"`
		Weight              string `json:"weight"`
		EyeColor            string `json:"eye_color"`
		HairColor           string `json:"hair_color"`
		SkinColor           string `json:"skin_color"`
		DistinguishingMarks string `json:"distinguishing_marks"`

		// family situation
		MotherName        string         `json:"mother_name"`
		FatherName        string         `json:"father_name"`
		FamilySituation   string         `json:"family_situation"`
		FamilyIncome      string         `json:"family_income"`
		FamilyComposition []FamilyMember `json:"family_composition" validate:"dive"`
		ReferenceContacts []Contact      `json:"reference_contacts" validate:"dive"`
		HasSiblingsInCare bool           `json:"has_siblings_in_care"`
		SiblingsInCare    []SiblingRef   `json:"siblings_in_care" validate:"dive"`
		VisitsReceived    []string       `json:"visits_received"`
		VisitSources      []string       `json:"visit_sources"`
		VisitFrequency    string         `json:"visit_frequency"`

		// health
		HealthConditions    string      `json:"health_conditions"`
		HealthTreatments    []Treatment `json:"health_treatments" validate:"dive"`
		VaccinationUpToDate bool        `json:"vaccination_up_to_date"`
		LastMedicalVisit    null.String `json:"last_medical_visit" validate:"isodate"`
		HealthNotes         string      `json:"health_notes"`

		// education
		IsEnrolled     bool   `json:"is_enrolled"`
		SchoolName     string `json:"school_name"`
		SchoolGrade    string `json:"school_grade"`
		SchoolShift    string `json:"school_shift"`
		EducationNotes string `json:"education_notes"`

		// work
		Works           bool   `json:"works"`
		WorkDescription string `json:"work_description"`
		IsApprentice    bool   `json:"is_apprentice"`

		// final considerations
		Commitments         []Commitment `json:"commitments" validate:"dive"`
		FinalConsiderations string       `json:"final_considerations"`
		ResponsibleStaff    string       `json:"responsible_staff"`
	}

	CaseFile struct {
		ID            string `json:"id"`
		InstitutionID string `json:"institution_id"`
		ChildID       string `json:"child_id"`
		Status        Status `json:"status"`
		Content
		LastReviewAt time.Time `json:"last_review_at"` // UTC
		CreatedAt    time.Time `json:"created_at"`     // UTC
		CreatedBy    string    `json:"created_by"`
		UpdatedAt    time.Time `json:"updated_at"` // UTC
		UpdatedBy    string    `json:"updated_by"`
	}

	// HistoryEntry is an immutable snapshot of a case file taken before a renewal.
	HistoryEntry struct {
		ID            string    `json:"id"`
		CaseFileID    string    `json:"case_file_id"`
		ChildID       string    `json:"child_id"`
		InstitutionID string    `json:"institution_id"`
		Snapshot      CaseFile  `json:"snapshot"`
		CreatedAt     time.Time `json:"created_at"` // UTC
		CreatedBy     string    `json:"created_by"`
	}
)

func (cf CaseFile) IsFinalized() bool {
	return cf.Status == StatusFinalized
}

// NewCaseFile contains information needed to create a new CaseFile.
type NewCaseFile struct {
	ChildID string `json:"child_id" validate:"required"`
	Status  Status `json:"status" validate:"required,oneof=draft finalized"`
	Content
}

func (nc *NewCaseFile) Validate(validate *validator.Validate) error {
	nc.ChildID = core.CleanString(nc.ChildID)
	if nc.Status == "" {
		nc.Status = StatusDraft
	}
	nc.ChildName = core.CleanString(nc.ChildName)
	return validate.Struct(nc)
}

// UpdateCaseFile carries an edit of an existing CaseFile. The child is immutable.
// Save stores Content as given; partial edits start from UpdateFrom.
type UpdateCaseFile struct {
	Status Status `json:"status" validate:"omitempty,oneof=draft finalized"`
	Content
}

// UpdateFrom returns an edit holding the current state of cf, for a partial payload to be decoded over.
// Decoded arrays replace the stored ones whole.
func UpdateFrom(cf CaseFile) UpdateCaseFile {
	return UpdateCaseFile{Status: cf.Status, Content: cf.Content}
}

func (uc *UpdateCaseFile) Validate(orig CaseFile, validate *validator.Validate) error {
	if uc.Status == "" {
		uc.Status = orig.Status
	}
	uc.ChildName = core.CleanString(uc.ChildName)
	if uc.ChildName == "" {
		uc.ChildName = orig.ChildName
	}
	return validate.Struct(uc)
}

// ToggleRequest checks or unchecks one value of a checkbox group.
type ToggleRequest struct {
	Group   Group  `json:"group" validate:"required,oneof=admission_reason_types disabilities drugs_used visits_received visit_sources"`
	Value   string `json:"value" validate:"required"`
	Checked bool   `json:"checked"`
}

func (tr *ToggleRequest) Validate(validate *validator.Validate) error {
	tr.Value = core.CleanString(tr.Value)
	return validate.Struct(tr)
}

type QueryFilter struct {
	Search  string `query:"search"`
	Status  Status `query:"status"`
	Overdue *bool  `query:"overdue"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.Overdue == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))
}
