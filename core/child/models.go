package child

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/acolher/core"
)

type Child struct {
	ID            string      `json:"id"`
	InstitutionID string      `json:"institution_id"`
	Name          string      `json:"name"`
	BirthDate     null.String `json:"birth_date"`
	Gender        string      `json:"gender"`
	AdmissionDate null.String `json:"admission_date"`
	DischargeDate null.String `json:"discharge_date"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at"` // UTC
}

func (c Child) IsSheltered() bool {
	return !c.DischargeDate.Valid
}

type Note struct {
	ID            string    `json:"id"`
	ChildID       string    `json:"child_id"`
	InstitutionID string    `json:"institution_id"`
	AuthorID      string    `json:"author_id"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

type Photo struct {
	ID            string    `json:"id"`
	ChildID       string    `json:"child_id"`
	InstitutionID string    `json:"institution_id"`
	Key           string    `json:"-"`
	URL           string    `json:"url"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	Caption       string    `json:"caption"`
	UploadedBy    string    `json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// NewChild contains information needed to register a child.
type NewChild struct {
	Name          string      `json:"name" validate:"required"`
	BirthDate     null.String `json:"birth_date" validate:"isodate"`
	Gender        string      `json:"gender"`
	AdmissionDate null.String `json:"admission_date" validate:"isodate"`
}

func (nc *NewChild) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Gender = core.CleanString(nc.Gender)
	nc.BirthDate = cleanDate(nc.BirthDate)
	nc.AdmissionDate = cleanDate(nc.AdmissionDate)
	return validate.Struct(nc)
}

// UpdateChild defines what information may be provided to modify an existing Child.
type UpdateChild struct {
	Name          string      `json:"name"`
	BirthDate     null.String `json:"birth_date" validate:"isodate"`
	Gender        string      `json:"gender"`
	AdmissionDate null.String `json:"admission_date" validate:"isodate"`
	DischargeDate null.String `json:"discharge_date" validate:"isodate"`
}

func (uc *UpdateChild) Validate(orig Child, validate *validator.Validate) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	uc.Gender = core.CleanString(uc.Gender)
	uc.BirthDate = cleanDate(uc.BirthDate)
	uc.AdmissionDate = cleanDate(uc.AdmissionDate)
	uc.DischargeDate = cleanDate(uc.DischargeDate)
	return validate.Struct(uc)
}

type NewNote struct {
	Body string `json:"body" validate:"required"`
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.Body = core.CleanString(nn.Body)
	return validate.Struct(nn)
}

type NewPhoto struct {
	Filename string
	Caption  string
	Data     []byte
}

type QueryFilter struct {
	Search    string `query:"search"`
	Sheltered *bool  `query:"sheltered"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Sheltered == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

func cleanDate(d null.String) null.String {
	if s := core.CleanString(d.String); d.Valid && s != "" {
		return null.StringFrom(s)
	}
	return null.String{}
}
