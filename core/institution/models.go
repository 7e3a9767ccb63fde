package institution

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/acolher/core"
)

type Institution struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Document  string    `json:"document"` // CNPJ
	City      string    `json:"city"`
	State     string    `json:"state"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewInstitution contains information needed to register an Institution.
type NewInstitution struct {
	Name     string `json:"name" validate:"required"`
	Document string `json:"document"`
	City     string `json:"city"`
	State    string `json:"state" validate:"omitempty,len=2,alpha"`
	Phone    string `json:"phone"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (ni *NewInstitution) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Document = core.CleanString(ni.Document)
	ni.City = core.CleanString(ni.City)
	ni.State = core.CleanString(ni.State)
	ni.Phone = core.CleanString(ni.Phone)
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	return validate.Struct(ni)
}

// UpdateInstitution defines what information may be provided to modify an existing Institution.
type UpdateInstitution struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	City     string `json:"city"`
	State    string `json:"state" validate:"omitempty,len=2,alpha"`
	Phone    string `json:"phone"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (ui *UpdateInstitution) Validate(orig Institution, validate *validator.Validate) error {
	if name := core.CleanString(ui.Name); name != "" {
		ui.Name = name
	} else {
		ui.Name = orig.Name
	}
	ui.Document = core.CleanString(ui.Document)
	ui.City = core.CleanString(ui.City)
	ui.State = core.CleanString(ui.State)
	ui.Phone = core.CleanString(ui.Phone)
	ui.Email = core.CleanString(ui.Email, true /* lower */)
	return validate.Struct(ui)
}

type QueryFilter struct {
	Search string `query:"search"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
