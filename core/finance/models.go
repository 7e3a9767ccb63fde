package finance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/acolher/core"
)

type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Record is an income or expense entry of an institution's books. Amounts are in cents.
type Record struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	Kind          Kind      `json:"kind"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	AmountCents   int64     `json:"amount_cents"`
	Date          string    `json:"date"` // YYYY-MM-DD
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// Summary totals a set of records.
type Summary struct {
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
	BalanceCents int64  `json:"balance_cents"`
	Count        int    `json:"count"`
}

type NewRecord struct {
	Kind        Kind   `json:"kind" validate:"required,oneof=income expense"`
	Category    string `json:"category" validate:"required"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Date        string `json:"date" validate:"required,isodate"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.Kind = Kind(core.CleanString(string(nr.Kind), true /* lower */))
	nr.Category = core.CleanString(nr.Category)
	nr.Description = core.CleanString(nr.Description)
	nr.Date = core.CleanString(nr.Date)
	return validate.Struct(nr)
}

type UpdateRecord struct {
	Kind        Kind   `json:"kind" validate:"omitempty,oneof=income expense"`
	Category    string `json:"category"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents" validate:"gte=0"`
	Date        string `json:"date" validate:"isodate"`
}

func (ur *UpdateRecord) Validate(orig Record, validate *validator.Validate) error {
	if kind := Kind(core.CleanString(string(ur.Kind), true /* lower */)); kind != "" {
		ur.Kind = kind
	} else {
		ur.Kind = orig.Kind
	}
	if cat := core.CleanString(ur.Category); cat != "" {
		ur.Category = cat
	} else {
		ur.Category = orig.Category
	}
	ur.Description = core.CleanString(ur.Description)
	if ur.AmountCents == 0 {
		ur.AmountCents = orig.AmountCents
	}
	if date := core.CleanString(ur.Date); date != "" {
		ur.Date = date
	} else {
		ur.Date = orig.Date
	}
	return validate.Struct(ur)
}

type QueryFilter struct {
	Kind     Kind   `query:"kind"`
	Category string `query:"category"`
	From     string `query:"from" validate:"isodate"`
	To       string `query:"to" validate:"isodate"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Kind == "" && qf.Category == "" && qf.From == "" && qf.To == ""
}

func (qf *QueryFilter) Clean() {
	qf.Kind = Kind(core.CleanString(string(qf.Kind), true /* lower */))
	qf.Category = core.CleanString(qf.Category)
	qf.From = core.CleanString(qf.From)
	qf.To = core.CleanString(qf.To)
}

// Match reports whether r passes every set criterion of qf. Dates compare lexically (YYYY-MM-DD).
func (qf *QueryFilter) Match(r Record) bool {
	if qf == nil {
		return true
	}
	if qf.Kind != "" && r.Kind != qf.Kind {
		return false
	}
	if qf.Category != "" && r.Category != qf.Category {
		return false
	}
	if qf.From != "" && r.Date < qf.From {
		return false
	}
	if qf.To != "" && r.Date > qf.To {
		return false
	}
	return true
}
