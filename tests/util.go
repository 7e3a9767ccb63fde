package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/acolher/core"
	"github.com/trezcool/acolher/core/casefile"
	"github.com/trezcool/acolher/core/child"
	"github.com/trezcool/acolher/core/institution"
	"github.com/trezcool/acolher/core/profile"
)

// NewValidator returns a validator with every custom tag registered, and its english translator.
func NewValidator() (*validator.Validate, ut.Translator) {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	profile.InitValidators(validate, translator)
	return validate, translator
}

func CreateInstitution(t *testing.T, repo institution.Repository, name string, createdAt ...time.Time) institution.Institution {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	inst, err := repo.CreateInstitution(context.Background(), institution.Institution{
		Name:      name,
		City:      "Recife",
		State:     "PE",
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateInstitution() failed: %v", err)
	}
	return inst
}

func CreateProfile(
	t *testing.T,
	repo profile.Repository,
	institutionID, name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) profile.Profile {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	p := profile.Profile{
		InstitutionID: institutionID,
		Name:          name,
		Email:         email,
		Role:          role,
		IsActive:      isActive,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	if pwd != "" {
		if err := p.SetPassword(pwd); err != nil {
			t.Fatalf("CreateProfile() failed: %v", err)
		}
	}
	p, err := repo.CreateProfile(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	return p
}

func CreateChild(t *testing.T, repo child.Repository, institutionID, name string) child.Child {
	now := time.Now().UTC()
	chd, err := repo.CreateChild(context.Background(), child.Child{
		InstitutionID: institutionID,
		Name:          name,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateChild() failed: %v", err)
	}
	return chd
}

// CreateCaseFile stores a draft case file for chd, last reviewed at lastReview.
func CreateCaseFile(t *testing.T, repo casefile.Repository, chd child.Child, lastReview time.Time) casefile.CaseFile {
	cf, err := repo.CreateCaseFile(context.Background(), casefile.CaseFile{
		InstitutionID: chd.InstitutionID,
		ChildID:       chd.ID,
		Status:        casefile.StatusDraft,
		Content: casefile.Content{
			ChildName:            chd.Name,
			AdmissionReasonTypes: []string{},
			Disabilities:         []string{},
			DrugsUsed:            []string{},
			VisitsReceived:       []string{},
			VisitSources:         []string{},
		},
		LastReviewAt: lastReview.UTC(),
		CreatedAt:    lastReview.UTC(),
		UpdatedAt:    lastReview.UTC(),
	})
	if err != nil {
		t.Fatalf("CreateCaseFile() failed: %v", err)
	}
	return cf
}

// Session returns the acting context of p, optionally overseeing another institution.
func Session(p profile.Profile, viewing ...string) core.Session {
	sess := p.Session()
	if len(viewing) > 0 {
		sess = sess.WithViewing(viewing[0])
	}
	return sess
}
