package casefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func TestContent_Sanitize(t *testing.T) {
	c := Content{
		ChildName:        "Ana",
		BirthDate:        null.StringFrom("  "),
		AdmissionDate:    null.StringFrom(" 2024-02-01 "),
		IsFirstAdmission: true,
		TransferredFrom:  "Casa Lar Esperança",
		TransferredDate:  null.StringFrom("2023-12-01"),
		FamilyComposition: []FamilyMember{
			{Name: "Maria", BirthDate: null.StringFrom("")},
		},
		Commitments: []Commitment{
			{Description: "Matricular na escola", Deadline: null.StringFrom("2024-03-01")},
		},
		PriorAdmissions: []PriorAdmission{
			{InstitutionName: "Abrigo Sol", EntryDate: null.StringFrom(""), ExitDate: null.StringFrom("2023-01-10")},
		},
		SiblingsInCare: []SiblingRef{{Name: "João", Date: null.StringFrom(" ")}},
		DrugsUsed:      []string{"Álcool", "Álcool"},
	}
	require.NoError(t, c.Sanitize())

	assert.False(t, c.BirthDate.Valid)
	assert.Equal(t, null.StringFrom("2024-02-01"), c.AdmissionDate)
	assert.Empty(t, c.TransferredFrom)
	assert.False(t, c.TransferredDate.Valid)
	assert.False(t, c.FamilyComposition[0].BirthDate.Valid)
	assert.Equal(t, null.StringFrom("2024-03-01"), c.Commitments[0].Deadline)
	assert.False(t, c.PriorAdmissions[0].EntryDate.Valid)
	assert.Equal(t, null.StringFrom("2023-01-10"), c.PriorAdmissions[0].ExitDate)
	assert.False(t, c.SiblingsInCare[0].Date.Valid)
	assert.Equal(t, []string{"Álcool"}, c.DrugsUsed)
	assert.Equal(t, []string{}, c.Disabilities)
}

func TestContent_Sanitize_keepsTransferOfReadmission(t *testing.T) {
	c := Content{
		ChildName:       "Ana",
		TransferredFrom: "Casa Lar Esperança",
		TransferredDate: null.StringFrom("2023-12-01"),
	}
	require.NoError(t, c.Sanitize())
	assert.Equal(t, "Casa Lar Esperança", c.TransferredFrom)
	assert.Equal(t, null.StringFrom("2023-12-01"), c.TransferredDate)
}
