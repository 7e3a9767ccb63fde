package casefile

import (
	"strings"

	"github.com/volatiletech/null/v8"
)

// Sanitize applies the save-time cleanup rules to c, whatever the edit buffer held:
// blank dates become null, a first admission carries no transfer data,
// and set-valued groups are de-duplicated and never null.
func (c *Content) Sanitize() error {
	for _, d := range c.dates() {
		*d = nullDate(*d)
	}
	if c.IsFirstAdmission {
		c.TransferredFrom = ""
		c.TransferredDate = null.String{}
	}
	return c.normalizeGroups()
}

// dates lists every nullable date of c, nested records included.
func (c *Content) dates() []*null.String {
	ds := []*null.String{
		&c.BirthDate,
		&c.AdmissionDate,
		&c.TransferredDate,
		&c.LastMedicalVisit,
	}
	for i := range c.FamilyComposition {
		ds = append(ds, &c.FamilyComposition[i].BirthDate)
	}
	for i := range c.Commitments {
		ds = append(ds, &c.Commitments[i].Deadline)
	}
	for i := range c.PriorAdmissions {
		ds = append(ds, &c.PriorAdmissions[i].EntryDate, &c.PriorAdmissions[i].ExitDate)
	}
	for i := range c.SiblingsInCare {
		ds = append(ds, &c.SiblingsInCare[i].Date)
	}
	return ds
}

func nullDate(d null.String) null.String {
	s := strings.TrimSpace(d.String)
	if !d.Valid || s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}
