package casefile

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
)

// Group names a set-valued checkbox field of Content.
type Group string

const (
	GroupAdmissionReasons Group = "admission_reason_types"
	GroupDisabilities     Group = "disabilities"
	GroupDrugsUsed        Group = "drugs_used"
	GroupVisitsReceived   Group = "visits_received"
	GroupVisitSources     Group = "visit_sources"
)

// Sentinels: selecting one clears every other value of its group, and vice versa.
const (
	NoDisability  = "Nenhuma"
	NoDrugUse     = "Não faz uso"
	NoVisitsOccur = "Não ocorrem"
)

var (
	sentinels = map[Group]string{
		GroupDisabilities:   NoDisability,
		GroupDrugsUsed:      NoDrugUse,
		GroupVisitsReceived: NoVisitsOccur,
	}

	errUnknownGroup = errors.New("unknown checkbox group")
)

// Sentinel returns the mutually exclusive value of a group, if it has one.
func (g Group) Sentinel() (string, bool) {
	s, ok := sentinels[g]
	return s, ok
}

// field returns a pointer to the slice backing group g.
func (c *Content) field(g Group) (*[]string, error) {
	switch g {
	case GroupAdmissionReasons:
		return &c.AdmissionReasonTypes, nil
	case GroupDisabilities:
		return &c.Disabilities, nil
	case GroupDrugsUsed:
		return &c.DrugsUsed, nil
	case GroupVisitsReceived:
		return &c.VisitsReceived, nil
	case GroupVisitSources:
		return &c.VisitSources, nil
	}
	return nil, errors.Wrap(errUnknownGroup, string(g))
}

// Toggle checks or unchecks value within group g.
func (c *Content) Toggle(g Group, value string, checked bool) error {
	fld, err := c.field(g)
	if err != nil {
		return err
	}
	sentinel, _ := g.Sentinel()
	*fld = ToggleValue(*fld, value, checked, sentinel)
	return nil
}

// ToggleValue adds (checked) or removes value from set, never producing duplicates.
// When sentinel is not empty it is kept mutually exclusive with every other member.
func ToggleValue(set []string, value string, checked bool, sentinel string) []string {
	out := make([]string, 0, len(set)+1)
	if !checked {
		for _, v := range set {
			if v != value {
				out = append(out, v)
			}
		}
		return out
	}

	if sentinel != "" && value == sentinel {
		return append(out, sentinel)
	}
	var found bool
	for _, v := range set {
		if sentinel != "" && v == sentinel {
			continue
		}
		if v == value {
			if found {
				continue
			}
			found = true
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, value)
	}
	return out
}

// normalizeGroups de-duplicates every group and reports sentinel conflicts.
func (c *Content) normalizeGroups() error {
	var fldErrs []core.FieldError
	for _, g := range []Group{GroupAdmissionReasons, GroupDisabilities, GroupDrugsUsed, GroupVisitsReceived, GroupVisitSources} {
		fld, _ := c.field(g)
		*fld = dedupe(*fld)

		if sentinel, ok := g.Sentinel(); ok && len(*fld) > 1 {
			for _, v := range *fld {
				if v == sentinel {
					fldErrs = append(fldErrs, core.FieldError{
						Field: string(g),
						Error: fmt.Sprintf("%q cannot be combined with other values", sentinel),
					})
					break
				}
			}
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

func dedupe(set []string) []string {
	out := make([]string, 0, len(set))
	seen := make(map[string]struct{}, len(set))
	for _, v := range core.CleanStrings(set) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
