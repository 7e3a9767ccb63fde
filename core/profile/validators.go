package profile

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/acolher/core"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "{0} must be one of [" + strings.Join(core.AllRoles, ", ") + "]"

	institutionRequiredTag  = "institution_required"
	institutionRequiredText = "this field is required unless role is admin"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to the profile's name or email"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"

	commonPasswords     []string
	loadCommonPasswords sync.Once
)

// InitValidators registers the profile validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	loadCommonPasswords.Do(readCommonPasswords)

	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	validate.RegisterStructValidation(profileStructValidation, NewProfile{}, UpdateProfile{}, AcceptInvite{})
	for tag, text := range map[string]string{
		institutionRequiredTag: institutionRequiredText,
		pwdMinLenTag:           pwdMinLenText,
		pwdNoSpaceTag:          pwdNoSpaceText,
		pwdNotAllNumTag:        pwdNotAllNumText,
		pwdComplexityTag:       pwdComplexityText,
		pwdAttrSimTag:          pwdAttrSimText,
		pwdNoCommonTag:         pwdNoCommonText,
	} {
		core.RegisterCustomTranslation(validate, translator, tag, text)
	}
}

// readCommonPasswords loads the gzipped list shipped in assets/, if present.
func readCommonPasswords() {
	file, err := os.Open(filepath.Join(core.Getwd(), "assets", "common-passwords.txt.gz"))
	if err != nil {
		return
	}
	defer func() { _ = file.Close() }()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		return
	}
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			commonPasswords = append(commonPasswords, strings.ToLower(pwd))
		}
	}
	sort.Strings(commonPasswords)
}

// Custom Validators

// allRolesValidation checks that a role is one of core.AllRoles.
func allRolesValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	for _, r := range core.AllRoles {
		if role == r {
			return true
		}
	}
	return false
}

// profileStructValidation does struct level validation on NewProfile, UpdateProfile and AcceptInvite.
func profileStructValidation(sl validator.StructLevel) {
	switch p := sl.Current().Interface().(type) {
	case NewProfile:
		if p.InstitutionID == "" && p.Role != core.RoleAdmin {
			sl.ReportError(p.InstitutionID, "institution_id", "InstitutionID", institutionRequiredTag, "")
		}
		validatePassword(p.Password, sl, p.Name, p.Email)
	case UpdateProfile:
		if p.Password != "" {
			validatePassword(p.Password, sl, p.Name, p.Email)
		}
	case AcceptInvite:
		validatePassword(p.Password, sl, p.Name)
	}
}

// validatePassword applies the password policy:
// - minLen: 8
// - no whitespace
// - not all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - not similar to the profile's attributes
// - not a common password
func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	if tag := passwordPolicyViolation(pwd, attrs...); tag != "" {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}
}

// passwordPolicyViolation returns the tag of the first rule pwd breaks, or "".
func passwordPolicyViolation(pwd string, attrs ...string) string {
	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	runes := []rune(pwd)
	if len(runes) < pwdMinLen {
		return pwdMinLenTag
	}
	for _, char := range runes {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	if digitCount == len(runes) {
		return pwdNotAllNumTag
	}

	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		return pwdComplexityTag
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
		if ratio >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}

	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) && commonPasswords[idx] == lpwd {
		return pwdNoCommonTag
	}
	return ""
}
