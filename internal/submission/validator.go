package submission

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

var idNumberRegex = regexp.MustCompile(`^[A-Za-z0-9]{6,20}$`)

// stepRules names the required fields of a step and the fields whose format
// is checked when they are filled in.
type stepRules struct {
	required []string
	checked  []string
}

var (
	customerRules = stepRules{
		required: []string{
			models.FieldIDCardType,
			models.FieldIDNumber,
			models.FieldFullName,
			models.FieldPhone,
			models.FieldDateOfBirth,
		},
		checked: []string{
			models.FieldIDCardType,
			models.FieldIDNumber,
			models.FieldPhone,
			models.FieldDateOfBirth,
			models.FieldRequestedAmount,
			models.FieldTerm,
			models.FieldProductType,
		},
	}

	loanRules = stepRules{
		required: []string{
			models.FieldProductType,
			models.FieldRequestedAmount,
			models.FieldTerm,
		},
		checked: []string{
			models.FieldProductType,
			models.FieldRequestedAmount,
			models.FieldTerm,
			models.FieldDisbursementDate,
			models.FieldPurposes,
		},
	}

	guarantorRules = stepRules{
		required: []string{
			models.FieldGuarantorName,
			models.FieldGuarantorPhone,
		},
		checked: []string{
			models.FieldGuarantorPhone,
			models.FieldGuarantorIDNumber,
		},
	}
)

func rulesFor(step Step) (stepRules, bool) {
	switch step {
	case StepCustomerInformation:
		return customerRules, true
	case StepLoanInformation:
		return loanRules, true
	case StepGuarantor:
		return guarantorRules, true
	case StepReview:
		return mergeRules(customerRules, loanRules, guarantorRules), true
	default:
		return stepRules{}, false
	}
}

func mergeRules(all ...stepRules) stepRules {
	var out stepRules
	seenRequired := map[string]bool{}
	seenChecked := map[string]bool{}
	for _, r := range all {
		for _, f := range r.required {
			if !seenRequired[f] {
				seenRequired[f] = true
				out.required = append(out.required, f)
			}
		}
		for _, f := range r.checked {
			if !seenChecked[f] {
				seenChecked[f] = true
				out.checked = append(out.checked, f)
			}
		}
	}
	return out
}

// Validator checks one form step. It is pure apart from reading the clock.
type Validator struct {
	phoneRegion string
	now         func() time.Time
}

// NewValidator creates a validator; phoneRegion is the ISO region used for
// numbers written without a country code.
func NewValidator(phoneRegion string) *Validator {
	return &Validator{
		phoneRegion: strings.ToUpper(phoneRegion),
		now:         time.Now,
	}
}

// ValidateStep collects every violation of step in draft. Enum membership is
// checked against refs; a nil refs skips those checks.
func (v *Validator) ValidateStep(step Step, draft models.ApplicationDraft, refs *models.ReferenceData) *validation.ValidationResult {
	result := validation.NewResult()

	rules, ok := rulesFor(step)
	if !ok {
		result.Add("step", validation.CodeInvalidValue, fmt.Sprintf("Unknown step %q", step))
		return result
	}

	missing := map[string]bool{}
	for _, field := range rules.required {
		if isBlank(&draft, field) {
			missing[field] = true
			result.Add(field, validation.CodeMissingRequired, fmt.Sprintf("%s is required", fieldLabel(field)))
		}
	}

	for _, field := range rules.checked {
		if missing[field] || isBlank(&draft, field) {
			continue
		}
		v.checkField(result, &draft, field, refs)
	}

	return result
}

func (v *Validator) checkField(result *validation.ValidationResult, d *models.ApplicationDraft, field string, refs *models.ReferenceData) {
	switch field {
	case models.FieldIDCardType:
		if refs != nil && !refs.HasIDCardType(strings.TrimSpace(d.IDCardType)) {
			result.Add(field, validation.CodeInvalidEnumValue, fmt.Sprintf("Unknown id card type %q", d.IDCardType))
		}
	case models.FieldProductType:
		if refs != nil && !refs.HasProductType(strings.TrimSpace(d.ProductType)) {
			result.Add(field, validation.CodeInvalidEnumValue, fmt.Sprintf("Unknown product type %q", d.ProductType))
		}
	case models.FieldIDNumber:
		checkIDNumber(result, field, d.IDNumber)
	case models.FieldGuarantorIDNumber:
		checkIDNumber(result, field, d.GuarantorIDNumber)
	case models.FieldPhone:
		v.checkPhone(result, field, d.Phone)
	case models.FieldGuarantorPhone:
		v.checkPhone(result, field, d.GuarantorPhone)
	case models.FieldDateOfBirth:
		dob, ok := checkDate(result, field, d.DateOfBirth)
		if ok && !dob.Before(v.today()) {
			result.Add(field, validation.CodeInvalidValue, "Date of birth must be in the past")
		}
	case models.FieldDisbursementDate:
		checkDate(result, field, d.DisbursementDate)
	case models.FieldRequestedAmount:
		amount, err := models.ParseAmount(d.RequestedAmount)
		if err != nil {
			result.Add(field, validation.CodeInvalidFormat, "Requested amount must be a number")
		} else if amount <= 0 {
			result.Add(field, validation.CodeInvalidValue, "Requested amount must be positive")
		}
	case models.FieldTerm:
		term, err := models.ParseTerm(d.Term)
		if err != nil {
			result.Add(field, validation.CodeInvalidFormat, "Term must be a whole number of months")
		} else if term <= 0 {
			result.Add(field, validation.CodeInvalidValue, "Term must be positive")
		}
	case models.FieldPurposes:
		for i, p := range d.Purposes {
			if strings.TrimSpace(p) == "" {
				result.Add(fmt.Sprintf("%s[%d]", field, i), validation.CodeInvalidValue, "Loan purpose must not be empty")
			}
		}
	}
}

func (v *Validator) checkPhone(result *validation.ValidationResult, field, phone string) {
	num, err := phonenumbers.Parse(strings.TrimSpace(phone), v.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		result.Add(field, validation.CodeInvalidFormat, "Invalid phone number format")
	}
}

func (v *Validator) today() time.Time {
	now := v.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func checkIDNumber(result *validation.ValidationResult, field, value string) {
	if !idNumberRegex.MatchString(strings.TrimSpace(value)) {
		result.Add(field, validation.CodeInvalidFormat, "ID number must be 6-20 letters or digits")
	}
}

func checkDate(result *validation.ValidationResult, field, value string) (time.Time, bool) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(value))
	if err != nil {
		result.Add(field, validation.CodeInvalidFormat, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", fieldLabel(field)))
		return time.Time{}, false
	}
	return t, true
}

func isBlank(d *models.ApplicationDraft, field string) bool {
	if field == models.FieldPurposes {
		return len(d.Purposes) == 0
	}
	return strings.TrimSpace(fieldValue(d, field)) == ""
}

func fieldValue(d *models.ApplicationDraft, field string) string {
	switch field {
	case models.FieldIDCardType:
		return d.IDCardType
	case models.FieldIDNumber:
		return d.IDNumber
	case models.FieldFullName:
		return d.FullName
	case models.FieldPhone:
		return d.Phone
	case models.FieldDateOfBirth:
		return d.DateOfBirth
	case models.FieldRequestedAmount:
		return d.RequestedAmount
	case models.FieldTerm:
		return d.Term
	case models.FieldProductType:
		return d.ProductType
	case models.FieldDisbursementDate:
		return d.DisbursementDate
	case models.FieldPurposeDetails:
		return d.PurposeDetails
	case models.FieldGuarantorName:
		return d.GuarantorName
	case models.FieldGuarantorPhone:
		return d.GuarantorPhone
	case models.FieldGuarantorIDNumber:
		return d.GuarantorIDNumber
	case models.FieldGuarantorRelationship:
		return d.GuarantorRelationship
	default:
		return ""
	}
}

var fieldLabels = map[string]string{
	models.FieldIDCardType:       "ID card type",
	models.FieldIDNumber:         "ID number",
	models.FieldFullName:         "Full name",
	models.FieldPhone:            "Phone",
	models.FieldDateOfBirth:      "Date of birth",
	models.FieldRequestedAmount:  "Requested amount",
	models.FieldTerm:             "Term",
	models.FieldProductType:      "Product type",
	models.FieldDisbursementDate: "Disbursement date",
	models.FieldGuarantorName:    "Guarantor name",
	models.FieldGuarantorPhone:   "Guarantor phone",
}

func fieldLabel(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return field
}
