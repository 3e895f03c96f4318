// internal/models/application.go
package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ApplicationDraft is the loan application being edited by an officer.
// Values are kept as entered in the form; numeric fields are parsed on
// validation and on the wire. The server identifier is not part of the draft,
// the submission controller tracks it.
type ApplicationDraft struct {
	CustomerInfo
	LoanInfo
	GuarantorInfo
}

type CustomerInfo struct {
	IDCardType  string `json:"id_card_type,omitempty"`
	IDNumber    string `json:"id_number,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
}

type LoanInfo struct {
	RequestedAmount  string   `json:"requested_amount,omitempty"`
	Term             string   `json:"term,omitempty"` // months
	ProductType      string   `json:"product_type,omitempty"`
	DisbursementDate string   `json:"disbursement_date,omitempty"` // YYYY-MM-DD
	Purposes         []string `json:"purposes,omitempty"`
	PurposeDetails   string   `json:"purpose_details,omitempty"`
}

type GuarantorInfo struct {
	GuarantorName         string `json:"guarantor_name,omitempty"`
	GuarantorPhone        string `json:"guarantor_phone,omitempty"`
	GuarantorIDNumber     string `json:"guarantor_id_number,omitempty"`
	GuarantorRelationship string `json:"guarantor_relationship,omitempty"`
}

// Form field names, used in violations and in the wire payload.
const (
	FieldIDCardType            = "id_card_type"
	FieldIDNumber              = "id_number"
	FieldFullName              = "full_name"
	FieldPhone                 = "phone"
	FieldDateOfBirth           = "date_of_birth"
	FieldRequestedAmount       = "requested_amount"
	FieldTerm                  = "term"
	FieldProductType           = "product_type"
	FieldDisbursementDate      = "disbursement_date"
	FieldPurposes              = "purposes"
	FieldPurposeDetails        = "purpose_details"
	FieldGuarantorName         = "guarantor_name"
	FieldGuarantorPhone        = "guarantor_phone"
	FieldGuarantorIDNumber     = "guarantor_id_number"
	FieldGuarantorRelationship = "guarantor_relationship"
)

// DateLayout is the only accepted date format in drafts.
const DateLayout = "2006-01-02"

// ParseAmount parses a requested amount as entered in the form. Thousands
// separators (",", "_", spaces) are ignored.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.NewReplacer(",", "", "_", "", " ", "").Replace(strings.TrimSpace(s))
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("amount %q is not finite", s)
	}
	return f, nil
}

// ParseTerm parses a loan term in months.
func ParseTerm(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
