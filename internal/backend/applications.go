// Package backend implements the repository interfaces of the submission
// controller against the loan-origination HTTP API.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"loan-origination/internal/common/errors"
	commonhttp "loan-origination/internal/common/http"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

// createResponseSchema is the contract of POST /applications.
var createResponseSchema = validation.MustCompileSchema(`{
	"type": "object",
	"required": ["id"],
	"properties": {
		"id": {
			"anyOf": [
				{"type": "string", "minLength": 1, "pattern": "\\S"},
				{"type": "integer"}
			]
		}
	}
}`)

// ApplicationPayload is the wire form of a draft. Numeric fields are sent
// as numbers; values that do not parse are left out.
type ApplicationPayload struct {
	IDCardType            string   `json:"id_card_type,omitempty"`
	IDNumber              string   `json:"id_number,omitempty"`
	FullName              string   `json:"full_name,omitempty"`
	Phone                 string   `json:"phone,omitempty"`
	DateOfBirth           string   `json:"date_of_birth,omitempty"`
	RequestedAmount       *float64 `json:"requested_amount,omitempty"`
	Term                  *int     `json:"term,omitempty"`
	ProductType           string   `json:"product_type,omitempty"`
	DisbursementDate      string   `json:"disbursement_date,omitempty"`
	Purposes              []string `json:"purposes,omitempty"`
	PurposeDetails        string   `json:"purpose_details,omitempty"`
	GuarantorName         string   `json:"guarantor_name,omitempty"`
	GuarantorPhone        string   `json:"guarantor_phone,omitempty"`
	GuarantorIDNumber     string   `json:"guarantor_id_number,omitempty"`
	GuarantorRelationship string   `json:"guarantor_relationship,omitempty"`
}

func NewApplicationPayload(d models.ApplicationDraft) ApplicationPayload {
	p := ApplicationPayload{
		IDCardType:            strings.TrimSpace(d.IDCardType),
		IDNumber:              strings.TrimSpace(d.IDNumber),
		FullName:              strings.TrimSpace(d.FullName),
		Phone:                 strings.TrimSpace(d.Phone),
		DateOfBirth:           strings.TrimSpace(d.DateOfBirth),
		ProductType:           strings.TrimSpace(d.ProductType),
		DisbursementDate:      strings.TrimSpace(d.DisbursementDate),
		Purposes:              d.Purposes,
		PurposeDetails:        d.PurposeDetails,
		GuarantorName:         strings.TrimSpace(d.GuarantorName),
		GuarantorPhone:        strings.TrimSpace(d.GuarantorPhone),
		GuarantorIDNumber:     strings.TrimSpace(d.GuarantorIDNumber),
		GuarantorRelationship: strings.TrimSpace(d.GuarantorRelationship),
	}
	if amount, err := models.ParseAmount(d.RequestedAmount); err == nil {
		p.RequestedAmount = &amount
	}
	if term, err := models.ParseTerm(d.Term); err == nil {
		p.Term = &term
	}
	return p
}

// ApplicationsRepository creates and updates applications.
type ApplicationsRepository struct {
	client   *commonhttp.Client
	endpoint string
	logger   logger.Logger
}

func NewApplicationsRepository(client *commonhttp.Client, endpoint string, log logger.Logger) *ApplicationsRepository {
	return &ApplicationsRepository{
		client:   client,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		logger:   log.WithFields(map[string]interface{}{"repository": "applications"}),
	}
}

// Create posts the draft and returns the new identifier. A 2xx response
// without a usable id is a MALFORMED_RESPONSE.
func (r *ApplicationsRepository) Create(ctx context.Context, draft models.ApplicationDraft) (string, error) {
	resp, err := r.client.DoJSON(ctx, http.MethodPost, r.endpoint, NewApplicationPayload(draft))
	if err != nil {
		return "", err
	}

	if result := createResponseSchema.ValidateBytes(resp.Raw); !result.Valid {
		r.logger.Warn("Create response violates contract", map[string]interface{}{
			"requestId":  resp.RequestID,
			"violations": result.Summary(),
		})
		return "", errors.NewMalformedResponseError(resp.StatusCode, result.Summary())
	}

	var created struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(resp.Raw, &created); err != nil {
		return "", errors.NewMalformedResponseError(resp.StatusCode, err.Error())
	}
	id, err := models.DecodeID(created.ID)
	if err != nil {
		return "", errors.NewMalformedResponseError(resp.StatusCode, err.Error())
	}

	r.logger.Info("Application created", map[string]interface{}{
		"requestId":     resp.RequestID,
		"applicationId": id,
	})
	return id, nil
}

// Update replaces the application id with draft.
func (r *ApplicationsRepository) Update(ctx context.Context, id string, draft models.ApplicationDraft) error {
	path := fmt.Sprintf("%s/%s", r.endpoint, url.PathEscape(id))
	resp, err := r.client.DoJSON(ctx, http.MethodPut, path, NewApplicationPayload(draft))
	if err != nil {
		return err
	}

	r.logger.Info("Application updated", map[string]interface{}{
		"requestId":     resp.RequestID,
		"applicationId": id,
	})
	return nil
}
