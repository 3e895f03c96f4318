package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"loan-origination/internal/common/errors"
	commonhttp "loan-origination/internal/common/http"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

// referenceListSchema is the contract of the enum endpoints.
var referenceListSchema = validation.MustCompileSchema(`{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "name"],
		"properties": {
			"id": {"type": ["string", "integer"]},
			"name": {"type": "string"}
		}
	}
}`)

// EnumsRepository fetches the reference vocabularies.
type EnumsRepository struct {
	client          *commonhttp.Client
	idCardTypesPath string
	productPath     string
	logger          logger.Logger
}

func NewEnumsRepository(client *commonhttp.Client, idCardTypesPath, productTypesPath string, log logger.Logger) *EnumsRepository {
	return &EnumsRepository{
		client:          client,
		idCardTypesPath: idCardTypesPath,
		productPath:     productTypesPath,
		logger:          log.WithFields(map[string]interface{}{"repository": "enums"}),
	}
}

func (r *EnumsRepository) FetchIDCardTypes(ctx context.Context) ([]models.ReferenceOption, error) {
	return r.fetch(ctx, r.idCardTypesPath)
}

func (r *EnumsRepository) FetchProductTypes(ctx context.Context) ([]models.ReferenceOption, error) {
	return r.fetch(ctx, r.productPath)
}

func (r *EnumsRepository) fetch(ctx context.Context, path string) ([]models.ReferenceOption, error) {
	resp, err := r.client.DoJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	if result := referenceListSchema.ValidateBytes(resp.Raw); !result.Valid {
		return nil, errors.NewMalformedResponseError(resp.StatusCode, result.Summary())
	}

	var options []models.ReferenceOption
	if err := json.Unmarshal(resp.Raw, &options); err != nil {
		return nil, errors.NewMalformedResponseError(resp.StatusCode, err.Error())
	}

	r.logger.Debug("Reference data fetched", map[string]interface{}{
		"path":      path,
		"count":     len(options),
		"requestId": resp.RequestID,
	})
	return options, nil
}
