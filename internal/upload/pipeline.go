package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"

	"loan-origination/internal/common/errors"
	commonhttp "loan-origination/internal/common/http"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/metrics"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

// Endpoints are the upload paths, relative to the client's base URL.
type Endpoints struct {
	Selfie string
	File   string
}

// Pipeline validates a file, sends it as one multipart POST and normalizes
// the outcome. It never retries and never deduplicates.
type Pipeline struct {
	client    *commonhttp.Client
	validator *Validator
	endpoints Endpoints
	logger    logger.Logger
}

func NewPipeline(client *commonhttp.Client, validator *Validator, endpoints Endpoints, log logger.Logger) *Pipeline {
	return &Pipeline{
		client:    client,
		validator: validator,
		endpoints: endpoints,
		logger:    log,
	}
}

// Upload sends target. Pre-flight rejections come back as *errors.StandardError
// without a status and never touch the network. onProgress may be nil.
func (p *Pipeline) Upload(ctx context.Context, target models.UploadTarget, onProgress ProgressFunc) (*commonhttp.Response, error) {
	kind := string(target.Kind)
	log := p.logger.WithFields(map[string]interface{}{
		"kind": kind,
		"path": target.Path,
	})

	if result := CheckTarget(target); !result.Valid {
		violation, _ := result.First()
		log.Warn("Upload target rejected", map[string]interface{}{
			"code":    violation.Code,
			"field":   violation.Field,
			"message": violation.Message,
		})
		metrics.UploadsTotal.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return nil, errors.NewValidationFailedError(result)
	}

	result, info := p.validator.Inspect(target.Path, target.Kind)
	if !result.Valid {
		violation, _ := result.First()
		log.Warn("Upload rejected before sending", map[string]interface{}{
			"code":    violation.Code,
			"message": violation.Message,
		})
		metrics.UploadsTotal.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return nil, errors.NewPreflightError(violation)
	}

	file, err := os.Open(info.Path)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return nil, errors.NewPreflightError(validation.ValidationError{
			Field:   models.FormFieldFile,
			Message: fmt.Sprintf("File %q is not readable", info.Path),
			Code:    CodeNotFound,
		})
	}
	defer file.Close()

	body, contentType, total, err := buildMultipartBody(target, info, file)
	if err != nil {
		return nil, err
	}

	progress := newProgressReader(body, total, onProgress)

	req, err := p.client.NewRequest(ctx, http.MethodPost, p.endpointFor(target.Kind), progress)
	if err != nil {
		return nil, err
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)

	started := time.Now()
	resp, err := p.client.Do(req)
	progress.settle()
	metrics.UploadDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())

	if err != nil {
		stdErr := errors.Normalize(err)
		outcome := metrics.OutcomeBackend
		if stdErr.Code == errors.ErrCodeTransportError {
			outcome = metrics.OutcomeTransport
		}
		metrics.UploadsTotal.WithLabelValues(kind, outcome).Inc()
		log.Error("Upload failed", map[string]interface{}{
			"requestId":  req.Header.Get(commonhttp.RequestIDHeader),
			"errorCode":  stdErr.Code,
			"statusCode": stdErr.StatusCode,
			"message":    stdErr.Message,
			"sentBytes":  progress.Sent(),
			"totalBytes": total,
		})
		return nil, err
	}

	metrics.UploadsTotal.WithLabelValues(kind, metrics.OutcomeSuccess).Inc()
	metrics.UploadBytesTotal.WithLabelValues(kind).Add(float64(info.Size))
	log.Info("Upload completed", map[string]interface{}{
		"requestId":   resp.RequestID,
		"statusCode":  resp.StatusCode,
		"bytes":       info.Size,
		"sentBytes":   progress.Sent(),
		"contentType": info.ContentType,
	})
	return resp, nil
}

// CheckTarget verifies that the metadata block matches the declared kind and
// that a selfie carries its application id and selfie type.
func CheckTarget(target models.UploadTarget) *validation.ValidationResult {
	result := validation.NewResult()

	switch target.Kind {
	case models.UploadKindSelfie:
		if target.Document != nil {
			result.Add("document", validation.CodeInvalidValue, "Document metadata cannot be sent with a selfie")
		}
		if target.Selfie == nil {
			result.Add("selfie", validation.CodeMissingRequired, "Selfie metadata is required")
			return result
		}
		if strings.TrimSpace(target.Selfie.ApplicationID) == "" {
			result.Add(models.FormFieldApplicationID, validation.CodeMissingRequired, "Application id is required for a selfie")
		}
		if strings.TrimSpace(target.Selfie.SelfieType) == "" {
			result.Add(models.FormFieldSelfieType, validation.CodeMissingRequired, "Selfie type is required")
		}
	case models.UploadKindDocument:
		if target.Selfie != nil {
			result.Add("selfie", validation.CodeInvalidValue, "Selfie metadata cannot be sent with a document")
		}
	default:
		result.Add("kind", validation.CodeInvalidValue, fmt.Sprintf("Unknown upload kind %q", target.Kind))
	}
	return result
}

func (p *Pipeline) endpointFor(kind models.UploadKind) string {
	if kind == models.UploadKindSelfie {
		return p.endpoints.Selfie
	}
	return p.endpoints.File
}

// FormFields flattens the metadata of target into form fields, in send
// order. Absent optional fields are left out entirely.
func FormFields(target models.UploadTarget) []Field {
	var fields []Field
	add := func(name, value string) {
		fields = append(fields, Field{Name: name, Value: value})
	}
	addOptional := func(name string, value *string) {
		if value != nil {
			add(name, *value)
		}
	}

	switch target.Kind {
	case models.UploadKindSelfie:
		if meta := target.Selfie; meta != nil {
			add(models.FormFieldApplicationID, meta.ApplicationID)
			add(models.FormFieldSelfieType, meta.SelfieType)
			addOptional(models.FormFieldCustomerIDNumber, meta.CustomerIDNumber)
			addOptional(models.FormFieldCustomerName, meta.CustomerName)
			if meta.Location != nil {
				add(models.FormFieldLatitude, strconv.FormatFloat(meta.Location.Latitude, 'f', -1, 64))
				add(models.FormFieldLongitude, strconv.FormatFloat(meta.Location.Longitude, 'f', -1, 64))
			}
			addOptional(models.FormFieldNotes, meta.Notes)
		}
	case models.UploadKindDocument:
		if meta := target.Document; meta != nil {
			addOptional(models.FormFieldApplicationID, meta.ApplicationID)
			addOptional(models.FormFieldFolderID, meta.FolderID)
			addOptional(models.FormFieldDocumentType, meta.DocumentType)
		}
	}
	return fields
}

// Field is one scalar multipart field.
type Field struct {
	Name  string
	Value string
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildMultipartBody streams the form fields, then the file part, without
// buffering the file. The returned total is the exact body length.
func buildMultipartBody(target models.UploadTarget, info *FileInfo, file io.Reader) (io.Reader, string, int64, error) {
	var head bytes.Buffer
	mw := multipart.NewWriter(&head)

	for _, f := range FormFields(target) {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return nil, "", 0, fmt.Errorf("failed to write form field %s: %w", f.Name, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		models.FormFieldFile, quoteEscaper.Replace(info.Name)))
	h.Set("Content-Type", info.ContentType)
	if _, err := mw.CreatePart(h); err != nil {
		return nil, "", 0, fmt.Errorf("failed to write file part header: %w", err)
	}

	// Matches what multipart.Writer.Close emits after a part.
	tail := fmt.Sprintf("\r\n--%s--\r\n", mw.Boundary())

	total := int64(head.Len()) + info.Size + int64(len(tail))
	body := io.MultiReader(&head, io.LimitReader(file, info.Size), strings.NewReader(tail))
	return body, mw.FormDataContentType(), total, nil
}
