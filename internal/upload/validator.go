package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"loan-origination/internal/common/config"
	"loan-origination/internal/common/errors"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

const mebibyte = 1024 * 1024

// OctetStream is the resolved type of any unrecognised extension.
const OctetStream = "application/octet-stream"

// Violation codes reported by the file checks. They double as error codes.
const (
	CodeNotFound        = string(errors.ErrCodeNotFound)
	CodeTooLarge        = string(errors.ErrCodeTooLarge)
	CodeUnsupportedType = string(errors.ErrCodeUnsupportedType)
	CodeNotAnImage      = string(errors.ErrCodeNotAnImage)
)

// contentTypes maps lower-case extensions to content types. The table is
// fixed so resolution does not depend on the host's mime database.
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jpe":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
	".csv":  "text/csv",
}

// ResolveContentType returns the content type for a file name. It is total:
// unknown or missing extensions give OctetStream.
func ResolveContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return OctetStream
}

// Limits are the pre-flight ceilings and the allow-list.
type Limits struct {
	MaxImageBytes    int64
	MaxDocumentBytes int64
	AllowedTypes     []string
}

// LimitsFromConfig copies the upload section of the configuration.
func LimitsFromConfig(cfg config.UploadConfig) Limits {
	return Limits{
		MaxImageBytes:    cfg.MaxImageBytes,
		MaxDocumentBytes: cfg.MaxDocumentBytes,
		AllowedTypes:     append([]string(nil), cfg.AllowedTypes...),
	}
}

// FileInfo is what a successful check learned about the file.
type FileInfo struct {
	Path        string
	Name        string
	Size        int64
	ContentType string
}

// Validator runs the pre-flight checks. It only stats and opens files.
type Validator struct {
	limits  Limits
	allowed map[string]struct{}
}

func NewValidator(limits Limits) *Validator {
	allowed := make(map[string]struct{}, len(limits.AllowedTypes))
	for _, t := range limits.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &Validator{limits: limits, allowed: allowed}
}

// Validate checks path for kind. Checks run in order and stop at the first
// failure: existence, size, allow-list, then the selfie image rule.
func (v *Validator) Validate(path string, kind models.UploadKind) *validation.ValidationResult {
	result, _ := v.Inspect(path, kind)
	return result
}

// Inspect is Validate plus the file facts needed to build the request. The
// FileInfo is nil when the result is invalid.
func (v *Validator) Inspect(path string, kind models.UploadKind) (*validation.ValidationResult, *FileInfo) {
	result := validation.NewResult()

	stat, err := os.Stat(path)
	if err != nil || !stat.Mode().IsRegular() {
		result.Add(models.FormFieldFile, CodeNotFound, fmt.Sprintf("File %q does not exist or is not a regular file", path))
		return result, nil
	}
	f, err := os.Open(path)
	if err != nil {
		result.Add(models.FormFieldFile, CodeNotFound, fmt.Sprintf("File %q is not readable", path))
		return result, nil
	}
	f.Close()

	contentType := ResolveContentType(path)

	limit := v.limitFor(kind, contentType)
	if stat.Size() > limit {
		result.Add(models.FormFieldFile, CodeTooLarge, fmt.Sprintf("File exceeds the %s MiB limit", formatMiB(limit)))
		return result, nil
	}

	if _, ok := v.allowed[contentType]; !ok {
		result.Add(models.FormFieldFile, CodeUnsupportedType, fmt.Sprintf("File type %s is not allowed", contentType))
		return result, nil
	}

	if kind == models.UploadKindSelfie && !isImage(contentType) {
		result.Add(models.FormFieldFile, CodeNotAnImage, fmt.Sprintf("Selfie must be an image, got %s", contentType))
		return result, nil
	}

	return result, &FileInfo{
		Path:        path,
		Name:        filepath.Base(path),
		Size:        stat.Size(),
		ContentType: contentType,
	}
}

func (v *Validator) limitFor(kind models.UploadKind, contentType string) int64 {
	if kind == models.UploadKindSelfie || isImage(contentType) {
		return v.limits.MaxImageBytes
	}
	return v.limits.MaxDocumentBytes
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

func formatMiB(bytes int64) string {
	return strconv.FormatFloat(float64(bytes)/mebibyte, 'f', -1, 64)
}
