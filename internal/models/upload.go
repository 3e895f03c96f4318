package models

// UploadKind is the declared purpose of a file.
type UploadKind string

const (
	UploadKindSelfie   UploadKind = "selfie"
	UploadKindDocument UploadKind = "document"
)

func (k UploadKind) Valid() bool {
	return k == UploadKindSelfie || k == UploadKindDocument
}

// UploadTarget describes one file to send. Exactly one of Selfie and
// Document is expected, matching Kind. Pointer fields are optional: nil is
// "not provided" and is never sent, a non-nil empty string is sent as empty.
type UploadTarget struct {
	Path     string
	Kind     UploadKind
	Selfie   *SelfieMetadata
	Document *DocumentMetadata
}

type SelfieMetadata struct {
	ApplicationID    string
	SelfieType       string
	CustomerIDNumber *string
	CustomerName     *string
	Location         *GeoLocation
	Notes            *string
}

type GeoLocation struct {
	Latitude  float64
	Longitude float64
}

type DocumentMetadata struct {
	ApplicationID *string
	FolderID      *string
	DocumentType  *string
}

// Multipart field names understood by the upload endpoints.
const (
	FormFieldFile             = "file"
	FormFieldApplicationID    = "application_id"
	FormFieldSelfieType       = "selfie_type"
	FormFieldCustomerIDNumber = "customer_id_number"
	FormFieldCustomerName     = "customer_name"
	FormFieldLatitude         = "latitude"
	FormFieldLongitude        = "longitude"
	FormFieldNotes            = "notes"
	FormFieldFolderID         = "folder_id"
	FormFieldDocumentType     = "document_type"
)

// StringPtr is a helper for filling optional metadata.
func StringPtr(s string) *string {
	return &s
}
