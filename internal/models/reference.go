package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ReferenceOption is one entry of a server-provided controlled vocabulary.
type ReferenceOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts both numeric and string ids.
func (o *ReferenceOption) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := DecodeID(raw.ID)
	if err != nil {
		return fmt.Errorf("reference option id: %w", err)
	}
	o.ID = id
	o.Name = raw.Name
	return nil
}

// DecodeID reads a server identifier that may be a JSON string or number.
// A missing or null id decodes to "".
func DecodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return "", nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}

// ReferenceData is one consistent snapshot of both vocabularies. It is never
// mutated after construction; refreshing builds a new value.
type ReferenceData struct {
	IDCardTypes  []ReferenceOption `json:"idCardTypes"`
	ProductTypes []ReferenceOption `json:"productTypes"`
	FetchedAt    time.Time         `json:"fetchedAt"`
}

// NewReferenceData copies both lists so callers cannot alias the snapshot.
func NewReferenceData(idCardTypes, productTypes []ReferenceOption, fetchedAt time.Time) *ReferenceData {
	return &ReferenceData{
		IDCardTypes:  append([]ReferenceOption(nil), idCardTypes...),
		ProductTypes: append([]ReferenceOption(nil), productTypes...),
		FetchedAt:    fetchedAt,
	}
}

// HasIDCardType reports whether id is a known id-card type.
func (r *ReferenceData) HasIDCardType(id string) bool {
	if r == nil {
		return false
	}
	return containsOption(r.IDCardTypes, id)
}

// HasProductType reports whether id is a known product type.
func (r *ReferenceData) HasProductType(id string) bool {
	if r == nil {
		return false
	}
	return containsOption(r.ProductTypes, id)
}

// Clone returns a deep copy.
func (r *ReferenceData) Clone() *ReferenceData {
	if r == nil {
		return nil
	}
	return NewReferenceData(r.IDCardTypes, r.ProductTypes, r.FetchedAt)
}

func containsOption(options []ReferenceOption, id string) bool {
	for _, o := range options {
		if o.ID == id {
			return true
		}
	}
	return false
}
