package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProductAttributes is a tagged union of the per-type attribute sets.
// At most one member is set. On the wire it is a flat JSON object whose
// "type" property names the member.
type ProductAttributes struct {
	Book    *BookAttributes
	Pencil  *PencilAttributes
	Apparel *ApparelAttributes
}

type BookAttributes struct {
	Author          string `json:"author,omitempty" yaml:"author,omitempty"`
	PublicationDate string `json:"publicationDate,omitempty" yaml:"publicationDate,omitempty"`
	Description     string `json:"description,omitempty" yaml:"description,omitempty"`
	ISBN            string `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	Genre           string `json:"genre,omitempty" yaml:"genre,omitempty"`
	Publisher       string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
}

type PencilAttributes struct {
	Hardness       string `json:"hardness,omitempty" yaml:"hardness,omitempty"`
	Brand          string `json:"brand,omitempty" yaml:"brand,omitempty"`
	EraserIncluded bool   `json:"eraserIncluded" yaml:"eraserIncluded,omitempty"`
	Material       string `json:"material,omitempty" yaml:"material,omitempty"`
}

type ApparelAttributes struct {
	Size     string `json:"size,omitempty" yaml:"size,omitempty"`
	Color    string `json:"color,omitempty" yaml:"color,omitempty"`
	Material string `json:"material,omitempty" yaml:"material,omitempty"`
	Brand    string `json:"brand,omitempty" yaml:"brand,omitempty"`
	Gender   string `json:"gender,omitempty" yaml:"gender,omitempty"`
}

// Type returns the member's product type, or "" when no member is set.
func (a ProductAttributes) Type() ProductType {
	switch {
	case a.Book != nil:
		return ProductBook
	case a.Pencil != nil:
		return ProductPencil
	case a.Apparel != nil:
		return ProductApparel
	}
	return ""
}

// IsZero reports whether no member is set.
func (a ProductAttributes) IsZero() bool {
	return a.Type() == ""
}

func (a ProductAttributes) MarshalJSON() ([]byte, error) {
	switch {
	case a.Book != nil:
		return json.Marshal(struct {
			Type ProductType `json:"type"`
			*BookAttributes
		}{ProductBook, a.Book})
	case a.Pencil != nil:
		return json.Marshal(struct {
			Type ProductType `json:"type"`
			*PencilAttributes
		}{ProductPencil, a.Pencil})
	case a.Apparel != nil:
		return json.Marshal(struct {
			Type ProductType `json:"type"`
			*ApparelAttributes
		}{ProductApparel, a.Apparel})
	}
	return []byte("null"), nil
}

func (a *ProductAttributes) UnmarshalJSON(data []byte) error {
	*a = ProductAttributes{}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var tag struct {
		Type ProductType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("invalid product attributes: %w", err)
	}

	switch tag.Type {
	case ProductBook:
		a.Book = &BookAttributes{}
		return json.Unmarshal(data, a.Book)
	case ProductPencil:
		a.Pencil = &PencilAttributes{}
		return json.Unmarshal(data, a.Pencil)
	case ProductApparel:
		a.Apparel = &ApparelAttributes{}
		return json.Unmarshal(data, a.Apparel)
	case "":
		return fmt.Errorf("product attributes are missing the \"type\" discriminator")
	}
	return fmt.Errorf("unknown product attribute type %q", tag.Type)
}

// validProductType reports whether t is a known product type.
func validProductType(t ProductType) bool {
	switch t {
	case ProductBook, ProductPencil, ProductApparel:
		return true
	}
	return false
}
