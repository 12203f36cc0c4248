// Package airtable enthält die Logik für die Interaktion mit der Airtable-API (New Digs).
package airtable

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"pet-sync/providers"
)

// PublishedStatus ist der einzige Status, der auf der Website erscheint.
const PublishedStatus = "Published - Available for Adoption"

// Feldnamen in der Airtable-Tabelle
const (
	fieldStatus      = "Status"
	fieldPetID       = "Pet ID - do not edit"
	fieldName        = "Pet Name"
	fieldSpecies     = "Pet Species"
	fieldSex         = "Sex"
	fieldAge         = "Pet Age"
	fieldSize        = "Pet Size"
	fieldBreedDog    = "Breed - Dog"
	fieldColorDog    = "Color - Dog"
	fieldBreedCat    = "Breed - Cat"
	fieldColorCat    = "Color - Cat"
	fieldBreedOther  = "Breed - Other Species"
	fieldColorOther  = "Color - Other Species"
	fieldPictures    = "Pictures"
	fieldPictureMap  = "PictureMap-DoNotModify"
	fieldDescription = "Public Description"
	fieldThumbnail   = "ThumbnailURL"
	fieldVideo       = "Youtube Video"
)

// ListResponse ist die Antwort von GET /{base}/{table}.
type ListResponse struct {
	Records []json.RawMessage `json:"records"`
	Offset  string            `json:"offset"`
}

// Record ist ein einzelner Airtable-Datensatz mit seinem Feld-Beutel.
type Record struct {
	ID          string   `json:"id"`
	CreatedTime string   `json:"createdTime"`
	Fields      fieldBag `json:"fields"`
}

// Attachment ist ein Anhang im Feld "Pictures".
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// fieldBag hält die Felder roh, da Airtable leere Felder weglässt und Typen je Spalte variieren.
type fieldBag map[string]json.RawMessage

func (b fieldBag) has(name string) bool {
	raw, ok := b[name]
	return ok && string(bytes.TrimSpace(raw)) != "null"
}

// str liefert ein Textfeld; fehlend oder null ergibt "".
func (b fieldBag) str(name string) (string, error) {
	if !b.has(name) {
		return "", nil
	}
	var s providers.FlexString
	if err := json.Unmarshal(b[name], &s); err != nil {
		return "", fmt.Errorf("field %q: %w", name, err)
	}
	return string(s), nil
}

// literal liefert ein Feld nur, wenn es ein JSON-String ist; alles andere ergibt "".
func (b fieldBag) literal(name string) string {
	var s string
	if err := json.Unmarshal(b[name], &s); err != nil {
		return ""
	}
	return s
}

// required wie str, aber fehlende Felder sind ein Fehler.
func (b fieldBag) required(name string) (string, error) {
	if !b.has(name) {
		return "", fmt.Errorf("missing field %q", name)
	}
	return b.str(name)
}

// optional liefert nil für fehlende oder leere Felder.
func (b fieldBag) optional(name string) (*string, error) {
	s, err := b.str(name)
	if err != nil {
		return nil, err
	}
	return providers.NonEmpty(s), nil
}
