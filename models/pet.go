package models

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
)

// Source kennzeichnet das Upstream-System, aus dem ein Datensatz stammt.
type Source string

const (
	SourceShelterluv Source = "shelterluv"
	SourceAirtable   Source = "airtable"
)

// Sources listet alle bekannten Quellen in Sync-Reihenfolge.
var Sources = []Source{SourceShelterluv, SourceAirtable}

// Valid meldet, ob s eine der bekannten Quellen ist.
func (s Source) Valid() bool {
	return s == SourceShelterluv || s == SourceAirtable
}

// IDPrefix liefert das Präfix, mit dem die Upstream-ID zur globalen ID wird.
func (s Source) IDPrefix() string {
	switch s {
	case SourceShelterluv:
		return "SL"
	case SourceAirtable:
		return "AT"
	default:
		return ""
	}
}

// Altersstufen
const (
	AgeBaby   = "Baby"
	AgeYoung  = "Young"
	AgeAdult  = "Adult"
	AgeSenior = "Senior"
)

// Größenstufen
const (
	SizeSmall      = "Small"
	SizeMedium     = "Medium"
	SizeLarge      = "Large"
	SizeExtraLarge = "Extra-Large"
)

// Standorte
const (
	LocationDPA     = "DPA"
	LocationHSDC    = "HSDC"
	LocationNewDigs = "New Digs"
)

// Pet ist der vereinheitlichte Datensatz, in den alle Quellen normalisiert werden.
// Nullable Felder sind Pointer, damit sie als null persistiert werden.
type Pet struct {
	ID         string `json:"id" dynamodbav:"id" gorm:"primaryKey"`
	InternalID string `json:"internalId" dynamodbav:"internalId" gorm:"column:internal_id"`

	Name        string  `json:"name" dynamodbav:"name"`
	Species     string  `json:"species" dynamodbav:"species" gorm:"index"`
	Sex         string  `json:"sex" dynamodbav:"sex"`
	Age         string  `json:"age" dynamodbav:"age"`
	AgeMonths   *int    `json:"ageMonths,omitempty" dynamodbav:"ageMonths,omitempty" gorm:"column:age_months"`
	Breed       *string `json:"breed" dynamodbav:"breed"`
	Color       *string `json:"color" dynamodbav:"color"`
	Description *string `json:"description" dynamodbav:"description" gorm:"type:text"`
	Size        *string `json:"size" dynamodbav:"size"`

	CoverPhoto string   `json:"coverPhoto" dynamodbav:"coverPhoto" gorm:"column:cover_photo"`
	Photos     []string `json:"photos" dynamodbav:"photos" gorm:"serializer:json;type:text"`
	Video      *string  `json:"video" dynamodbav:"video"`

	Status    string `json:"status" dynamodbav:"status"`
	Source    Source `json:"source" dynamodbav:"source" gorm:"index;not null"`
	AdoptLink string `json:"adoptLink" dynamodbav:"adoptLink" gorm:"column:adopt_link"`
	Location  string `json:"location" dynamodbav:"location"`

	SchemaVersion SchemaVersion `json:"schemaVersion" dynamodbav:"schemaVersion" gorm:"column:schema_version"`
	ContentHash   string        `json:"contentHash,omitempty" dynamodbav:"contentHash,omitempty" gorm:"column:content_hash"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Pet) TableName() string {
	return "pets"
}

// Hash berechnet einen stabilen Inhalts-Hash über alle Felder außer ContentHash.
func (p Pet) Hash() string {
	p.ContentHash = ""
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// StringPtr ist ein Helfer für nullable Felder.
func StringPtr(s string) *string {
	return &s
}

// Deref liefert den Wert hinter p oder "" bei nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
