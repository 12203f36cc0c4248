// Package shelterluv enthält die Logik für die Interaktion mit der Shelterluv-API.
package shelterluv

import (
	"bytes"

	"github.com/goccy/go-json"

	"pet-sync/providers"
)

// AnimalsResponse ist die Top-Level-Struktur der /animals-Antwort.
type AnimalsResponse struct {
	Success    providers.FlexInt  `json:"success"`
	TotalCount providers.FlexInt  `json:"total_count"`
	HasMore    providers.FlexBool `json:"has_more"`
	Animals    []json.RawMessage  `json:"animals"`
}

// Animal repräsentiert ein einzelnes Tier in der API-Antwort.
// Pflichtfelder sind Pointer, damit fehlende Werte erkannt werden.
type Animal struct {
	ID              providers.FlexString `json:"ID"`
	Name            string               `json:"Name"`
	Type            *string              `json:"Type"`
	Sex             string               `json:"Sex"`
	Age             *providers.FlexInt   `json:"Age"`
	Breed           *string              `json:"Breed"`
	Color           *string              `json:"Color"`
	Description     *string              `json:"Description"`
	Size            *string              `json:"Size"`
	CoverPhoto      string               `json:"CoverPhoto"`
	Photos          []string             `json:"Photos"`
	Videos          []Video              `json:"Videos"`
	Status          *string              `json:"Status"`
	CurrentLocation json.RawMessage      `json:"CurrentLocation"`
	InFoster        providers.FlexBool   `json:"InFoster"`
}

// Video ist ein bei Shelterluv gehostetes Video.
type Video struct {
	YoutubeURL *string `json:"YoutubeUrl"`
}

// animalKey wird nur zum De-duplizieren gelesen.
type animalKey struct {
	ID providers.FlexString `json:"ID"`
}

// isSet bildet die Wahrheitswert-Semantik eines optionalen JSON-Werts nach.
func isSet(raw json.RawMessage) bool {
	v := string(bytes.TrimSpace(raw))
	switch v {
	case "", "null", "{}", "[]", `""`, "false", "0":
		return false
	}
	return true
}
