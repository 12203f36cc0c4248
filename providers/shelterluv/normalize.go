package shelterluv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"pet-sync/models"
	"pet-sync/providers"
)

// Options steuern die Abbildung auf das Pet-Modell.
type Options struct {
	AdoptURL      string
	SchemaVersion models.SchemaVersion
}

// NormalizeAnimal wandelt ein Shelterluv-Tier in unser Pet-Modell um.
// Die Funktion ist rein; Fehler betreffen nur diesen einen Datensatz.
func NormalizeAnimal(id string, raw json.RawMessage, opts Options) (models.Pet, error) {
	var animal Animal
	if err := json.Unmarshal(raw, &animal); err != nil {
		return models.Pet{}, err
	}
	switch {
	case animal.Type == nil:
		return models.Pet{}, errors.New("missing Type")
	case animal.Age == nil:
		return models.Pet{}, errors.New("missing Age")
	case animal.Size == nil:
		return models.Pet{}, errors.New("missing Size")
	case animal.Status == nil:
		return models.Pet{}, errors.New("missing Status")
	}
	if id == "" {
		id = string(animal.ID)
	}
	if id == "" {
		return models.Pet{}, errors.New("missing ID")
	}

	species := strings.ToLower(*animal.Type)
	if species == "rabbit, domestic" {
		species = "rabbit"
	}

	breed := animal.Breed
	if species == "pig" {
		breed = models.StringPtr("Pig")
	}

	location := models.LocationDPA
	if isSet(animal.CurrentLocation) && !bool(animal.InFoster) {
		location = models.LocationHSDC
	}

	var video *string
	if len(animal.Videos) > 0 && animal.Videos[0].YoutubeURL != nil {
		video = providers.NonEmpty(*animal.Videos[0].YoutubeURL)
	}

	months := int(*animal.Age)
	pet := models.Pet{
		ID:            models.SourceShelterluv.IDPrefix() + id,
		InternalID:    id,
		Name:          providers.CleanText(animal.Name),
		Species:       species,
		Sex:           animal.Sex,
		Age:           providers.AgeBucket(months),
		Breed:         breed,
		Color:         animal.Color,
		Description:   providers.CleanDescription(animal.Description),
		Size:          providers.SizeBucket(*animal.Size),
		CoverPhoto:    animal.CoverPhoto,
		Photos:        animal.Photos,
		Video:         video,
		Status:        strings.ToLower(*animal.Status),
		Source:        models.SourceShelterluv,
		AdoptLink:     opts.AdoptURL + id,
		Location:      location,
		SchemaVersion: opts.SchemaVersion,
	}
	if pet.Photos == nil {
		pet.Photos = []string{}
	}
	if opts.SchemaVersion.StoresAgeMonths() {
		pet.AgeMonths = &months
	}
	return pet, nil
}

// normalizeAll normalisiert alle Tiere; fehlerhafte Datensätze werden gesammelt und übersprungen.
func normalizeAll(animals map[string]json.RawMessage, opts Options) *providers.Listing {
	listing := providers.NewListing()
	for id, raw := range animals {
		pet, err := NormalizeAnimal(id, raw, opts)
		if err != nil {
			listing.RecordErrors = append(listing.RecordErrors, &providers.RecordParseError{
				Source:   models.SourceShelterluv,
				RecordID: id,
				Payload:  raw,
				Err:      fmt.Errorf("normalize: %w", err),
			})
			continue
		}
		listing.Pets[pet.ID] = pet
	}
	return listing
}
