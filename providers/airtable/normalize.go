package airtable

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
	FormURL       string
	PhotoBaseURL  string
	SchemaVersion models.SchemaVersion
}

// NormalizeRecord wandelt einen Airtable-Datensatz in unser Pet-Modell um.
// ok ist false, wenn der Datensatz nicht veröffentlicht ist; das ist kein Fehler.
func NormalizeRecord(raw json.RawMessage, opts Options) (pet models.Pet, ok bool, err error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.Pet{}, false, err
	}
	fields := rec.Fields

	if fields.literal(fieldStatus) != PublishedStatus {
		return models.Pet{}, false, nil
	}
	if rec.ID == "" {
		return models.Pet{}, false, errors.New("missing record id")
	}

	petID, err := fields.required(fieldPetID)
	if err != nil {
		return models.Pet{}, false, err
	}
	name, err := fields.required(fieldName)
	if err != nil {
		return models.Pet{}, false, err
	}
	species, err := fields.required(fieldSpecies)
	if err != nil {
		return models.Pet{}, false, err
	}
	sex, err := fields.required(fieldSex)
	if err != nil {
		return models.Pet{}, false, err
	}
	age, err := fields.required(fieldAge)
	if err != nil {
		return models.Pet{}, false, err
	}
	size, err := fields.required(fieldSize)
	if err != nil {
		return models.Pet{}, false, err
	}

	breed, color, err := breedAndColor(fields)
	if err != nil {
		return models.Pet{}, false, err
	}

	photos, err := photoURLs(rec.ID, fields, opts.PhotoBaseURL)
	if err != nil {
		return models.Pet{}, false, err
	}

	description, err := fields.optional(fieldDescription)
	if err != nil {
		return models.Pet{}, false, err
	}
	cover, err := fields.str(fieldThumbnail)
	if err != nil {
		return models.Pet{}, false, err
	}
	video, err := fields.optional(fieldVideo)
	if err != nil {
		return models.Pet{}, false, err
	}

	return models.Pet{
		ID:            models.SourceAirtable.IDPrefix() + petID,
		InternalID:    rec.ID,
		Name:          providers.CleanText(name),
		Species:       strings.ToLower(species),
		Sex:           sex,
		Age:           age,
		Breed:         breed,
		Color:         color,
		Description:   providers.CleanDescription(description),
		Size:          providers.SizeBucket(size),
		CoverPhoto:    cover,
		Photos:        photos,
		Video:         video,
		Status:        "adoptable",
		Source:        models.SourceAirtable,
		AdoptLink:     adoptLink(opts.FormURL, rec.ID, species),
		Location:      models.LocationNewDigs,
		SchemaVersion: opts.SchemaVersion,
	}, true, nil
}

// breedAndColor wählt das erste nicht-leere Rasse/Farbe-Paar: Hund, Katze, sonstige.
func breedAndColor(fields fieldBag) (*string, *string, error) {
	pairs := [][2]string{
		{fieldBreedDog, fieldColorDog},
		{fieldBreedCat, fieldColorCat},
		{fieldBreedOther, fieldColorOther},
	}
	var breed, color *string
	for _, pair := range pairs {
		var err error
		if breed, err = fields.optional(pair[0]); err != nil {
			return nil, nil, err
		}
		if color, err = fields.optional(pair[1]); err != nil {
			return nil, nil, err
		}
		if breed != nil {
			break
		}
	}
	return breed, color, nil
}

// photoURLs baut die S3-URLs der Bilder; die Dateinamen laufen vorher durch die PictureMap.
func photoURLs(recordID string, fields fieldBag, baseURL string) ([]string, error) {
	var pictures []Attachment
	if fields.has(fieldPictures) {
		if err := json.Unmarshal(fields[fieldPictures], &pictures); err != nil {
			return nil, fmt.Errorf("field %q: %w", fieldPictures, err)
		}
	}

	filenameMap := map[string]string{}
	rawMap, err := fields.str(fieldPictureMap)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rawMap) != "" {
		if err := json.Unmarshal([]byte(rawMap), &filenameMap); err != nil {
			return nil, fmt.Errorf("field %q: %w", fieldPictureMap, err)
		}
	}

	photos := make([]string, 0, len(pictures))
	for _, pic := range pictures {
		filename := pic.Filename
		if mapped, ok := filenameMap[filename]; ok {
			filename = mapped
		}
		photos = append(photos, baseURL+recordID+"/"+strings.ReplaceAll(filename, " ", "_"))
	}
	return photos, nil
}

func adoptLink(formURL, recordID, species string) string {
	interestedIn := "Dogs"
	if species == "Cat" {
		interestedIn = "Cats"
	} else if species != "Dog" {
		interestedIn = "Other"
	}
	return formURL +
		"?prefill_Applied%20For=" + recordID +
		"&prefill_I%27m+interested+in+adopting+this+type+of+pet:=" + interestedIn
}

// normalizeAll normalisiert alle Datensätze; fehlerhafte werden gesammelt und übersprungen.
func normalizeAll(records []json.RawMessage, opts Options) (*providers.Listing, int) {
	listing := providers.NewListing()
	filtered := 0
	for _, raw := range records {
		pet, ok, err := NormalizeRecord(raw, opts)
		if err != nil {
			listing.RecordErrors = append(listing.RecordErrors, &providers.RecordParseError{
				Source:   models.SourceAirtable,
				RecordID: recordID(raw),
				Payload:  raw,
				Err:      fmt.Errorf("normalize: %w", err),
			})
			continue
		}
		if !ok {
			filtered++
			continue
		}
		listing.Pets[pet.ID] = pet
	}
	return listing, filtered
}

func recordID(raw json.RawMessage) string {
	var rec struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &rec)
	return rec.ID
}
