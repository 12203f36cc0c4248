package airtable

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"pet-sync/models"
)

var testOpts = Options{
	FormURL:       "https://airtable.com/shrJ4gbiSeSsgJyd8",
	PhotoBaseURL:  "https://dpa-media.s3.us-east-2.amazonaws.com/new-digs-photos/",
	SchemaVersion: models.SchemaV1AgeBucket,
}

func sampleRecord(recID string, petID any) map[string]any {
	return map[string]any{
		"id":          recID,
		"createdTime": "2024-01-01T00:00:00.000Z",
		"fields": map[string]any{
			"Status":               PublishedStatus,
			"Pet ID - do not edit": petID,
			"Pet Name":             "Biscuit",
			"Pet Species":          "Dog",
			"Sex":                  "Male",
			"Pet Age":              "2 years",
			"Pet Size":             "Medium (25-60)",
			"Breed - Dog":          "Beagle",
			"Color - Dog":          "Tricolor",
			"Public Description":   "Very good boy",
			"ThumbnailURL":         "https://example.com/thumb.jpg",
			"Pictures": []map[string]any{
				{"id": "att1", "filename": "front yard.jpg"},
				{"id": "att2", "filename": "IMG 2.png"},
			},
		},
	}
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func fieldsOf(rec map[string]any) map[string]any {
	return rec["fields"].(map[string]any)
}

func TestNormalizeRecord_Basics(t *testing.T) {
	pet, ok, err := NormalizeRecord(raw(t, sampleRecord("recABC", 17)), testOpts)
	if err != nil || !ok {
		t.Fatalf("NormalizeRecord = %v, %v", ok, err)
	}
	if pet.ID != "AT17" || pet.InternalID != "recABC" {
		t.Errorf("ids = %s/%s", pet.ID, pet.InternalID)
	}
	if pet.Source != models.SourceAirtable || pet.Status != "adoptable" || pet.Location != models.LocationNewDigs {
		t.Errorf("source=%s status=%s location=%s", pet.Source, pet.Status, pet.Location)
	}
	if pet.Species != "dog" || pet.Age != "2 years" || pet.AgeMonths != nil {
		t.Errorf("species=%s age=%s months=%v", pet.Species, pet.Age, pet.AgeMonths)
	}
	if models.Deref(pet.Size) != models.SizeMedium {
		t.Errorf("size = %v", models.Deref(pet.Size))
	}
	if models.Deref(pet.Breed) != "Beagle" || models.Deref(pet.Color) != "Tricolor" {
		t.Errorf("breed/color = %s/%s", models.Deref(pet.Breed), models.Deref(pet.Color))
	}
	wantPhotos := []string{
		"https://dpa-media.s3.us-east-2.amazonaws.com/new-digs-photos/recABC/front_yard.jpg",
		"https://dpa-media.s3.us-east-2.amazonaws.com/new-digs-photos/recABC/IMG_2.png",
	}
	if len(pet.Photos) != 2 || pet.Photos[0] != wantPhotos[0] || pet.Photos[1] != wantPhotos[1] {
		t.Errorf("photos = %v", pet.Photos)
	}
	if pet.CoverPhoto != "https://example.com/thumb.jpg" {
		t.Errorf("coverPhoto = %s", pet.CoverPhoto)
	}
	wantLink := "https://airtable.com/shrJ4gbiSeSsgJyd8?prefill_Applied%20For=recABC&prefill_I%27m+interested+in+adopting+this+type+of+pet:=Dogs"
	if pet.AdoptLink != wantLink {
		t.Errorf("adoptLink = %s", pet.AdoptLink)
	}
	if pet.Video != nil {
		t.Errorf("video = %v", *pet.Video)
	}
}

func TestNormalizeRecord_UnpublishedIsFilteredSilently(t *testing.T) {
	for _, status := range []string{"Draft", "Adopted", "published - available for adoption", ""} {
		rec := sampleRecord("rec1", 1)
		fieldsOf(rec)["Status"] = status
		// Unveröffentlichte Datensätze dürfen unvollständig sein.
		delete(fieldsOf(rec), "Pet Size")

		_, ok, err := NormalizeRecord(raw(t, rec), testOpts)
		if err != nil || ok {
			t.Errorf("status %q: ok=%v err=%v", status, ok, err)
		}
	}

	rec := sampleRecord("rec1", 1)
	delete(fieldsOf(rec), "Status")
	if _, ok, err := NormalizeRecord(raw(t, rec), testOpts); err != nil || ok {
		t.Errorf("missing status: ok=%v err=%v", ok, err)
	}

	for _, status := range []any{[]string{"Draft"}, []string{PublishedStatus}, 3, true, map[string]any{"name": "Draft"}} {
		rec := sampleRecord("rec1", 1)
		fieldsOf(rec)["Status"] = status
		if _, ok, err := NormalizeRecord(raw(t, rec), testOpts); err != nil || ok {
			t.Errorf("status %v: ok=%v err=%v", status, ok, err)
		}
	}
}

func TestNormalizeRecord_DerivationRules(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(f map[string]any)
		check func(t *testing.T, p models.Pet)
	}{
		{
			name: "cat pair when dog pair empty",
			edit: func(f map[string]any) {
				delete(f, "Breed - Dog")
				delete(f, "Color - Dog")
				f["Pet Species"] = "Cat"
				f["Breed - Cat"] = "Domestic Shorthair"
				f["Color - Cat"] = "Orange"
			},
			check: func(t *testing.T, p models.Pet) {
				if models.Deref(p.Breed) != "Domestic Shorthair" || models.Deref(p.Color) != "Orange" {
					t.Errorf("breed/color = %s/%s", models.Deref(p.Breed), models.Deref(p.Color))
				}
				if !strings.HasSuffix(p.AdoptLink, "pet:=Cats") {
					t.Errorf("adoptLink = %s", p.AdoptLink)
				}
			},
		},
		{
			name: "other species pair",
			edit: func(f map[string]any) {
				f["Breed - Dog"] = ""
				delete(f, "Color - Dog")
				f["Pet Species"] = "Rabbit"
				f["Breed - Other Species"] = "Lop"
				f["Color - Other Species"] = "White"
			},
			check: func(t *testing.T, p models.Pet) {
				if models.Deref(p.Breed) != "Lop" || models.Deref(p.Color) != "White" || p.Species != "rabbit" {
					t.Errorf("breed/color/species = %s/%s/%s", models.Deref(p.Breed), models.Deref(p.Color), p.Species)
				}
				if !strings.HasSuffix(p.AdoptLink, "pet:=Other") {
					t.Errorf("adoptLink = %s", p.AdoptLink)
				}
			},
		},
		{
			name: "no breed anywhere",
			edit: func(f map[string]any) {
				delete(f, "Breed - Dog")
				delete(f, "Color - Dog")
			},
			check: func(t *testing.T, p models.Pet) {
				if p.Breed != nil || p.Color != nil {
					t.Errorf("breed/color = %v/%v", p.Breed, p.Color)
				}
			},
		},
		{
			name: "picture map substitutes filenames",
			edit: func(f map[string]any) {
				f["PictureMap-DoNotModify"] = `{"front yard.jpg":"biscuit 1.jpg"}`
			},
			check: func(t *testing.T, p models.Pet) {
				if !strings.HasSuffix(p.Photos[0], "/recX/biscuit_1.jpg") || !strings.HasSuffix(p.Photos[1], "/recX/IMG_2.png") {
					t.Errorf("photos = %v", p.Photos)
				}
			},
		},
		{
			name: "no pictures",
			edit: func(f map[string]any) { delete(f, "Pictures") },
			check: func(t *testing.T, p models.Pet) {
				if p.Photos == nil || len(p.Photos) != 0 {
					t.Errorf("photos = %#v", p.Photos)
				}
			},
		},
		{
			name: "extra large and video",
			edit: func(f map[string]any) {
				f["Pet Size"] = "X-Large"
				f["Youtube Video"] = "https://youtu.be/abc"
			},
			check: func(t *testing.T, p models.Pet) {
				if models.Deref(p.Size) != models.SizeExtraLarge || models.Deref(p.Video) != "https://youtu.be/abc" {
					t.Errorf("size=%v video=%v", models.Deref(p.Size), models.Deref(p.Video))
				}
			},
		},
		{
			name: "bare XL has no bucket",
			edit: func(f map[string]any) { f["Pet Size"] = "XL" },
			check: func(t *testing.T, p models.Pet) {
				if p.Size != nil {
					t.Errorf("size = %v, want nil", *p.Size)
				}
			},
		},
		{
			name: "missing thumbnail",
			edit: func(f map[string]any) { delete(f, "ThumbnailURL") },
			check: func(t *testing.T, p models.Pet) {
				if p.CoverPhoto != "" {
					t.Errorf("coverPhoto = %s", p.CoverPhoto)
				}
			},
		},
		{
			name: "numeric age stays raw",
			edit: func(f map[string]any) { f["Pet Age"] = 3 },
			check: func(t *testing.T, p models.Pet) {
				if p.Age != "3" {
					t.Errorf("age = %s", p.Age)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord("recX", 5)
			tt.edit(fieldsOf(rec))
			pet, ok, err := NormalizeRecord(raw(t, rec), testOpts)
			if err != nil || !ok {
				t.Fatalf("NormalizeRecord = %v, %v", ok, err)
			}
			tt.check(t, pet)
		})
	}
}

func TestNormalizeRecord_SchemaV2KeepsRawAge(t *testing.T) {
	opts := testOpts
	opts.SchemaVersion = models.SchemaV2AgeMonths
	pet, _, err := NormalizeRecord(raw(t, sampleRecord("rec1", 1)), opts)
	if err != nil {
		t.Fatalf("NormalizeRecord: %v", err)
	}
	if pet.Age != "2 years" || pet.AgeMonths != nil || pet.SchemaVersion != models.SchemaV2AgeMonths {
		t.Errorf("age=%s months=%v schema=%d", pet.Age, pet.AgeMonths, pet.SchemaVersion)
	}
}

func TestNormalizeRecord_Malformed(t *testing.T) {
	for _, field := range []string{"Pet ID - do not edit", "Pet Name", "Pet Species", "Sex", "Pet Age", "Pet Size"} {
		rec := sampleRecord("rec1", 1)
		delete(fieldsOf(rec), field)
		if _, _, err := NormalizeRecord(raw(t, rec), testOpts); err == nil {
			t.Errorf("expected error without %s", field)
		}
	}

	rec := sampleRecord("rec1", 1)
	fieldsOf(rec)["PictureMap-DoNotModify"] = "{not json"
	if _, _, err := NormalizeRecord(raw(t, rec), testOpts); err == nil {
		t.Error("expected error for invalid picture map")
	}

	rec = sampleRecord("rec1", 1)
	fieldsOf(rec)["Pictures"] = "front.jpg"
	if _, _, err := NormalizeRecord(raw(t, rec), testOpts); err == nil {
		t.Error("expected error for non-list pictures")
	}
}

func TestNormalizeAll_CountsAndIsolates(t *testing.T) {
	draft := sampleRecord("rec2", 2)
	fieldsOf(draft)["Status"] = "Draft"
	broken := sampleRecord("rec3", 3)
	delete(fieldsOf(broken), "Pet Name")

	listing, filtered := normalizeAll([]json.RawMessage{
		raw(t, sampleRecord("rec1", 1)),
		raw(t, draft),
		raw(t, broken),
		raw(t, sampleRecord("rec4", "4")),
	}, testOpts)

	if len(listing.Pets) != 2 || filtered != 1 {
		t.Fatalf("pets=%d filtered=%d", len(listing.Pets), filtered)
	}
	for _, id := range []string{"AT1", "AT4"} {
		if _, ok := listing.Pets[id]; !ok {
			t.Errorf("missing %s", id)
		}
	}
	if len(listing.RecordErrors) != 1 || listing.RecordErrors[0].RecordID != "rec3" {
		t.Fatalf("record errors = %v", listing.RecordErrors)
	}
}
