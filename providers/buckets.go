package providers

import (
	"strings"

	"pet-sync/models"
)

// SizeBucket ordnet eine freie Größenangabe einer Größenstufe zu.
// Reihenfolge zählt: "small" vor "medium" vor "large"; ein "x" macht aus Large Extra-Large.
func SizeBucket(raw string) *string {
	size := strings.ToLower(raw)
	switch {
	case strings.Contains(size, "small"):
		return models.StringPtr(models.SizeSmall)
	case strings.Contains(size, "medium"):
		return models.StringPtr(models.SizeMedium)
	case strings.Contains(size, "large") && !strings.Contains(size, "x"):
		return models.StringPtr(models.SizeLarge)
	case strings.Contains(size, "large"):
		return models.StringPtr(models.SizeExtraLarge)
	default:
		return nil
	}
}

// AgeBucket ordnet ein Alter in Monaten einer Altersstufe zu.
func AgeBucket(months int) string {
	switch {
	case months <= 9:
		return models.AgeBaby
	case months <= 24:
		return models.AgeYoung
	case months <= 96:
		return models.AgeAdult
	default:
		return models.AgeSenior
	}
}

// NonEmpty liefert nil für leere Strings.
func NonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
