package models

// SchemaVersion benennt die Feldbelegung, mit der ein Datensatz geschrieben wurde.
//
// Version 0 steht für Altbestände ohne Versionsfeld; sie werden beim nächsten
// Lauf vollständig überschrieben.
type SchemaVersion int

const (
	SchemaLegacy SchemaVersion = 0
	// SchemaV1AgeBucket schreibt "age" nur als Altersstufe.
	SchemaV1AgeBucket SchemaVersion = 1
	// SchemaV2AgeMonths schreibt zusätzlich das Rohalter in Monaten nach "ageMonths".
	SchemaV2AgeMonths SchemaVersion = 2
)

// Valid meldet, ob v für neue Schreibvorgänge verwendet werden darf.
func (v SchemaVersion) Valid() bool {
	return v == SchemaV1AgeBucket || v == SchemaV2AgeMonths
}

// StoresAgeMonths meldet, ob das Rohalter mitgeschrieben wird.
func (v SchemaVersion) StoresAgeMonths() bool {
	return v >= SchemaV2AgeMonths
}
