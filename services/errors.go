package services

import (
	"fmt"

	"pet-sync/models"
)

// UnknownSourceError meldet einen gespeicherten Datensatz, dessen source-Feld unbekannt ist
// oder nicht zur gelesenen Partition passt.
type UnknownSourceError struct {
	ID        string
	Source    models.Source
	Partition models.Source
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("pet %s: unknown source %q in partition %s", e.ID, e.Source, e.Partition)
}

// WriteCountMismatchError bedeutet, dass der Store weniger Löschungen oder Upserts angewendet hat
// als angefordert. Der Lauf darf danach keinen Erfolg melden.
type WriteCountMismatchError struct {
	Source    models.Source
	Kind      string // "deletes" oder "upserts"
	Requested int
	Applied   int
}

func (e *WriteCountMismatchError) Error() string {
	return fmt.Sprintf("%s: applied %d of %d %s", e.Source, e.Applied, e.Requested, e.Kind)
}
