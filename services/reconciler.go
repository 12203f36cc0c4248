package services

import (
	"sort"

	"pet-sync/models"
)

// Plan ist das Ergebnis des Abgleichs einer Quelle gegen ihre gespeicherte Partition.
type Plan struct {
	Deletes   []string
	Upserts   []models.Pet
	Unchanged []string
}

// ReconcileOptions steuern den Abgleich.
type ReconcileOptions struct {
	// SkipUnchanged lässt Datensätze mit gleichem Inhalts-Hash aus den Upserts weg.
	SkipUnchanged bool
}

// Reconcile berechnet Löschungen und Upserts. Jede ID aus current, die in source fehlt, wird gelöscht.
// Jeder Datensatz aus source wird geschrieben (Vollüberschreibung), außer SkipUnchanged greift.
// Alle Upserts tragen ihren ContentHash. Die Ausgabe ist nach ID sortiert.
func Reconcile(source map[string]models.Pet, current []models.Pet, opts ReconcileOptions) Plan {
	stored := make(map[string]string, len(current))
	plan := Plan{Deletes: []string{}, Upserts: make([]models.Pet, 0, len(source))}

	for _, p := range current {
		if _, dup := stored[p.ID]; dup {
			continue
		}
		stored[p.ID] = p.ContentHash
		if _, ok := source[p.ID]; !ok {
			plan.Deletes = append(plan.Deletes, p.ID)
		}
	}

	for id, p := range source {
		p.ContentHash = p.Hash()
		if opts.SkipUnchanged {
			if hash, ok := stored[id]; ok && hash != "" && hash == p.ContentHash {
				plan.Unchanged = append(plan.Unchanged, id)
				continue
			}
		}
		plan.Upserts = append(plan.Upserts, p)
	}

	sort.Strings(plan.Deletes)
	sort.Strings(plan.Unchanged)
	sort.Slice(plan.Upserts, func(i, j int) bool { return plan.Upserts[i].ID < plan.Upserts[j].ID })
	return plan
}
