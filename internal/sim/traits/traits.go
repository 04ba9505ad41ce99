// Package traits picks and repairs student trait sets: one main trait
// followed by two or three sub traits, none of them in conflict.
package traits

import (
	"mentorsim.ai/internal/sim/catalogs"
	"mentorsim.ai/internal/sim/rng"
)

// MaxAttempts bounds the weighted sampler before it falls back to catalog order.
const MaxAttempts = 24

const maxSubs = 3

type weight struct {
	polarity catalogs.Polarity
	p        float64
}

var weights = map[catalogs.TraitCategory][]weight{
	catalogs.CategoryMain: {
		{catalogs.PolarityPositive, 0.8},
		{catalogs.PolarityNegative, 0.2},
		{catalogs.PolarityNeutral, 0},
	},
	catalogs.CategorySub: {
		{catalogs.PolarityPositive, 0.6},
		{catalogs.PolarityNegative, 0.2},
		{catalogs.PolarityNeutral, 0.2},
	},
}

func samplePolarity(cat catalogs.TraitCategory, src rng.Source) catalogs.Polarity {
	ws := weights[cat]
	r := src.Float64()
	acc := 0.0
	for _, w := range ws {
		acc += w.p
		if r < acc {
			return w.polarity
		}
	}
	return ws[0].polarity
}

func conflictsAny(cat catalogs.TraitCatalog, id string, selected []string) bool {
	for _, s := range selected {
		if s == id || cat.Conflicts(id, s) {
			return true
		}
	}
	return false
}

// Pick draws one trait of category that conflicts with nothing in selected.
// Samples that conflict are blocked for the rest of the call. After
// MaxAttempts draws it returns the first compatible trait in catalog order;
// ok is false only when no compatible trait exists.
func Pick(cat catalogs.TraitCatalog, category catalogs.TraitCategory, selected []string, src rng.Source) (string, bool) {
	blocked := map[string]bool{}
	for _, s := range selected {
		blocked[s] = true
	}
	defs := cat.InCategory(category)

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		pol := samplePolarity(category, src)
		var pool []string
		for _, d := range defs {
			if d.Polarity == pol && !blocked[d.ID] {
				pool = append(pool, d.ID)
			}
		}
		if len(pool) == 0 {
			continue
		}
		id := pool[src.IntN(len(pool))]
		if conflictsAny(cat, id, selected) {
			blocked[id] = true
			continue
		}
		return id, true
	}

	for _, d := range defs {
		if !conflictsAny(cat, d.ID, selected) {
			return d.ID, true
		}
	}
	return "", false
}

// Resolve returns a complete trait set, main first. Valid entries of existing
// are kept (the first main trait, then sub traits that fit), missing slots are
// drawn with Pick. When no sub trait can coexist with the main trait the
// result is the main trait alone; an empty result means the catalog has no
// main traits at all.
func Resolve(cat catalogs.TraitCatalog, existing []string, src rng.Source) []string {
	main := ""
	for _, id := range existing {
		if cat.Is(id, catalogs.CategoryMain) {
			main = id
			break
		}
	}

	var subs []string
	for _, id := range existing {
		if len(subs) == maxSubs {
			break
		}
		if !cat.Is(id, catalogs.CategorySub) {
			continue
		}
		taken := subs
		if main != "" {
			taken = append([]string{main}, subs...)
		}
		if conflictsAny(cat, id, taken) {
			continue
		}
		subs = append(subs, id)
	}

	if main == "" {
		id, ok := Pick(cat, catalogs.CategoryMain, subs, src)
		if !ok {
			// Kept subs leave no room for any main trait; start over.
			subs = nil
			id, ok = Pick(cat, catalogs.CategoryMain, nil, src)
			if !ok {
				return nil
			}
		}
		main = id
	}

	target := len(subs)
	if target < 2 {
		target = 2 + src.IntN(2)
	}
	for len(subs) < target {
		id, ok := Pick(cat, catalogs.CategorySub, append([]string{main}, subs...), src)
		if !ok {
			break
		}
		subs = append(subs, id)
	}

	return append([]string{main}, subs...)
}

// Valid reports whether set is a well-formed trait list: a main trait first,
// then 2-3 distinct sub traits, no pair in conflict.
func Valid(cat catalogs.TraitCatalog, set []string) bool {
	if len(set) == 0 || !cat.Is(set[0], catalogs.CategoryMain) {
		return false
	}
	subs := set[1:]
	if len(subs) < 2 || len(subs) > maxSubs {
		return false
	}
	for i, id := range subs {
		if !cat.Is(id, catalogs.CategorySub) {
			return false
		}
		if conflictsAny(cat, id, set[:i+1]) {
			return false
		}
	}
	return true
}
