package main

import (
	"log"
	"strings"
)

// fallbackGroupName labels the single all-tabs category returned when the
// classifier output cannot be trusted.
const fallbackGroupName = "All Tabs"

// lazyNames are generic labels the classifier is not allowed to use; users
// consistently rejected vague buckets.
var lazyNames = map[string]bool{
	"other":         true,
	"misc":          true,
	"miscellaneous": true,
	"random":        true,
	"stuff":         true,
	"rest":          true,
}

// substituteNames replace lazy names. None of these may appear in lazyNames.
var substituteNames = []string{"General", "Mixed", "Various", "Additional"}

func fallbackCategories(totalTabs int) []ValidatedCategory {
	indices := make([]int, totalTabs)
	for i := range indices {
		indices[i] = i
	}
	return []ValidatedCategory{{Name: fallbackGroupName, TabIndices: indices}}
}

// RepairCategories turns an untrusted proposed partition into a total, valid
// partition of [0, totalTabs). It never fails: structurally unusable input
// collapses to the single fallback category covering every tab.
//
// Repair steps, in order: drop duplicate index claims (first category wins),
// merge unassigned indices into the largest category, rename lazy category
// names, drop empty categories, and collapse to the fallback when fewer than
// two categories remain.
func RepairCategories(proposed []ProposedCategory, totalTabs int) []ValidatedCategory {
	if len(proposed) == 0 {
		log.Printf("repair: classifier returned no usable categories, using fallback tabs=%d", totalTabs)
		return fallbackCategories(totalTabs)
	}
	for _, cat := range proposed {
		if cat.TabIndices == nil {
			log.Printf("repair: category %q has no index list, using fallback tabs=%d", cat.Name, totalTabs)
			return fallbackCategories(totalTabs)
		}
	}

	// First category to claim an index keeps it; later claims and
	// out-of-range indices are dropped.
	assigned := make(map[int]bool, totalTabs)
	cats := make([]ValidatedCategory, 0, len(proposed))
	for _, cat := range proposed {
		indices := make([]int, 0, len(cat.TabIndices))
		for _, idx := range cat.TabIndices {
			if idx < 0 || idx >= totalTabs || assigned[idx] {
				continue
			}
			assigned[idx] = true
			indices = append(indices, idx)
		}
		cats = append(cats, ValidatedCategory{Name: cat.Name, TabIndices: indices})
	}

	var orphans []int
	for i := 0; i < totalTabs; i++ {
		if !assigned[i] {
			orphans = append(orphans, i)
		}
	}
	if len(orphans) > 0 {
		// Merge into the statistically dominant bucket rather than
		// inventing a new miscellaneous one. First-encountered max wins.
		largest := 0
		for i, cat := range cats {
			if len(cat.TabIndices) > len(cats[largest].TabIndices) {
				largest = i
			}
		}
		log.Printf("repair: %d orphaned tabs merged into %q", len(orphans), cats[largest].Name)
		cats[largest].TabIndices = append(cats[largest].TabIndices, orphans...)
	}

	substituteIdx := 0
	for i := range cats {
		name := strings.TrimSpace(cats[i].Name)
		if name == "" || lazyNames[strings.ToLower(name)] {
			replacement := substituteNames[substituteIdx%len(substituteNames)]
			substituteIdx++
			log.Printf("repair: renamed lazy category %q to %q", cats[i].Name, replacement)
			cats[i].Name = replacement
		}
	}

	valid := cats[:0]
	for _, cat := range cats {
		if len(cat.TabIndices) > 0 {
			valid = append(valid, cat)
		}
	}

	// A single surviving category carries no organizational value; make the
	// degradation explicit instead of presenting it as a classification.
	if len(valid) < 2 {
		log.Printf("repair: only %d categories survived, using fallback tabs=%d", len(valid), totalTabs)
		return fallbackCategories(totalTabs)
	}
	return valid
}
