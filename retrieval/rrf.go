//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package retrieval implements hybrid dense plus lexical retrieval with
// reciprocal rank fusion, and the iterative sufficiency-driven round
// controller built on top of it.
package retrieval

import "sort"

// Fused is a candidate ID with its reciprocal rank fusion score.
type Fused struct {
	ID    string
	Score float64
}

// FuseRRF merges ranked candidate lists by reciprocal rank fusion. Each
// list is ordered best first; a candidate at 1-based rank r contributes
// 1/(k+r) to its total. Candidates absent from a list contribute nothing
// for that list. The result is ordered by descending score, ties broken
// by first appearance across the input lists.
func FuseRRF(k int, lists ...[]string) []Fused {
	scores := make(map[string]float64)
	order := make([]string, 0)
	for _, list := range lists {
		for rank, id := range list {
			if _, ok := scores[id]; !ok {
				order = append(order, id)
			}
			scores[id] += 1.0 / float64(k+rank+1)
		}
	}
	fused := make([]Fused, 0, len(order))
	for _, id := range order {
		fused = append(fused, Fused{ID: id, Score: scores[id]})
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}
