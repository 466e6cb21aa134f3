//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package lexical provides BM25 keyword retrieval over a tenant's chunk
// corpus, with a TTL cache of built indexes.
package lexical

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Okapi BM25 parameters.
const (
	k1 = 1.5
	b  = 0.75
)

// Doc is one indexed document.
type Doc struct {
	ID   string
	Text string
}

// Scored is a document ID with its BM25 score.
type Scored struct {
	ID    string
	Score float64
}

// Index is an immutable BM25 index over a fixed set of documents.
type Index struct {
	ids     []string
	tf      []map[string]int
	docLen  []int
	idf     map[string]float64
	avgdl   float64
	numDocs int
}

// Tokenize lowercases text and splits it on non-alphanumeric runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Build constructs an index over docs. Documents with no tokens are
// excluded.
func Build(docs []Doc) *Index {
	idx := &Index{idf: make(map[string]float64)}
	df := make(map[string]int)
	totalLen := 0
	for _, doc := range docs {
		tokens := Tokenize(doc.Text)
		if len(tokens) == 0 {
			continue
		}
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			df[tok]++
		}
		idx.ids = append(idx.ids, doc.ID)
		idx.tf = append(idx.tf, tf)
		idx.docLen = append(idx.docLen, len(tokens))
		totalLen += len(tokens)
	}
	idx.numDocs = len(idx.ids)
	if idx.numDocs == 0 {
		return idx
	}
	idx.avgdl = float64(totalLen) / float64(idx.numDocs)
	n := float64(idx.numDocs)
	for tok, freq := range df {
		idx.idf[tok] = math.Log((n-float64(freq)+0.5)/(float64(freq)+0.5) + 1)
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return idx.numDocs
}

// Score ranks the corpus against query, highest score first. Documents
// scoring zero are excluded.
func (idx *Index) Score(query string, topK int) []Scored {
	if idx.numDocs == 0 || topK <= 0 {
		return nil
	}
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	var scored []Scored
	for i := 0; i < idx.numDocs; i++ {
		score := 0.0
		norm := k1 * (1 - b + b*float64(idx.docLen[i])/idx.avgdl)
		for _, tok := range queryTokens {
			tf := idx.tf[i][tok]
			if tf == 0 {
				continue
			}
			score += idx.idf[tok] * float64(tf) * (k1 + 1) / (float64(tf) + norm)
		}
		if score > 0 {
			scored = append(scored, Scored{ID: idx.ids[i], Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
