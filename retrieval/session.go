//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

package retrieval

import "github.com/ansera-ai/ansera/chunk"

// Session accumulates evidence across retrieval rounds. A chunk ID joins
// the seen set the first time its text is fetched successfully, so later
// rounds never refetch or duplicate it. Evidence keeps arrival order.
type Session struct {
	seen     map[string]bool
	evidence []chunk.Chunk
	warnings []string
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{seen: make(map[string]bool)}
}

// Unseen filters ids down to those not yet fetched, preserving order and
// removing duplicates within ids itself. It does not mark anything seen;
// only AddEvidence does, after a successful text fetch.
func (s *Session) Unseen(ids []string) []string {
	var fresh []string
	local := make(map[string]bool, len(ids))
	for _, id := range ids {
		if s.seen[id] || local[id] {
			continue
		}
		local[id] = true
		fresh = append(fresh, id)
	}
	return fresh
}

// AddEvidence appends fetched chunks, skipping any ID already held.
// It returns how many chunks were actually added.
func (s *Session) AddEvidence(chunks []chunk.Chunk) int {
	added := 0
	for _, ch := range chunks {
		if s.seen[ch.ID] {
			continue
		}
		s.seen[ch.ID] = true
		s.evidence = append(s.evidence, ch)
		added++
	}
	return added
}

// Evidence returns the accumulated chunks in arrival order.
func (s *Session) Evidence() []chunk.Chunk {
	return s.evidence
}

// Warn records a degradation note. Exact duplicates are dropped so a
// source failing on every variation reports once.
func (s *Session) Warn(msg string) {
	for _, w := range s.warnings {
		if w == msg {
			return
		}
	}
	s.warnings = append(s.warnings, msg)
}

// Warnings returns all recorded degradation notes.
func (s *Session) Warnings() []string {
	return s.warnings
}
