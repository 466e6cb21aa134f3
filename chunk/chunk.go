//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package chunk resolves chunk IDs to their stored text.
//
// Chunk IDs follow the layout tenant_{id}_source_{hash}_chunk_{n} and map
// to object storage paths tenant_{id}/source_{hash}/{n}.txt.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a chunk's text does not exist in storage.
var ErrNotFound = errors.New("chunk not found")

const (
	tenantPrefix = "tenant_"
	sourceMark   = "_source_"
	chunkMark    = "_chunk_"
)

// Chunk is a retrievable unit of knowledge text.
type Chunk struct {
	// ID is the full chunk identifier.
	ID string
	// Text is the chunk content.
	Text string
	// SourceIdentifier names the document the chunk came from.
	SourceIdentifier string
}

// Ref is a parsed chunk identifier.
type Ref struct {
	TenantID   string
	SourceHash string
	Index      int
}

// ParseID parses a chunk identifier. ownerTenantID guards against IDs that
// leaked across tenants: a non-empty value must match the ID's tenant
// segment.
func ParseID(id, ownerTenantID string) (Ref, error) {
	if !strings.HasPrefix(id, tenantPrefix) {
		return Ref{}, fmt.Errorf("malformed chunk id %q", id)
	}
	rest := id[len(tenantPrefix):]
	ci := strings.LastIndex(rest, chunkMark)
	if ci < 0 {
		return Ref{}, fmt.Errorf("malformed chunk id %q", id)
	}
	index, err := strconv.Atoi(rest[ci+len(chunkMark):])
	if err != nil || index < 0 {
		return Ref{}, fmt.Errorf("malformed chunk id %q", id)
	}
	head := rest[:ci]
	si := strings.LastIndex(head, sourceMark)
	if si < 0 {
		return Ref{}, fmt.Errorf("malformed chunk id %q", id)
	}
	ref := Ref{
		TenantID:   head[:si],
		SourceHash: head[si+len(sourceMark):],
		Index:      index,
	}
	if ref.TenantID == "" || ref.SourceHash == "" {
		return Ref{}, fmt.Errorf("malformed chunk id %q", id)
	}
	if ownerTenantID != "" && ref.TenantID != ownerTenantID {
		return Ref{}, fmt.Errorf("chunk id %q does not belong to tenant %q", id, ownerTenantID)
	}
	return ref, nil
}

// ID reassembles the full chunk identifier.
func (r Ref) ID() string {
	return fmt.Sprintf("%s%s%s%s%s%d", tenantPrefix, r.TenantID, sourceMark, r.SourceHash, chunkMark, r.Index)
}

// ObjectPath returns the storage path holding the chunk text.
func (r Ref) ObjectPath() string {
	return fmt.Sprintf("%s%s/source_%s/%d.txt", tenantPrefix, r.TenantID, r.SourceHash, r.Index)
}

// SourceID returns the default source identifier derived from the ID.
func (r Ref) SourceID() string {
	return "source_" + r.SourceHash
}

// Blob reads raw chunk text from object storage.
type Blob interface {
	// Get returns the object at path, or ErrNotFound.
	Get(ctx context.Context, path string) (string, error)
}

// Cache memoizes chunk text between fetches.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// SourceResolver maps a parsed chunk reference to a human-readable source
// identifier, e.g. the original document filename.
type SourceResolver interface {
	ResolveSource(ctx context.Context, ref Ref) (string, error)
}
