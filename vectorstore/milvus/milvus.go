//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package milvus provides a Milvus-backed implementation of the vector
// store interfaces.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"
	client "github.com/milvus-io/milvus/client/v2/milvusclient"
	"google.golang.org/grpc"

	"github.com/ansera-ai/ansera/vectorstore"
)

var _ vectorstore.Searcher = (*Store)(nil)
var _ vectorstore.Lister = (*Store)(nil)

// Client is the subset of the milvus client used by Store.
type Client interface {
	Search(ctx context.Context, option client.SearchOption, callOptions ...grpc.CallOption) ([]client.ResultSet, error)
	Query(ctx context.Context, option client.QueryOption, callOptions ...grpc.CallOption) (client.ResultSet, error)
	Close(ctx context.Context) error
}

const (
	defaultCollection  = "chunks"
	defaultIDField     = "chunk_id"
	defaultTenantField = "tenant_id"
	defaultVectorField = "embedding"
	listPageSize       = 1000
)

// Store queries a Milvus collection holding one row per chunk, with the
// chunk ID, owning tenant, and embedding vector as fields.
type Store struct {
	client      Client
	collection  string
	idField     string
	tenantField string
	vectorField string
}

type options struct {
	address     string
	username    string
	password    string
	dbName      string
	client      Client
	collection  string
	idField     string
	tenantField string
	vectorField string
}

// Option configures Store.
type Option func(*options)

// WithAddress sets the milvus server address, e.g. "localhost:19530".
func WithAddress(address string) Option {
	return func(o *options) {
		o.address = address
	}
}

// WithAuth sets the milvus username and password.
func WithAuth(username, password string) Option {
	return func(o *options) {
		o.username = username
		o.password = password
	}
}

// WithDBName sets the milvus database name.
func WithDBName(name string) Option {
	return func(o *options) {
		o.dbName = name
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(o *options) {
		o.collection = name
	}
}

// WithFields overrides the id, tenant, and vector field names.
func WithFields(idField, tenantField, vectorField string) Option {
	return func(o *options) {
		o.idField = idField
		o.tenantField = tenantField
		o.vectorField = vectorField
	}
}

// WithClient injects a pre-built client, bypassing connection setup.
func WithClient(c Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// New creates a Milvus-backed store.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	o := options{
		collection:  defaultCollection,
		idField:     defaultIDField,
		tenantField: defaultTenantField,
		vectorField: defaultVectorField,
	}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{
		client:      o.client,
		collection:  o.collection,
		idField:     o.idField,
		tenantField: o.tenantField,
		vectorField: o.vectorField,
	}
	if s.client == nil {
		c, err := client.New(ctx, &client.ClientConfig{
			Address:  o.address,
			Username: o.username,
			Password: o.password,
			DBName:   o.dbName,
		})
		if err != nil {
			return nil, fmt.Errorf("connect milvus: %w", err)
		}
		s.client = c
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// Search implements vectorstore.Searcher.
func (s *Store) Search(ctx context.Context, vector []float64, tenantID string, topK int) ([]vectorstore.ScoredID, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		return nil, nil
	}

	searchOption := client.NewSearchOption(s.collection, topK,
		[]entity.Vector{entity.FloatVector(toFloat32(vector))})
	searchOption.WithANNSField(s.vectorField)
	searchOption.WithFilter(fmt.Sprintf("%s == {tenant}", s.tenantField))
	searchOption.WithTemplateParam("tenant", tenantID)
	searchOption.WithOutputFields(s.idField)

	results, err := s.client.Search(ctx, searchOption)
	if err != nil {
		return nil, fmt.Errorf("milvus vector search failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	if len(results) > 1 {
		return nil, fmt.Errorf("milvus search returned %d result sets, expected 1", len(results))
	}

	rs := results[0]
	idColumn := rs.GetColumn(s.idField)
	if idColumn == nil {
		return nil, fmt.Errorf("milvus result missing field %q", s.idField)
	}
	scored := make([]vectorstore.ScoredID, 0, idColumn.Len())
	for i := 0; i < idColumn.Len(); i++ {
		id, err := idColumn.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("get chunk id: %w", err)
		}
		var score float64
		if i < len(rs.Scores) {
			score = float64(rs.Scores[i])
		}
		scored = append(scored, vectorstore.ScoredID{ID: id, Score: score})
	}
	return scored, nil
}

// ListChunkIDs implements vectorstore.Lister. Results are paged to cover
// collections larger than a single query limit.
func (s *Store) ListChunkIDs(ctx context.Context, tenantID string) ([]string, error) {
	var ids []string
	for offset := 0; ; offset += listPageSize {
		queryOption := client.NewQueryOption(s.collection)
		queryOption.WithFilter(fmt.Sprintf("%s == {tenant}", s.tenantField))
		queryOption.WithTemplateParam("tenant", tenantID)
		queryOption.WithOutputFields(s.idField)
		queryOption.WithLimit(listPageSize)
		queryOption.WithOffset(offset)

		rs, err := s.client.Query(ctx, queryOption)
		if err != nil {
			return nil, fmt.Errorf("milvus list chunk ids failed: %w", err)
		}
		idColumn := rs.GetColumn(s.idField)
		if idColumn == nil || idColumn.Len() == 0 {
			break
		}
		for i := 0; i < idColumn.Len(); i++ {
			id, err := idColumn.GetAsString(i)
			if err != nil {
				return nil, fmt.Errorf("get chunk id: %w", err)
			}
			ids = append(ids, id)
		}
		if idColumn.Len() < listPageSize {
			break
		}
	}
	return ids, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
