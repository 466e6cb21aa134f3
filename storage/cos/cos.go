//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package cos provides a Tencent Cloud Object Storage (COS) chunk text
// backend.
//
// Authentication credentials can be provided via the COS_SECRETID and
// COS_SECRETKEY environment variables, or through options.
package cos

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"

	"github.com/ansera-ai/ansera/chunk"
)

var _ chunk.Blob = (*Blob)(nil)

const defaultTimeout = 60 * time.Second

// Blob reads chunk text objects from a COS bucket.
type Blob struct {
	cosClient *cos.Client
}

type options struct {
	secretID   string
	secretKey  string
	timeout    time.Duration
	httpClient *http.Client
	cosClient  *cos.Client
}

// Option configures Blob.
type Option func(*options)

// WithSecretID sets the COS secret ID.
func WithSecretID(id string) Option {
	return func(o *options) {
		o.secretID = id
	}
}

// WithSecretKey sets the COS secret key.
func WithSecretKey(key string) Option {
	return func(o *options) {
		o.secretKey = key
	}
}

// WithTimeout sets the HTTP timeout for object reads.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithClient sets a pre-configured COS client directly.
func WithClient(client *cos.Client) Option {
	return func(o *options) {
		o.cosClient = client
	}
}

// New creates a COS chunk text backend for the given bucket URL, e.g.
// "https://bucket.cos.region.myqcloud.com".
func New(bucketURL string, opts ...Option) (*Blob, error) {
	o := &options{
		timeout:   defaultTimeout,
		secretID:  os.Getenv("COS_SECRETID"),
		secretKey: os.Getenv("COS_SECRETKEY"),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.cosClient != nil {
		return &Blob{cosClient: o.cosClient}, nil
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("parse bucket url: %w", err)
	}
	b := &cos.BaseURL{BucketURL: u}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: o.timeout,
			Transport: &cos.AuthorizationTransport{
				SecretID:  o.secretID,
				SecretKey: o.secretKey,
			},
		}
	}
	return &Blob{cosClient: cos.NewClient(b, httpClient)}, nil
}

// Get implements chunk.Blob.
func (b *Blob) Get(ctx context.Context, path string) (string, error) {
	resp, err := b.cosClient.Object.Get(ctx, path, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return "", chunk.ErrNotFound
		}
		return "", fmt.Errorf("get object %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", path, err)
	}
	return string(data), nil
}
