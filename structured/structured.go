//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package structured obtains typed JSON output from a text generator, with
// fence cleanup, key validation, and bounded retries on malformed output.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ansera-ai/ansera/log"
	"github.com/ansera-ai/ansera/model"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
)

// fenceRE strips a Markdown code fence (optionally tagged json) wrapped
// around the model output.
var fenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

type options struct {
	maxAttempts  int
	retryDelay   time.Duration
	requiredKeys []string
}

// Option configures a Call.
type Option func(*options)

// WithMaxAttempts sets how many generation attempts are made before giving up.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		o.retryDelay = d
	}
}

// WithRequiredKeys rejects responses missing any of the named top-level keys.
func WithRequiredKeys(keys ...string) Option {
	return func(o *options) {
		o.requiredKeys = keys
	}
}

// Clean removes a surrounding Markdown code fence and whitespace from raw
// model output.
func Clean(s string) string {
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// Call sends req to gen asking for JSON output and unmarshals the cleaned
// response into out. Malformed or incomplete responses are retried up to the
// attempt limit; the last failure is returned so the caller can apply its
// typed fallback.
func Call(ctx context.Context, gen model.Generator, req *model.Request, out any, opts ...Option) error {
	o := options{
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}

	jsonReq := *req
	jsonReq.JSONOutput = true

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt > 1 && o.retryDelay > 0 {
			select {
			case <-time.After(o.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		rsp, err := gen.Generate(ctx, &jsonReq)
		if err != nil {
			lastErr = fmt.Errorf("generate: %w", err)
			log.Warnf("structured call attempt %d/%d failed: %v", attempt, o.maxAttempts, lastErr)
			continue
		}
		if rsp.FinishReason == model.FinishSafety {
			// A blocked prompt will not get better on retry.
			return fmt.Errorf("generation blocked: %s", rsp.BlockReason)
		}
		if err := decode(rsp.Text, out, o.requiredKeys); err != nil {
			lastErr = err
			log.Warnf("structured call attempt %d/%d failed: %v", attempt, o.maxAttempts, lastErr)
			continue
		}
		return nil
	}
	return fmt.Errorf("structured call failed after %d attempts: %w", o.maxAttempts, lastErr)
}

func decode(raw string, out any, requiredKeys []string) error {
	cleaned := Clean(raw)
	if cleaned == "" {
		return fmt.Errorf("empty response")
	}
	if len(requiredKeys) > 0 {
		var top map[string]json.RawMessage
		if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
		for _, key := range requiredKeys {
			if _, ok := top[key]; !ok {
				return fmt.Errorf("missing key %q", key)
			}
		}
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}
