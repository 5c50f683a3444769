// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema
// definition and decodes them for the configuration layer.
package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// DefaultMaxFileSize bounds the size of a CUE document (1MB).
const DefaultMaxFileSize int64 = 1 << 20

type (
	options struct {
		maxFileSize int64
		filename    string
		concrete    bool
	}

	// Option configures Decode.
	Option func(*options)
)

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(size int64) Option {
	return func(o *options) { o.maxFileSize = size }
}

// WithFilename names the document in error messages.
func WithFilename(name string) Option {
	return func(o *options) { o.filename = name }
}

// WithConcrete requires every field to be concrete after unification.
// Config documents leave it off since all keys are optional.
func WithConcrete(concrete bool) Option {
	return func(o *options) { o.concrete = concrete }
}

// Decode compiles schema, unifies data with the definition (e.g. "#Config"),
// validates the result and decodes it into out. Errors carry the document
// name and the failing field path.
func Decode(schema, data []byte, definition string, out any, opts ...Option) error {
	o := options{maxFileSize: DefaultMaxFileSize, filename: "<input>"}
	for _, opt := range opts {
		opt(&o)
	}

	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if err := schemaValue.Err(); err != nil {
		return fmt.Errorf("internal error: compile schema: %w", err)
	}
	def := schemaValue.LookupPath(cue.ParsePath(definition))
	if err := def.Err(); err != nil {
		return fmt.Errorf("internal error: schema definition %s: %w", definition, err)
	}

	userValue := ctx.CompileBytes(data, cue.Filename(o.filename))
	if err := userValue.Err(); err != nil {
		return FormatError(err, o.filename)
	}

	unified := def.Unify(userValue)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return FormatError(err, o.filename)
	}
	if err := unified.Decode(out); err != nil {
		return FormatError(err, o.filename)
	}
	return nil
}

// CheckFileSize fails when data is larger than maxSize.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, len(data), maxSize)
	}
	return nil
}
