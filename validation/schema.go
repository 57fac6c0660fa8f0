// Copyright 2026 The Lattice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package validation

import (
	"encoding/json"
	"sort"
	"sync"
)

// Kind is the primitive kind of a field rule.
type Kind string

// Field rule kinds.
const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindObject Kind = "object"
	KindArray  Kind = "array"
	KindDate   Kind = "date"
	KindUUID   Kind = "uuid"
	KindEmail  Kind = "email"
	KindURL    Kind = "url"
	KindEnum   Kind = "enum"
)

// Rule declares the expectations for a single field. Rules are built with
// the fluent constructors and chainers below:
//
//	validation.String().MinLen(2).MaxLen(100).Required()
//	validation.Int().Min(1).Max(100).Default(20).Coerce()
//
// A Rule is immutable once handed to a [Descriptor]; the chainers mutate
// the receiver and return it for chaining during construction only.
type Rule struct {
	kind       Kind
	required   bool
	hasDefault bool
	def        any
	min, max   *float64
	minLen     *int
	maxLen     *int
	pattern    string
	enum       []any
	fields     Fields
	items      *Rule
	coerce     bool
	trim       bool
}

// Fields maps field names to their rules.
type Fields map[string]*Rule

// Rule constructors.

// String declares a string field.
func String() *Rule { return &Rule{kind: KindString} }

// Int declares an integer field.
func Int() *Rule { return &Rule{kind: KindInt} }

// Number declares a floating-point field.
func Number() *Rule { return &Rule{kind: KindNumber} }

// Bool declares a boolean field.
func Bool() *Rule { return &Rule{kind: KindBool} }

// Date declares an ISO-8601 date-time string field.
func Date() *Rule { return &Rule{kind: KindDate} }

// UUID declares an RFC 4122 UUID string field.
func UUID() *Rule { return &Rule{kind: KindUUID} }

// Email declares an email-address string field.
func Email() *Rule { return &Rule{kind: KindEmail} }

// URL declares a URI string field.
func URL() *Rule { return &Rule{kind: KindURL} }

// Enum declares a field restricted to a fixed value set.
func Enum(values ...any) *Rule { return &Rule{kind: KindEnum, enum: values} }

// Object declares a nested object field. A nil Fields accepts any object
// (free-form).
func Object(fields Fields) *Rule { return &Rule{kind: KindObject, fields: fields} }

// Array declares an array field with a per-item rule. A nil item rule
// accepts any items.
func Array(items *Rule) *Rule { return &Rule{kind: KindArray, items: items} }

// Rule chainers.

// Required marks the field as mandatory.
func (r *Rule) Required() *Rule { r.required = true; return r }

// Default sets the value injected when the field is absent.
func (r *Rule) Default(v any) *Rule { r.hasDefault = true; r.def = v; return r }

// Min sets the numeric lower bound (inclusive).
func (r *Rule) Min(v float64) *Rule { r.min = &v; return r }

// Max sets the numeric upper bound (inclusive).
func (r *Rule) Max(v float64) *Rule { r.max = &v; return r }

// MinLen sets the minimum length for strings and arrays.
func (r *Rule) MinLen(n int) *Rule { r.minLen = &n; return r }

// MaxLen sets the maximum length for strings and arrays.
func (r *Rule) MaxLen(n int) *Rule { r.maxLen = &n; return r }

// Pattern constrains string values to an ECMA-262-compatible regexp.
func (r *Rule) Pattern(re string) *Rule { r.pattern = re; return r }

// Coerce permits lossless type coercion before validation ("3" becomes 3).
func (r *Rule) Coerce() *Rule { r.coerce = true; return r }

// Trim strips surrounding whitespace before validation, independent of the
// pipeline-wide sanitizer switch.
func (r *Rule) Trim() *Rule { r.trim = true; return r }

// Descriptor is a declarative specification of an expected input structure.
// Compiled once per canonical key, validated many times.
type Descriptor struct {
	fields       Fields
	allowUnknown bool
	stripUnknown bool

	keyOnce sync.Once
	key     string
}

// DescriptorOption configures descriptor-wide behavior.
type DescriptorOption func(*Descriptor)

// AllowUnknown accepts keys not declared in the descriptor.
func AllowUnknown() DescriptorOption {
	return func(d *Descriptor) { d.allowUnknown = true }
}

// StripUnknown removes undeclared keys from the validated output. Implies
// nothing about acceptance; combine with [AllowUnknown] to accept-and-drop.
func StripUnknown() DescriptorOption {
	return func(d *Descriptor) { d.stripUnknown = true }
}

// NewDescriptor builds a descriptor over the given fields.
func NewDescriptor(fields Fields, opts ...DescriptorOption) *Descriptor {
	d := &Descriptor{fields: fields}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CanonicalKey returns the stable cache key: the JSON serialization of the
// lowered schema document plus the coercion metadata. encoding/json writes
// map keys in sorted order, so equal descriptors produce equal keys
// regardless of construction order.
func (d *Descriptor) CanonicalKey() string {
	d.keyOnce.Do(func() {
		doc := map[string]any{
			"schema": d.schemaDoc(),
			"meta":   d.metaDoc(),
		}
		data, err := json.Marshal(doc)
		if err != nil {
			// The lowered document is built from plain maps and scalars;
			// marshaling cannot fail in practice.
			data = []byte("unkeyed")
		}
		d.key = string(data)
	})
	return d.key
}

// schemaDoc lowers the descriptor to a JSON Schema document.
func (d *Descriptor) schemaDoc() map[string]any {
	doc := map[string]any{
		"type":                 "object",
		"additionalProperties": d.allowUnknown,
	}

	if len(d.fields) == 0 {
		// Free-form object: unknown-key policy still applies.
		return doc
	}

	props := make(map[string]any, len(d.fields))
	var required []string
	for name, rule := range d.fields {
		props[name] = rule.schemaDoc()
		if rule.required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	doc["properties"] = props
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// schemaDoc lowers a single field rule.
func (r *Rule) schemaDoc() map[string]any {
	doc := make(map[string]any, 4)

	switch r.kind {
	case KindString:
		doc["type"] = "string"
	case KindInt:
		doc["type"] = "integer"
	case KindNumber:
		doc["type"] = "number"
	case KindBool:
		doc["type"] = "boolean"
	case KindDate:
		doc["type"] = "string"
		doc["format"] = "date-time"
	case KindUUID:
		doc["type"] = "string"
		doc["format"] = "uuid"
	case KindEmail:
		doc["type"] = "string"
		doc["format"] = "email"
	case KindURL:
		doc["type"] = "string"
		doc["format"] = "uri"
	case KindEnum:
		doc["enum"] = r.enum
	case KindObject:
		doc["type"] = "object"
		if len(r.fields) > 0 {
			props := make(map[string]any, len(r.fields))
			var required []string
			for name, rule := range r.fields {
				props[name] = rule.schemaDoc()
				if rule.required {
					required = append(required, name)
				}
			}
			sort.Strings(required)
			doc["properties"] = props
			if len(required) > 0 {
				doc["required"] = required
			}
		}
	case KindArray:
		doc["type"] = "array"
		if r.items != nil {
			doc["items"] = r.items.schemaDoc()
		}
		if r.minLen != nil {
			doc["minItems"] = *r.minLen
		}
		if r.maxLen != nil {
			doc["maxItems"] = *r.maxLen
		}
	}

	if r.kind == KindString || r.kind == KindDate || r.kind == KindUUID ||
		r.kind == KindEmail || r.kind == KindURL {
		if r.minLen != nil {
			doc["minLength"] = *r.minLen
		}
		if r.maxLen != nil {
			doc["maxLength"] = *r.maxLen
		}
		if r.pattern != "" {
			doc["pattern"] = r.pattern
		}
	}

	if r.kind == KindInt || r.kind == KindNumber {
		if r.min != nil {
			doc["minimum"] = *r.min
		}
		if r.max != nil {
			doc["maximum"] = *r.max
		}
	}

	return doc
}

// metaDoc captures the semantics the schema document cannot express:
// coercion, trimming, defaults, and the unknown-key output policy.
func (d *Descriptor) metaDoc() map[string]any {
	fields := make(map[string]any, len(d.fields))
	for name, rule := range d.fields {
		fields[name] = rule.metaDoc()
	}
	return map[string]any{
		"fields":       fields,
		"stripUnknown": d.stripUnknown,
	}
}

// metaDoc captures per-rule coercion metadata, recursively.
func (r *Rule) metaDoc() map[string]any {
	doc := map[string]any{
		"coerce": r.coerce,
		"trim":   r.trim,
	}
	if r.hasDefault {
		doc["default"] = r.def
	}
	if len(r.fields) > 0 {
		nested := make(map[string]any, len(r.fields))
		for name, rule := range r.fields {
			nested[name] = rule.metaDoc()
		}
		doc["fields"] = nested
	}
	if r.items != nil {
		doc["items"] = r.items.metaDoc()
	}
	return doc
}
