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
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// emailValidator is the shared syntax checker used during canonicalization.
// go-playground/validator instances cache struct metadata and are safe for
// concurrent use.
var emailValidator = playground.New()

// sanitize deep-cleans an input structure before validation: string values
// and object keys are trimmed and HTML-escaped, arrays and nested objects
// are walked recursively, and fields declared as [Email] are canonicalized.
// Escaping is idempotent, so sanitizing twice equals sanitizing once.
func sanitize(input map[string]any, fields Fields) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		key := escapeHTML(strings.TrimSpace(k))
		var rule *Rule
		if fields != nil {
			rule = fields[k]
		}
		out[key] = sanitizeValue(v, rule)
	}
	return out
}

func sanitizeValue(v any, rule *Rule) any {
	switch value := v.(type) {
	case string:
		s := escapeHTML(strings.TrimSpace(value))
		if rule != nil && rule.kind == KindEmail {
			s = canonicalizeEmail(s)
		}
		return s
	case map[string]any:
		var nested Fields
		if rule != nil {
			nested = rule.fields
		}
		return sanitize(value, nested)
	case []any:
		var item *Rule
		if rule != nil {
			item = rule.items
		}
		out := make([]any, len(value))
		for i, elem := range value {
			out[i] = sanitizeValue(elem, item)
		}
		return out
	default:
		return v
	}
}

// knownEntities are the escape sequences escapeHTML itself produces. An
// ampersand opening one of these is left alone, which makes the escape
// idempotent.
var knownEntities = []string{"&amp;", "&lt;", "&gt;", "&quot;", "&#39;"}

// escapeHTML escapes the five HTML-significant characters without
// double-escaping already-escaped text.
func escapeHTML(s string) string {
	if !strings.ContainsAny(s, `<>&"'`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#39;")
		case '&':
			if startsEntity(s[i:]) {
				b.WriteByte('&')
			} else {
				b.WriteString("&amp;")
			}
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func startsEntity(s string) bool {
	for _, entity := range knownEntities {
		if strings.HasPrefix(s, entity) {
			return true
		}
	}
	return false
}

// tagStrippedDomains are providers where plus-addressing aliases the same
// mailbox, so the tag is dropped during canonicalization.
var tagStrippedDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
}

// canonicalizeEmail lowercases the address and strips "+tag" suffixes for
// providers known to alias them. Strings that are not syntactically valid
// addresses are returned unchanged; the schema reports those.
func canonicalizeEmail(s string) string {
	lowered := strings.ToLower(s)
	if emailValidator.Var(lowered, "email") != nil {
		return s
	}

	at := strings.LastIndex(lowered, "@")
	local, domain := lowered[:at], lowered[at+1:]
	if tagStrippedDomains[domain] {
		if plus := strings.Index(local, "+"); plus >= 0 {
			local = local[:plus]
		}
	}
	return local + "@" + domain
}
