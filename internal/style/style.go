// Package style maps caller style keys to the fixed prompts sent to the
// generation backend.
package style

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// DefaultKey is used whenever a key is absent or unknown.
const DefaultKey = "urban"

var prompts = map[string]string{
	"urban":   "Turn the input photo into a bold urban-street cartoon illustration with clean inking, saturated colors, subtle halftones, soft shading, and a flat background. Keep identity and face intact, keep clothing silhouette similar. No text.",
	"comic":   "Turn the input photo into a retro comic-book illustration with vintage halftones, inked outlines and muted palette. Preserve identity and expressions. No text.",
	"cartoon": "Turn the input photo into a vibrant cartoon poster, high contrast, neon accents, crisp outlines. Preserve identity. No text.",
	"anime":   "Turn the input photo into an anime-style character with big expressive eyes, soft cel shading, and clean lineart. Preserve identity. No text.",
}

var order = []string{"urban", "comic", "cartoon", "anime"}

// Resolver looks up prompts. The zero value is not usable; use NewResolver.
type Resolver struct {
	defaultKey string
}

// NewResolver builds a resolver whose fallback is defaultKey. An unknown
// defaultKey falls back to DefaultKey.
func NewResolver(defaultKey string) *Resolver {
	r := &Resolver{}
	key := r.normalize(defaultKey)
	if _, ok := prompts[key]; !ok {
		key = DefaultKey
	}
	r.defaultKey = key
	return r
}

// Resolve returns the canonical key and its prompt. It never fails.
func (r *Resolver) Resolve(key string) (string, string) {
	k := r.normalize(key)
	if p, ok := prompts[k]; ok {
		return k, p
	}
	return r.defaultKey, prompts[r.defaultKey]
}

// Prompt is Resolve without the key.
func (r *Resolver) Prompt(key string) string {
	_, p := r.Resolve(key)
	return p
}

// DefaultKey reports the configured fallback style.
func (r *Resolver) DefaultKey() string {
	return r.defaultKey
}

// Keys lists the known styles.
func Keys() []string {
	return append([]string(nil), order...)
}

// Casers carry state, so each lookup gets its own.
func (r *Resolver) normalize(key string) string {
	key = width.Fold.String(strings.TrimSpace(key))
	return cases.Fold().String(key)
}
