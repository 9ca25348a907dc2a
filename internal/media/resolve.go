package media

import (
	"fmt"
	"sort"
	"strings"
)

// Dimensions holds the intrinsic size of an asset. Either side may be unknown.
type Dimensions struct {
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`
}

// ResolveURL returns the URL to render for ref. When variant is non-empty and
// the resolved object carries that variant with a URL, the variant wins;
// otherwise the primary URL is used. ok is false when nothing is renderable,
// including for Absent and OpaqueID references.
func ResolveURL(ref Reference, variant string) (string, bool) {
	switch ref.kind {
	case KindAbsent, KindOpaqueID:
		return "", false
	case KindResolved:
		if variant != "" {
			if v, ok := ref.obj.Sizes[variant]; ok && v.URL != "" {
				return v.URL, true
			}
		}
		if ref.obj.URL != "" {
			return ref.obj.URL, true
		}
		return "", false
	default:
		return "", false
	}
}

// ResolveAlt picks alt text in fixed order: alt, caption, fallback, "".
func ResolveAlt(ref Reference, fallback string) string {
	switch ref.kind {
	case KindResolved:
		if ref.obj.Alt != "" {
			return ref.obj.Alt
		}
		if ref.obj.Caption != "" {
			return ref.obj.Caption
		}
		return fallback
	case KindAbsent, KindOpaqueID:
		return fallback
	default:
		return fallback
	}
}

// ResolveDimensions returns whatever width/height the resolved object has.
func ResolveDimensions(ref Reference) Dimensions {
	switch ref.kind {
	case KindResolved:
		return Dimensions{Width: ref.obj.Width, Height: ref.obj.Height}
	case KindAbsent, KindOpaqueID:
		return Dimensions{}
	default:
		return Dimensions{}
	}
}

// ResolveSrcSet builds an HTML srcset from the variants that declare a width,
// narrowest first. Variants sharing a width are ordered by key.
func ResolveSrcSet(ref Reference) string {
	if ref.kind != KindResolved || len(ref.obj.Sizes) == 0 {
		return ""
	}
	type candidate struct {
		key   string
		url   string
		width int
	}
	candidates := make([]candidate, 0, len(ref.obj.Sizes))
	for key, v := range ref.obj.Sizes {
		if v.URL == "" || v.Width == nil || *v.Width <= 0 {
			continue
		}
		candidates = append(candidates, candidate{key: key, url: v.URL, width: *v.Width})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].width != candidates[j].width {
			return candidates[i].width < candidates[j].width
		}
		return candidates[i].key < candidates[j].key
	})
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, fmt.Sprintf("%s %dw", c.url, c.width))
	}
	return strings.Join(parts, ", ")
}
