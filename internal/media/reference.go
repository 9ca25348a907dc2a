// Package media resolves CMS media references into renderable URLs, alt text
// and dimensions.
package media

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags which arm of a Reference is populated.
type Kind int

// Reference kinds.
const (
	KindAbsent Kind = iota
	KindOpaqueID
	KindResolved
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindOpaqueID:
		return "opaque_id"
	case KindResolved:
		return "resolved"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Variant is a precomputed rendition of an asset.
type Variant struct {
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// Object is a media document that has been populated by the store.
type Object struct {
	ID      string             `json:"id,omitempty"`
	URL     string             `json:"url,omitempty"`
	Sizes   map[string]Variant `json:"sizes,omitempty"`
	Alt     string             `json:"alt,omitempty"`
	Caption string             `json:"caption,omitempty"`
	Width   *int               `json:"width,omitempty"`
	Height  *int               `json:"height,omitempty"`
}

// Reference is a media field as it appears on a document: nothing, an
// unpopulated ID, or the populated object. The zero value is Absent.
type Reference struct {
	kind Kind
	id   string
	obj  Object
}

// Absent returns an empty reference.
func Absent() Reference {
	return Reference{}
}

// OpaqueID returns a reference that only carries the related document ID.
func OpaqueID(id string) Reference {
	return Reference{kind: KindOpaqueID, id: id}
}

// Resolved returns a reference carrying the populated object.
func Resolved(obj Object) Reference {
	return Reference{kind: KindResolved, id: obj.ID, obj: obj}
}

// Kind reports which arm is populated.
func (r Reference) Kind() Kind {
	return r.kind
}

// ID returns the related document ID for OpaqueID and Resolved references.
func (r Reference) ID() string {
	return r.id
}

// Object returns a copy of the populated object. ok is false unless the
// reference is Resolved.
func (r Reference) Object() (Object, bool) {
	if r.kind != KindResolved {
		return Object{}, false
	}
	return r.obj.clone(), true
}

// Unresolve downgrades a Resolved reference to its OpaqueID form. Stores use
// it to honor a depth of zero.
func (r Reference) Unresolve() Reference {
	if r.kind == KindResolved && r.id != "" {
		return OpaqueID(r.id)
	}
	return r
}

// MarshalJSON encodes Absent as null, OpaqueID as a string and Resolved as an
// object, matching the CMS wire shape.
func (r Reference) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case KindAbsent:
		return []byte("null"), nil
	case KindOpaqueID:
		data, err := json.Marshal(r.id)
		if err != nil {
			return nil, fmt.Errorf("marshal media id: %w", err)
		}
		return data, nil
	case KindResolved:
		data, err := json.Marshal(r.obj)
		if err != nil {
			return nil, fmt.Errorf("marshal media object: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown media reference kind %s", r.kind)
	}
}

// UnmarshalJSON decodes the CMS wire shape into the tagged form.
func (r *Reference) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		*r = Absent()
		return nil
	case trimmed[0] == '"':
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return fmt.Errorf("decode media id: %w", err)
		}
		if id == "" {
			*r = Absent()
			return nil
		}
		*r = OpaqueID(id)
		return nil
	case trimmed[0] == '{':
		var obj Object
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return fmt.Errorf("decode media object: %w", err)
		}
		*r = Resolved(obj)
		return nil
	default:
		return fmt.Errorf("unsupported media reference %s", string(trimmed))
	}
}

func (o Object) clone() Object {
	cp := o
	if o.Sizes != nil {
		cp.Sizes = make(map[string]Variant, len(o.Sizes))
		for k, v := range o.Sizes {
			cp.Sizes[k] = v
		}
	}
	return cp
}
