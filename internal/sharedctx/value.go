package sharedctx

import "encoding/json"

// ValueKind tags the variant held by a Value.
type ValueKind string

const (
	KindString     ValueKind = "string"
	KindStringList ValueKind = "string_list"
	KindBlob       ValueKind = "blob"
)

// Value is a tagged union for loosely-structured context entries
// (project info, research cache, knowledge base). Known shapes use the
// string/list variants; anything else rides along as an opaque JSON blob.
type Value struct {
	Kind ValueKind       `json:"kind"`
	Str  string          `json:"str,omitempty"`
	List []string        `json:"list,omitempty"`
	Blob json.RawMessage `json:"blob,omitempty"`
}

// StringValue wraps a string.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// ListValue wraps a list of strings.
func ListValue(items ...string) Value {
	return Value{Kind: KindStringList, List: append([]string(nil), items...)}
}

// BlobValue wraps raw JSON for unrecognized shapes.
func BlobValue(raw json.RawMessage) Value {
	return Value{Kind: KindBlob, Blob: append(json.RawMessage(nil), raw...)}
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	out := v
	out.List = append([]string(nil), v.List...)
	out.Blob = append(json.RawMessage(nil), v.Blob...)
	return out
}

// cloneValueMap deep-copies a map of values.
func cloneValueMap(in map[string]Value) map[string]Value {
	if in == nil {
		return nil
	}
	out := make(map[string]Value, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}
