// Package objectid extracts storage object identifiers from content URLs.
package objectid

import (
	"regexp"
	"strings"

	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/model"
)

var anywhere = regexp.MustCompile(`(0x)?[0-9a-fA-F]{64}`)

// Resolve returns the object identifier referenced by ref. It tries, in
// order, the whole string, the last path segment, and the first identifier
// found anywhere in ref.
func Resolve(ref string) (model.ObjectID, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}

	if id, ok := model.NormalizeObjectID(ref); ok {
		return id, true
	}

	if seg := lastSegment(ref); seg != "" {
		if id, ok := model.NormalizeObjectID(seg); ok {
			return id, true
		}
	}

	if m := anywhere.FindString(ref); m != "" {
		return model.NormalizeObjectID(m)
	}
	return "", false
}

// MustResolve is Resolve returning E_OBJECT_ID_UNRESOLVED on failure.
func MustResolve(ref string) (model.ObjectID, error) {
	id, ok := Resolve(ref)
	if !ok {
		return "", errclass.ErrObjectIDUnresolved.WithMessagef("no object id in %q", ref)
	}
	return id, nil
}

// OfContent is the object id of stored content: the recorded id when
// present, otherwise the one resolved from its URL.
func OfContent(c model.ContentRef) (model.ObjectID, error) {
	if c.ObjectID != nil {
		return *c.ObjectID, nil
	}
	return MustResolve(c.URL)
}

// DisplayURL joins an aggregator base and id into the public content URL.
func DisplayURL(aggregatorBase string, id model.ObjectID) string {
	if !strings.HasSuffix(aggregatorBase, "/") {
		aggregatorBase += "/"
	}
	return aggregatorBase + id.String()
}

// lastSegment drops any query or fragment and returns the final non-empty
// path element.
func lastSegment(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimRight(ref, "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
