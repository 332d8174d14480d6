package resolve

import (
	"github.com/go-logr/logr"

	"github.com/michalshavit1/salto/element"
)

type indexKey struct {
	kind       string
	naturalKey string
}

// Index maps (resource kind, natural key) to stable identifiers. Built once
// per fetch pass over the full reference universe, read-only while the
// resolution phase runs.
type Index struct {
	entries map[indexKey]element.ID
}

// BuildIndex indexes every element by kind and natural key. Duplicate
// natural keys within one kind resolve last-write-wins; that ambiguity is
// a documented property of natural keys, so it is surfaced as a diagnostic,
// not an error.
func BuildIndex(elems []*element.Element, log logr.Logger) *Index {
	idx := &Index{entries: make(map[indexKey]element.ID, len(elems))}
	for _, e := range elems {
		if e == nil {
			continue
		}
		k := indexKey{kind: e.Kind, naturalKey: e.NaturalKey}
		if prev, ok := idx.entries[k]; ok && prev != e.ID {
			log.V(1).Info("natural key collision, keeping later element",
				"kind", e.Kind, "naturalKey", e.NaturalKey, "previous", prev, "next", e.ID)
		}
		idx.entries[k] = e.ID
	}
	return idx
}

func (x *Index) Lookup(kind, naturalKey string) (element.ID, bool) {
	if x == nil {
		return "", false
	}
	id, ok := x.entries[indexKey{kind: kind, naturalKey: naturalKey}]
	return id, ok
}

func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}
