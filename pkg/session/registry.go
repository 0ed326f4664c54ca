package session

import (
	tkerrors "github.com/BillGrim/pdftk-ext/pkg/errors"
)

// InputDocument is one declared input file
type InputDocument struct {
	Filename   string
	Password   string
	Handle     byte // 0 when no handle was given
	PageCount  int
	Authorized bool

	instances []InstanceID
}

// Opened reports whether at least one instance of the document is open
func (d *InputDocument) Opened() bool {
	return len(d.instances) > 0
}

// Instances returns the arena indices of the opened instances, in open order
func (d *InputDocument) Instances() []InstanceID {
	return append([]InstanceID(nil), d.instances...)
}

// Registry is the ordered collection of input documents
type Registry struct {
	docs     []*InputDocument
	byHandle map[byte]int
}

func newRegistry() *Registry {
	return &Registry{byHandle: make(map[byte]int)}
}

// Add registers a document and returns its index. Binding a handle twice fails.
func (r *Registry) Add(handle byte, filename, token string) (int, error) {
	if handle != 0 {
		if prev, ok := r.byHandle[handle]; ok {
			return 0, tkerrors.Newf(tkerrors.KindDuplicateHandle, token,
				"handle %c is already associated with %s", handle, r.docs[prev].Filename)
		}
	}
	r.docs = append(r.docs, &InputDocument{Filename: filename, Handle: handle, Authorized: true})
	idx := len(r.docs) - 1
	if handle != 0 {
		r.byHandle[handle] = idx
	}
	return idx, nil
}

// Lookup resolves a handle to a document index
func (r *Registry) Lookup(handle byte) (int, bool) {
	idx, ok := r.byHandle[handle]
	return idx, ok
}

// HasHandles reports whether any document was given a handle
func (r *Registry) HasHandles() bool {
	return len(r.byHandle) > 0
}

func (r *Registry) Len() int {
	return len(r.docs)
}

// Doc returns the document at index i
func (r *Registry) Doc(i int) *InputDocument {
	return r.docs[i]
}

func (r *Registry) reset() {
	r.docs = nil
	r.byHandle = make(map[byte]int)
}
