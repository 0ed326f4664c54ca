package session

import (
	"errors"
	"fmt"
)

// InstanceID is the stable arena index of an opened document instance
type InstanceID int

// Instance is one opened copy of an input document together with the pages
// it has been assigned to supply
type Instance struct {
	Doc    int
	Handle Handle
	claims map[int]struct{}
}

// Claimed reports whether page was assigned to this instance
func (in *Instance) Claimed(page int) bool {
	_, ok := in.claims[page]
	return ok
}

// ClaimCount returns how many pages this instance supplies
func (in *Instance) ClaimCount() int {
	return len(in.claims)
}

func (in *Instance) claim(page int) {
	in.claims[page] = struct{}{}
}

// Arena owns every opened instance for the lifetime of a session
type Arena struct {
	instances []*Instance
}

func (a *Arena) add(doc int, h Handle) InstanceID {
	a.instances = append(a.instances, &Instance{Doc: doc, Handle: h, claims: make(map[int]struct{})})
	return InstanceID(len(a.instances) - 1)
}

// Get returns the instance with the given id
func (a *Arena) Get(id InstanceID) (*Instance, error) {
	if id < 0 || int(id) >= len(a.instances) {
		return nil, fmt.Errorf("no document instance %d", id)
	}
	return a.instances[id], nil
}

func (a *Arena) Len() int {
	return len(a.instances)
}

// Close closes every instance and empties the arena
func (a *Arena) Close() error {
	var errs []error
	for _, in := range a.instances {
		if in.Handle != nil {
			if err := in.Handle.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	a.instances = nil
	return errors.Join(errs...)
}
