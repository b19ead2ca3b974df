// Package dataobj implements Data, the runtime guard around one
// field-equivalence class exported by crdgraph. A Data object enforces its
// own access discipline (Create: exclusive, Read: shared, Destroy:
// exclusive) and checks every caller's authorization token against a fixed
// access-rights table built at construction time, so taskexec never needs
// to double-lock on top of it.
package dataobj

import (
	"sync"

	"github.com/crddagt/taskgraph/crdgraph"
	"github.com/crddagt/taskgraph/vardata"
)

// Token is the opaque per-step authorization handle data objects validate
// access against. builder.GraphBuilder mints one per step at build time;
// zero is never a valid issued token.
type Token uint64

// state tracks where a Data object sits in its Create -> Read* -> Destroy
// lifecycle.
type state int

const (
	stateNotCreated state = iota
	stateCreated
	stateDestroyed
)

// Data is the token-checked guard for one data object. Its zero value is
// not usable; construct with New.
type Data struct {
	mu sync.RWMutex

	typeTag      crdgraph.TypeTag
	accessRights map[Token]crdgraph.Usage

	st    state
	value vardata.VarData
}

// New constructs a Data object of the given type, with accessRights mapping
// each authorized token to the single usage it may exercise (a token absent
// from the map is never authorized for anything).
func New(typeTag crdgraph.TypeTag, accessRights map[Token]crdgraph.Usage) *Data {
	rights := make(map[Token]crdgraph.Usage, len(accessRights))
	for tok, u := range accessRights {
		rights[tok] = u
	}
	return &Data{typeTag: typeTag, accessRights: rights, st: stateNotCreated}
}

// TypeTag returns the uniform type tag inherited from this data object's
// member fields.
func (d *Data) TypeTag() crdgraph.TypeTag { return d.typeTag }

func (d *Data) checkUsage(token Token, want crdgraph.Usage) error {
	got, ok := d.accessRights[token]
	if !ok || got != want {
		return ErrUnauthorizedAccess
	}
	return nil
}

// SetValue performs the Create access. Exclusive: holds the write lock for
// its duration. Fails with ErrUnauthorizedAccess if token is not this data
// object's Create token, or ErrAlreadyCreated if already created.
func (d *Data) SetValue(token Token, payload any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkUsage(token, crdgraph.Create); err != nil {
		return err
	}
	if d.st != stateNotCreated {
		return ErrAlreadyCreated
	}

	d.value.Reset()
	if err := vardata.SetAny(&d.value, payload); err != nil {
		return err
	}
	d.st = stateCreated
	return nil
}

// GetValue performs the Read access. Shared: holds the read lock for its
// duration, so concurrent readers never block each other. Fails with
// ErrUnauthorizedAccess if token is not this data object's Read token, or
// ErrDataNotInitialized if the value has not yet been created or has
// already been destroyed.
func (d *Data) GetValue(token Token) (vardata.VarData, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.checkUsage(token, crdgraph.Read); err != nil {
		return vardata.VarData{}, err
	}
	if d.st != stateCreated {
		return vardata.VarData{}, ErrDataNotInitialized
	}
	return d.value, nil
}

// RemoveValue performs the Destroy access. Exclusive: holds the write lock
// for its duration. Fails with ErrUnauthorizedAccess if token is not this
// data object's Destroy token, ErrDataNotInitialized if never created, or
// ErrAlreadyDestroyed if already destroyed.
func (d *Data) RemoveValue(token Token) (vardata.VarData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkUsage(token, crdgraph.Destroy); err != nil {
		return vardata.VarData{}, err
	}
	switch d.st {
	case stateNotCreated:
		return vardata.VarData{}, ErrDataNotInitialized
	case stateDestroyed:
		return vardata.VarData{}, ErrAlreadyDestroyed
	}

	out := d.value
	d.value.Reset()
	d.st = stateDestroyed
	return out, nil
}
