// Package vardata provides VarData, a type-erased, value-semantic container
// for a single optional value of any concrete type, shared by copy.
//
// Grounded on the teacher's core.Vertex.Metadata, which holds a
// map[string]interface{} shared (not deep-copied) across graph clones;
// VarData generalizes that single-field-per-type-erased-value contract to
// Go generics with explicit empty/has-type/emplace/as/try-as/release
// operations, since the teacher never needed more than "bag of values".
package vardata

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrVarDataEmpty is returned by As/Get/Release when the container holds no
// value.
var ErrVarDataEmpty = errors.New("vardata: container is empty")

// ErrVarDataTypeMismatch is returned by As/Get/Release when the stored
// type does not match the requested type.
var ErrVarDataTypeMismatch = errors.New("vardata: stored type does not match requested type")

// payload is the shared, reference-counted-by-pointer-semantics box behind
// every VarData copy. Copies of a VarData share the same *payload, which is
// what makes VarData's copy semantics "share the underlying object". value
// always holds a pointer to the stored value (e.g. *int, *point) rather than
// the value itself, so Get can hand out that same pointer to callers instead
// of a copy.
type payload struct {
	mu    sync.RWMutex
	typ   reflect.Type
	value any
}

// VarData is a type-erased, value-semantic box for a single value.
// The zero value is empty and ready to use. Copying a VarData (`b := a`)
// shares the same underlying payload between a and b: concurrent reads and
// copies of that shared payload are safe without external synchronization;
// concurrent mutation through one instance while another reads the same
// payload is the caller's responsibility to avoid (see package doc of
// dataobj for how the runtime honors this for Create/Read/Destroy access).
type VarData struct {
	p *payload
}

// Empty reports whether the container holds no value.
func (v VarData) Empty() bool {
	return v.p == nil || v.p.typ == nil
}

// Type returns the reflect.Type of the stored value, or nil if empty.
func (v VarData) Type() reflect.Type {
	if v.p == nil {
		return nil
	}
	v.p.mu.RLock()
	defer v.p.mu.RUnlock()
	return v.p.typ
}

// HasType reports whether the container currently holds a value of type T.
func HasType[T any](v VarData) bool {
	if v.Empty() {
		return false
	}
	var zero T
	return v.Type() == reflect.TypeOf(zero) || v.Type() == reflect.TypeOf(&zero).Elem()
}

// forbiddenType reports whether T is void (struct{}), a pointer/reference
// type, or an array type — all forbidden payloads per the VarData contract.
func forbiddenType[T any]() error {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		// nil reflect.Type happens for interface types and untyped nils;
		// treat as forbidden since VarData requires a concrete, storable type.
		return fmt.Errorf("vardata: type %T is not instantiable (nil or interface)", zero)
	}
	switch t.Kind() {
	case reflect.Array:
		return fmt.Errorf("vardata: array types are forbidden (%s)", t)
	case reflect.Ptr, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Errorf("vardata: reference type %s is forbidden", t)
	case reflect.Struct:
		if t.NumField() == 0 {
			return fmt.Errorf("vardata: void type struct{} is forbidden")
		}
	}
	return nil
}

// Emplace constructs a new value of type T in place from args via the
// supplied constructor and stores it, replacing any previous value.
func Emplace[T any](v *VarData, construct func() T) error {
	if err := forbiddenType[T](); err != nil {
		return err
	}
	value := construct()
	v.p = &payload{typ: reflect.TypeOf(value), value: &value}
	return nil
}

// Set stores value, replacing any previous content.
func Set[T any](v *VarData, value T) error {
	if err := forbiddenType[T](); err != nil {
		return err
	}
	v.p = &payload{typ: reflect.TypeOf(value), value: &value}
	return nil
}

// forbiddenDynamicType mirrors forbiddenType's rules but works from an
// already-obtained reflect.Type, for callers (dataobj.Data.SetValue) that
// only have a type-erased any and can't spell a type parameter for Set.
func forbiddenDynamicType(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("vardata: value is an untyped nil or nil interface, not instantiable")
	}
	switch t.Kind() {
	case reflect.Array:
		return fmt.Errorf("vardata: array types are forbidden (%s)", t)
	case reflect.Ptr, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Errorf("vardata: reference type %s is forbidden", t)
	case reflect.Struct:
		if t.NumField() == 0 {
			return fmt.Errorf("vardata: void type struct{} is forbidden")
		}
	}
	return nil
}

// SetAny stores value (whose concrete dynamic type is determined via
// reflection rather than a type parameter), replacing any previous content.
// Use Set when T is known at the call site; SetAny exists for type-erased
// callers like dataobj.Data, which only ever holds an any.
func SetAny(v *VarData, value any) error {
	t := reflect.TypeOf(value)
	if err := forbiddenDynamicType(t); err != nil {
		return err
	}
	// reflect.New(t) gives an addressable *T (T = t) to copy value into,
	// mirroring Set/Emplace's "value field holds a pointer" storage so Get
	// can later hand out that same pointer rather than a type-asserted copy.
	ptr := reflect.New(t)
	ptr.Elem().Set(reflect.ValueOf(value))
	v.p = &payload{typ: t, value: ptr.Interface()}
	return nil
}

// As returns a copy of the stored value as T, failing with ErrVarDataEmpty
// or ErrVarDataTypeMismatch.
func As[T any](v VarData) (T, error) {
	var zero T
	if v.Empty() {
		return zero, ErrVarDataEmpty
	}
	v.p.mu.RLock()
	defer v.p.mu.RUnlock()
	ptr, ok := v.p.value.(*T)
	if !ok {
		return zero, fmt.Errorf("%w: stored %s, requested %T", ErrVarDataTypeMismatch, v.p.typ, zero)
	}
	return *ptr, nil
}

// TryAs returns the stored value as T, or (zero, false) on any mismatch —
// never an error.
func TryAs[T any](v VarData) (T, bool) {
	val, err := As[T](v)
	return val, err == nil
}

// Get returns the pointer actually backing the stored value of type T, the
// same pointer every other copy of this VarData sees — mutating *p mutates
// what As and every other holder of this VarData observes next, with no
// copy in between. Fails the same way As does.
func Get[T any](v VarData) (*T, error) {
	if v.Empty() {
		return nil, ErrVarDataEmpty
	}
	v.p.mu.RLock()
	defer v.p.mu.RUnlock()
	ptr, ok := v.p.value.(*T)
	if !ok {
		var zero T
		return nil, fmt.Errorf("%w: stored %s, requested %T", ErrVarDataTypeMismatch, v.p.typ, zero)
	}
	return ptr, nil
}

// Release transfers the stored value of type T out of v and empties v on a
// match. On a type mismatch or empty container, v is left untouched.
func Release[T any](v *VarData) (T, error) {
	var zero T
	if v.Empty() {
		return zero, ErrVarDataEmpty
	}
	v.p.mu.Lock()
	ptr, ok := v.p.value.(*T)
	v.p.mu.Unlock()
	if !ok {
		return zero, fmt.Errorf("%w: stored %s, requested %T", ErrVarDataTypeMismatch, v.p.typ, zero)
	}
	val := *ptr
	v.p = nil
	return val, nil
}

// Reset empties the container. Other copies sharing the same payload are
// unaffected (Reset only clears this VarData's own reference).
func (v *VarData) Reset() {
	v.p = nil
}
