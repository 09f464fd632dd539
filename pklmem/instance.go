package pklmem

import (
	"errors"
	"slices"

	"golang.org/x/exp/maps"
)

// Instance is the reconstruction of a foreign object.
// It is created by global name resolution, given constructor arguments by NEWOBJ,
// and given field state by BUILD.
type Instance struct {
	Module string
	Name   string
	// Fields is populated by BUILD
	Fields map[string]Value
	// Args is populated by NEWOBJ
	Args []Value
	// Kwargs is only populated by NEWOBJ_EX
	Kwargs *Dict
}

func NewInstance(module, name string) *Instance {
	return &Instance{
		Module: module,
		Name:   name,
		Fields: make(map[string]Value),
	}
}

// RegistryKey returns the name used to look up extensions for this instance.
func (in *Instance) RegistryKey() string {
	return in.Module + "." + in.Name
}

// SetFields merges state into the instance's fields.
// No fields are changed if any key of state is not a String.
func (in *Instance) SetFields(state *Dict) error {
	for k := range state.All() {
		if _, ok := k.(String); !ok {
			return ErrFieldKey{Key: k}
		}
	}
	if in.Fields == nil {
		in.Fields = make(map[string]Value, state.Len())
	}
	for k, v := range state.All() {
		in.Fields[string(k.(String))] = v
	}
	return nil
}

// Clone returns a shallow copy of the instance.
// Field and argument values are shared, the containers holding them are not.
func (in *Instance) Clone() *Instance {
	out := &Instance{
		Module: in.Module,
		Name:   in.Name,
		Fields: make(map[string]Value, len(in.Fields)),
		Kwargs: in.Kwargs,
	}
	for k, v := range in.Fields {
		out.Fields[k] = v
	}
	if in.Args != nil {
		out.Args = append([]Value{}, in.Args...)
	}
	return out
}

func (in *Instance) SetArgs(args Tuple) {
	in.Args = append([]Value{}, args...)
}

func (in *Instance) SetKwargs(kw *Dict) {
	in.Kwargs = kw
}

func (in *Instance) Field(name string) (Value, bool) {
	v, ok := in.Fields[name]
	return v, ok
}

// FieldNames returns the names of the fields in sorted order
func (in *Instance) FieldNames() []string {
	names := maps.Keys(in.Fields)
	slices.Sort(names)
	return names
}

func (in *Instance) String() string {
	return render(&Object{Inst: in})
}

// Object is a reconstructed (or partially reconstructed) foreign object.
type Object struct {
	Inst *Instance
}

func NewObject(module, name string) *Object {
	return &Object{Inst: NewInstance(module, name)}
}

func (*Object) isValue()   {}
func (*Object) Kind() Kind { return KindObject }

func (o *Object) String() string {
	return render(o)
}

// Callable is a reconstruction request that no extension satisfied.
// It records what would have been called, and with what.
type Callable struct {
	Inst *Instance
	Args Value
}

func NewCallable(inst *Instance, args Value) *Callable {
	if inst == nil || args == nil {
		panic(errors.New("pklmem: NewCallable with nil operand"))
	}
	return &Callable{Inst: inst, Args: args}
}

func (*Callable) isValue()   {}
func (*Callable) Kind() Kind { return KindCallable }

func (c *Callable) String() string {
	return render(c)
}

// PersistentID is a reference to an object stored outside of the stream,
// left unresolved because no persistent loader was configured.
type PersistentID struct {
	PID Value
}

func NewPersistentID(pid Value) *PersistentID {
	return &PersistentID{PID: pid}
}

func (*PersistentID) isValue()   {}
func (*PersistentID) Kind() Kind { return KindPersistentID }

func (p *PersistentID) String() string {
	return render(p)
}
