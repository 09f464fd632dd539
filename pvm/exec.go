package pvm

import (
	"fmt"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"ricklepick.dev/ricklepick"
	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/spec"
)

// exec applies the stack effect of a decoded instruction
func (m *Machine) exec(in Instr) error {
	switch in.Op {
	case spec.Mark:
		return m.push(pklmem.Mark{})
	case spec.Pop:
		return m.drop()
	case spec.PopMark:
		_, err := m.popMark()
		return err
	case spec.Dup:
		x, err := m.peek()
		if err != nil {
			return err
		}
		return m.push(x)

	// literals
	case spec.Int, spec.BinInt, spec.BinInt1, spec.BinInt2, spec.Long, spec.Long1, spec.Long4,
		spec.Float, spec.BinFloat,
		spec.String, spec.BinString, spec.ShortBinString,
		spec.Unicode, spec.ShortBinUnicode, spec.BinUnicode, spec.BinUnicode8,
		spec.BinBytes, spec.ShortBinBytes, spec.BinBytes8, spec.ByteArray8:
		return m.push(in.Arg)
	case spec.None:
		return m.push(pklmem.None{})
	case spec.NewTrue:
		return m.push(pklmem.True)
	case spec.NewFalse:
		return m.push(pklmem.False)

	// lists
	case spec.EmptyList:
		return m.push(pklmem.NewList())
	case spec.Append:
		x, err := m.pop()
		if err != nil {
			return err
		}
		l, err := peekAs[*pklmem.List](m, "list")
		if err != nil {
			return err
		}
		return l.Append(x)
	case spec.Appends:
		xs, err := m.popMark()
		if err != nil {
			return err
		}
		l, err := peekAs[*pklmem.List](m, "list")
		if err != nil {
			return err
		}
		return l.Append(xs...)
	case spec.List:
		xs, err := m.popMark()
		if err != nil {
			return err
		}
		return m.push(pklmem.NewList(xs...))

	// tuples
	case spec.EmptyTuple:
		return m.push(pklmem.NewTuple())
	case spec.Tuple:
		xs, err := m.popMark()
		if err != nil {
			return err
		}
		return m.push(pklmem.NewTuple(xs...))
	case spec.Tuple1, spec.Tuple2, spec.Tuple3:
		n := int(in.Op-spec.Tuple1) + 1
		xs := make([]pklmem.Value, n)
		for i := n - 1; i >= 0; i-- {
			x, err := m.pop()
			if err != nil {
				return err
			}
			xs[i] = x
		}
		return m.push(pklmem.NewTuple(xs...))

	// dicts
	case spec.EmptyDict:
		return m.push(pklmem.NewDict())
	case spec.Dict:
		xs, err := m.popMark()
		if err != nil {
			return err
		}
		d := pklmem.NewDict()
		if err := setItems(d, xs); err != nil {
			return err
		}
		return m.push(d)
	case spec.SetItem:
		v, err := m.pop()
		if err != nil {
			return err
		}
		k, err := m.pop()
		if err != nil {
			return err
		}
		d, err := peekAs[*pklmem.Dict](m, "dict")
		if err != nil {
			return err
		}
		return d.Set(k, v)
	case spec.SetItems:
		xs, err := m.popMark()
		if err != nil {
			return err
		}
		d, err := peekAs[*pklmem.Dict](m, "dict")
		if err != nil {
			return err
		}
		return setItems(d, xs)

	// sets
	case spec.EmptySet:
		return m.push(pklmem.NewSet())
	case spec.AddItems:
		xs, err := m.popMark()
		if err != nil {
			return err
		}
		s, err := peekAs[*pklmem.Set](m, "set")
		if err != nil {
			return err
		}
		if s.Frozen() {
			return mismatch("set", s)
		}
		for _, x := range xs {
			if err := s.Add(x); err != nil {
				return err
			}
		}
		return nil
	case spec.FrozenSet:
		xs, err := m.popMark()
		if err != nil {
			return err
		}
		return m.push(pklmem.NewFrozenSet(xs...))

	// memo
	case spec.Get, spec.BinGet, spec.LongBinGet:
		i, err := memoIndex(in.Arg)
		if err != nil {
			return err
		}
		x, err := m.memo.get(i)
		if err != nil {
			return err
		}
		return m.push(x)
	case spec.Put, spec.BinPut, spec.LongBinPut:
		i, err := memoIndex(in.Arg)
		if err != nil {
			return err
		}
		x, err := m.peek()
		if err != nil {
			return err
		}
		return m.memo.put(i, x)
	case spec.Memoize:
		x, err := m.peek()
		if err != nil {
			return err
		}
		return m.memo.memoize(x)

	// objects
	case spec.Global:
		pair := in.Arg.(pklmem.Tuple)
		return m.push(m.global(string(pair[0].(pklmem.String)), string(pair[1].(pklmem.String))))
	case spec.StackGlobal:
		name, err := popAs[pklmem.String](m, "str")
		if err != nil {
			return err
		}
		module, err := popAs[pklmem.String](m, "str")
		if err != nil {
			return err
		}
		return m.push(pklmem.NewObject(string(module), string(name)))
	case spec.Reduce:
		args, err := m.pop()
		if err != nil {
			return err
		}
		cls, err := popAs[*pklmem.Object](m, "global")
		if err != nil {
			return err
		}
		return m.reduce(cls.Inst, args)
	case spec.Inst:
		pair := in.Arg.(pklmem.Tuple)
		xs, err := m.popMark()
		if err != nil {
			return err
		}
		cls := m.global(string(pair[0].(pklmem.String)), string(pair[1].(pklmem.String)))
		return m.reduce(cls.Inst, pklmem.NewTuple(xs...))
	case spec.Obj:
		xs, err := m.popMark()
		if err != nil {
			return err
		}
		if len(xs) == 0 {
			return fmt.Errorf("%w: OBJ without a class", ErrStackUnderflow)
		}
		cls, ok := xs[0].(*pklmem.Object)
		if !ok {
			return mismatch("global", xs[0])
		}
		return m.reduce(cls.Inst, pklmem.NewTuple(xs[1:]...))
	case spec.NewObj:
		args, err := popAs[pklmem.Tuple](m, "tuple")
		if err != nil {
			return err
		}
		cls, err := popAs[*pklmem.Object](m, "global")
		if err != nil {
			return err
		}
		inst := cls.Inst.Clone()
		inst.SetArgs(args)
		return m.push(&pklmem.Object{Inst: inst})
	case spec.NewObjEx:
		kwargs, err := popAs[*pklmem.Dict](m, "dict")
		if err != nil {
			return err
		}
		args, err := popAs[pklmem.Tuple](m, "tuple")
		if err != nil {
			return err
		}
		cls, err := popAs[*pklmem.Object](m, "global")
		if err != nil {
			return err
		}
		inst := cls.Inst.Clone()
		inst.SetArgs(args)
		inst.SetKwargs(kwargs)
		return m.push(&pklmem.Object{Inst: inst})
	case spec.Build:
		state, err := m.pop()
		if err != nil {
			return err
		}
		target, err := m.peek()
		if err != nil {
			return err
		}
		inst, ok := pklmem.AsInstance(target)
		if !ok {
			return mismatch("instance", target)
		}
		return build(inst, state)

	case spec.PersID, spec.BinPersID:
		pid := in.Arg
		if in.Op == spec.BinPersID {
			var err error
			if pid, err = m.pop(); err != nil {
				return err
			}
		}
		return m.persistentLoad(pid)

	// framing
	case spec.Proto:
		v := uint8(in.Arg.(pklmem.UInt))
		if v > ricklepick.HighestProtocol {
			return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
		}
		m.version = v
		return nil
	case spec.Frame:
		return m.src.loadFrame(uint64(in.Arg.(pklmem.ULong)), m.limits.MaxFrameSize)

	case spec.Ext1, spec.Ext2, spec.Ext4, spec.NextBuffer, spec.ReadonlyBuffer:
		return fmt.Errorf("%w: %v", ErrUnimplementedOpcode, in.Op)
	}
	return fmt.Errorf("%w: %v", ErrUnimplementedOpcode, in.Op)
}

// reduce applies the extension registered for inst, or leaves a Callable placeholder.
func (m *Machine) reduce(inst *pklmem.Instance, args pklmem.Value) error {
	key := inst.RegistryKey()
	t, ok := m.registry.Lookup(key)
	if !ok {
		logctx.Debug(m.ctx, "unresolved reduce", zap.String("global", key))
		return m.push(pklmem.NewCallable(inst.Clone(), args))
	}
	x, err := t(m.ctx, args)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExtensionFailed, key, err)
	}
	if x == nil {
		x = pklmem.None{}
	}
	return m.push(x)
}

func (m *Machine) persistentLoad(pid pklmem.Value) error {
	if m.persistent == nil {
		return m.push(pklmem.NewPersistentID(pid))
	}
	x, err := m.persistent(m.ctx, pid)
	if err != nil {
		return fmt.Errorf("%w: persistent_load: %w", ErrExtensionFailed, err)
	}
	if x == nil {
		x = pklmem.None{}
	}
	return m.push(x)
}

// global resolves the argument of GLOBAL or INST.
// Streams below protocol 3 name some builtins by their old module names.
func (m *Machine) global(module, name string) *pklmem.Object {
	if m.version < 3 {
		if to, ok := compatNames[[2]string{module, name}]; ok {
			module, name = to[0], to[1]
		} else if to, ok := compatModules[module]; ok {
			module = to
		}
	}
	return pklmem.NewObject(module, name)
}

var compatModules = map[string]string{
	"__builtin__": "builtins",
	"copy_reg":    "copyreg",
	"Queue":       "queue",
	"cPickle":     "pickle",
	"cStringIO":   "io",
	"StringIO":    "io",
	"UserDict":    "collections",
	"UserList":    "collections",
	"UserString":  "collections",
}

var compatNames = map[[2]string][2]string{
	{"__builtin__", "xrange"}:     {"builtins", "range"},
	{"__builtin__", "unicode"}:    {"builtins", "str"},
	{"__builtin__", "basestring"}: {"builtins", "str"},
	{"__builtin__", "long"}:       {"builtins", "int"},
	{"__builtin__", "reduce"}:     {"functools", "reduce"},
	{"__builtin__", "intern"}:     {"sys", "intern"},
	{"itertools", "izip"}:         {"builtins", "zip"},
	{"itertools", "imap"}:         {"builtins", "map"},
	{"itertools", "ifilter"}:      {"builtins", "filter"},
}

// setItems stores alternating keys and values into d
func setItems(d *pklmem.Dict, xs []pklmem.Value) error {
	if len(xs)%2 != 0 {
		return fmt.Errorf("%w: odd number of items (%d) for a dict", ErrStackTypeMismatch, len(xs))
	}
	for i := 0; i < len(xs); i += 2 {
		if err := d.Set(xs[i], xs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// build merges state into inst.
// The state is a dict, or a pair of a dict and a dict of slots, either of which may be None.
func build(inst *pklmem.Instance, state pklmem.Value) error {
	switch x := state.(type) {
	case pklmem.None:
		return nil
	case *pklmem.Dict:
		return inst.SetFields(x)
	case pklmem.Tuple:
		if len(x) != 2 {
			return mismatch("state pair", x)
		}
		for _, part := range x {
			switch part := part.(type) {
			case pklmem.None:
			case *pklmem.Dict:
				if err := inst.SetFields(part); err != nil {
					return err
				}
			default:
				return mismatch("dict", part)
			}
		}
		return nil
	default:
		return mismatch("dict", state)
	}
}

// memoIndex converts the argument of a memo opcode to an index
func memoIndex(arg pklmem.Value) (uint64, error) {
	switch x := arg.(type) {
	case pklmem.UInt:
		return uint64(x), nil
	case pklmem.Int:
		if x >= 0 {
			return uint64(x), nil
		}
	case pklmem.Long:
		if n, ok := x.Int64(); ok && n >= 0 {
			return uint64(n), nil
		}
	}
	return 0, fmt.Errorf("%w: index %v", ErrMemoIndexOutOfRange, arg)
}
