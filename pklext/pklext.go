// Package pklext provides extensions reconstructing the builtin and standard library types
// which commonly appear in pickle streams.
package pklext

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/maps"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pvm"
)

var ErrBadArgs = errors.New("unexpected arguments")

// Defaults returns a new Registry holding every default extension.
func Defaults() *pvm.Registry {
	r := pvm.NewRegistry()
	for k, t := range defaults {
		r.RegisterKey(k, t)
	}
	return r
}

// Transforms returns the default extensions, keyed by global name.
func Transforms() map[string]pvm.Transform {
	return maps.Clone(defaults)
}

var defaults = map[string]pvm.Transform{
	"collections.OrderedDict": func(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
		xs, err := argList(args, 0, 1)
		if err != nil {
			return nil, err
		}
		if len(xs) == 0 {
			return pklmem.NewDict(), nil
		}
		return toDict(xs[0])
	},
	"builtins.dict": func(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
		xs, err := argList(args, 0, 1)
		if err != nil {
			return nil, err
		}
		if len(xs) == 0 {
			return pklmem.NewDict(), nil
		}
		return toDict(xs[0])
	},
	"builtins.list": func(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
		items, err := iterableArg(args)
		if err != nil {
			return nil, err
		}
		return pklmem.NewList(items...), nil
	},
	"builtins.tuple": func(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
		items, err := iterableArg(args)
		if err != nil {
			return nil, err
		}
		return pklmem.NewTuple(items...), nil
	},
	"builtins.set": func(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
		items, err := iterableArg(args)
		if err != nil {
			return nil, err
		}
		return pklmem.NewSet(items...), nil
	},
	"builtins.frozenset": func(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
		items, err := iterableArg(args)
		if err != nil {
			return nil, err
		}
		return pklmem.NewFrozenSet(items...), nil
	},
	"builtins.bytes":     toBytes,
	"builtins.bytearray": toBytes,
	"_codecs.encode": func(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
		xs, err := argList(args, 1, 2)
		if err != nil {
			return nil, err
		}
		text, ok := pklmem.AsString(xs[0])
		if !ok {
			return nil, fmt.Errorf("%w: _codecs.encode of %v", ErrBadArgs, xs[0].Kind())
		}
		enc := "utf-8"
		if len(xs) == 2 {
			if enc, ok = pklmem.AsString(xs[1]); !ok {
				return nil, fmt.Errorf("%w: encoding is %v", ErrBadArgs, xs[1].Kind())
			}
		}
		return encode(text, enc)
	},
	"copyreg._reconstructor": func(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
		xs, err := argList(args, 3, 3)
		if err != nil {
			return nil, err
		}
		cls, ok := pklmem.AsObject(xs[0])
		if !ok {
			return nil, fmt.Errorf("%w: class is %v", ErrBadArgs, xs[0].Kind())
		}
		obj := &pklmem.Object{Inst: cls.Inst.Clone()}
		if _, isNone := xs[2].(pklmem.None); !isNone {
			obj.Inst.SetArgs(pklmem.NewTuple(xs[2]))
		}
		return obj, nil
	},
	"copyreg.__newobj__": func(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
		xs, err := argList(args, 1, -1)
		if err != nil {
			return nil, err
		}
		cls, ok := pklmem.AsObject(xs[0])
		if !ok {
			return nil, fmt.Errorf("%w: class is %v", ErrBadArgs, xs[0].Kind())
		}
		obj := &pklmem.Object{Inst: cls.Inst.Clone()}
		obj.Inst.SetArgs(pklmem.NewTuple(xs[1:]...))
		return obj, nil
	},
}

func toBytes(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
	xs, err := argList(args, 0, 2)
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return pklmem.NewBytes(nil), nil
	}
	switch x := xs[0].(type) {
	case pklmem.Bytes:
		return pklmem.NewBytes(x), nil
	case pklmem.String:
		// protocol 2 spells bytearray(b) as bytearray(b.decode('latin-1'), 'latin-1')
		if len(xs) != 2 {
			return nil, fmt.Errorf("%w: str without an encoding", ErrBadArgs)
		}
		enc, ok := pklmem.AsString(xs[1])
		if !ok {
			return nil, fmt.Errorf("%w: encoding is %v", ErrBadArgs, xs[1].Kind())
		}
		return encode(string(x), enc)
	}
	items, ok := pklmem.Seq(xs[0])
	if !ok {
		return nil, fmt.Errorf("%w: bytes of %v", ErrBadArgs, xs[0].Kind())
	}
	out := make([]byte, len(items))
	for i, item := range items {
		n, ok := pklmem.AsLong(item)
		if !ok || n < 0 || n > 255 {
			return nil, fmt.Errorf("%w: byte value %v", ErrBadArgs, item)
		}
		out[i] = byte(n)
	}
	return pklmem.Bytes(out), nil
}

func encode(text, enc string) (pklmem.Value, error) {
	switch strings.ReplaceAll(strings.ToLower(enc), "_", "-") {
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		out := make([]byte, 0, len(text))
		for _, r := range text {
			if r > 0xff {
				return nil, fmt.Errorf("%w: %q is not latin-1", ErrBadArgs, r)
			}
			out = append(out, byte(r))
		}
		return pklmem.Bytes(out), nil
	case "ascii":
		for _, r := range text {
			if r >= 0x80 {
				return nil, fmt.Errorf("%w: %q is not ascii", ErrBadArgs, r)
			}
		}
		return pklmem.NewBytes([]byte(text)), nil
	case "utf-8", "utf8":
		return pklmem.NewBytes([]byte(text)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrBadArgs, enc)
	}
}

// argList returns the elements of an argument tuple, which must have between lo and hi elements.
// A negative hi is unbounded.
func argList(args pklmem.Value, lo, hi int) ([]pklmem.Value, error) {
	xs, ok := pklmem.AsTuple(args)
	if !ok {
		return nil, fmt.Errorf("%w: arguments are %v, not a tuple", ErrBadArgs, args.Kind())
	}
	if len(xs) < lo || (hi >= 0 && len(xs) > hi) {
		return nil, fmt.Errorf("%w: %d arguments", ErrBadArgs, len(xs))
	}
	return xs, nil
}

// iterableArg returns the items of the single optional iterable argument
func iterableArg(args pklmem.Value) ([]pklmem.Value, error) {
	xs, err := argList(args, 0, 1)
	if err != nil || len(xs) == 0 {
		return nil, err
	}
	switch x := xs[0].(type) {
	case *pklmem.Set:
		var out []pklmem.Value
		for item := range x.All() {
			out = append(out, item)
		}
		return out, nil
	case *pklmem.Dict:
		return x.Keys(), nil
	}
	items, ok := pklmem.Seq(xs[0])
	if !ok {
		return nil, fmt.Errorf("%w: %v is not iterable", ErrBadArgs, xs[0].Kind())
	}
	return append([]pklmem.Value{}, items...), nil
}

// toDict converts a dict or a sequence of pairs to a new Dict
func toDict(x pklmem.Value) (pklmem.Value, error) {
	out := pklmem.NewDict()
	if d, ok := pklmem.AsDict(x); ok {
		return out, out.Update(d)
	}
	pairs, ok := pklmem.Seq(x)
	if !ok {
		return nil, fmt.Errorf("%w: dict from %v", ErrBadArgs, x.Kind())
	}
	for _, p := range pairs {
		kv, ok := pklmem.Seq(p)
		if !ok || len(kv) != 2 {
			return nil, fmt.Errorf("%w: dict item %v is not a pair", ErrBadArgs, p)
		}
		if err := out.Set(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
