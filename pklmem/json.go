package pklmem

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

var ErrCycle = errors.New("value contains a reference cycle")

// ToJSON projects x onto JSON.
// Dicts with only String keys become objects, other Dicts become lists of [key, value] pairs.
// Bytes are base64 encoded. Objects and Callables become objects tagged with "$class" or "$call".
func ToJSON(x Value) ([]byte, error) {
	var jp jsonProjector
	j, err := jp.project(x)
	if err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

type jsonProjector struct {
	path []any
}

func (jp *jsonProjector) project(x Value) (any, error) {
	switch x := x.(type) {
	case None:
		return nil, nil
	case Bool:
		return bool(x), nil
	case Int, UInt, ULong, Long:
		return json.Number(x.String()), nil
	case Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return x.String(), nil
		}
		return f, nil
	case String:
		return string(x), nil
	case Bytes:
		return []byte(x), nil
	case Tuple:
		return jp.seq(x)
	case *List:
		if err := jp.enter(x); err != nil {
			return nil, err
		}
		defer jp.leave()
		return jp.seq(x.items)
	case *Set:
		if err := jp.enter(x); err != nil {
			return nil, err
		}
		defer jp.leave()
		items := slices.Clone(x.items)
		slices.SortFunc(items, Compare)
		return jp.seq(items)
	case *Dict:
		if err := jp.enter(x); err != nil {
			return nil, err
		}
		defer jp.leave()
		return jp.dict(x)
	case *Object:
		return jp.instance("$class", x.Inst, nil)
	case *Callable:
		return jp.instance("$call", x.Inst, x.Args)
	case *PersistentID:
		pid, err := jp.project(x.PID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"$persistent_id": pid}, nil
	case Mark:
		return nil, ErrMarkInContainer
	default:
		return nil, fmt.Errorf("cannot project %T onto JSON", x)
	}
}

func (jp *jsonProjector) seq(xs []Value) (any, error) {
	ret := make([]any, len(xs))
	for i := range xs {
		j, err := jp.project(xs[i])
		if err != nil {
			return nil, err
		}
		ret[i] = j
	}
	return ret, nil
}

func (jp *jsonProjector) dict(d *Dict) (any, error) {
	allStrings := true
	for k := range d.All() {
		if _, ok := k.(String); !ok {
			allStrings = false
			break
		}
	}
	if allStrings {
		ret := make(map[string]any, d.Len())
		for k, v := range d.All() {
			j, err := jp.project(v)
			if err != nil {
				return nil, err
			}
			ret[string(k.(String))] = j
		}
		return ret, nil
	}
	ret := make([]any, 0, d.Len())
	for k, v := range d.All() {
		kj, err := jp.project(k)
		if err != nil {
			return nil, err
		}
		vj, err := jp.project(v)
		if err != nil {
			return nil, err
		}
		ret = append(ret, []any{kj, vj})
	}
	return ret, nil
}

func (jp *jsonProjector) instance(tag string, in *Instance, args Value) (any, error) {
	if err := jp.enter(in); err != nil {
		return nil, err
	}
	defer jp.leave()
	ret := map[string]any{tag: in.RegistryKey()}
	if args != nil {
		j, err := jp.project(args)
		if err != nil {
			return nil, err
		}
		ret["args"] = j
	} else if len(in.Args) > 0 {
		j, err := jp.seq(in.Args)
		if err != nil {
			return nil, err
		}
		ret["args"] = j
	}
	if in.Kwargs != nil {
		j, err := jp.project(in.Kwargs)
		if err != nil {
			return nil, err
		}
		ret["kwargs"] = j
	}
	if len(in.Fields) > 0 {
		fields := make(map[string]any, len(in.Fields))
		for name, v := range in.Fields {
			j, err := jp.project(v)
			if err != nil {
				return nil, err
			}
			fields[name] = j
		}
		ret["fields"] = fields
	}
	return ret, nil
}

func (jp *jsonProjector) enter(p any) error {
	if slices.Contains(jp.path, p) {
		return ErrCycle
	}
	jp.path = append(jp.path, p)
	return nil
}

func (jp *jsonProjector) leave() {
	jp.path = jp.path[:len(jp.path)-1]
}
