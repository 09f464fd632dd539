package pklmem

import (
	"slices"
	"strings"
)

const prettyWidth = 80

// Pretty returns a multi-line rendering of x.
// Containers which do not fit on one line are broken up, one element per line.
func Pretty(x Value) string {
	r := renderer{sb: &strings.Builder{}, pretty: true}
	r.value(x)
	return r.sb.String()
}

func render(x Value) string {
	r := renderer{sb: &strings.Builder{}}
	r.value(x)
	return r.sb.String()
}

type renderer struct {
	sb     *strings.Builder
	path   []any
	pretty bool
	depth  int
}

func (r *renderer) value(x Value) {
	switch x := x.(type) {
	case nil:
		r.sb.WriteString("<nil>")
	case Tuple:
		r.seq(x, "(", ")", len(x), func(i int) { r.value(x[i]) }, len(x) == 1)
	case *List:
		if !r.enter(x) {
			r.sb.WriteString("[...]")
			return
		}
		defer r.leave()
		r.seq(x, "[", "]", len(x.items), func(i int) { r.value(x.items[i]) }, false)
	case *Dict:
		if !r.enter(x) {
			r.sb.WriteString("{...}")
			return
		}
		defer r.leave()
		r.seq(x, "{", "}", len(x.keys), func(i int) {
			r.value(x.keys[i])
			r.sb.WriteString(": ")
			r.value(x.vals[i])
		}, false)
	case *Set:
		name := "set"
		if x.frozen {
			name = "frozenset"
		}
		if !r.enter(x) {
			r.sb.WriteString(name + "(...)")
			return
		}
		defer r.leave()
		if len(x.items) == 0 {
			r.sb.WriteString(name + "()")
			return
		}
		items := slices.Clone(x.items)
		slices.SortFunc(items, Compare)
		if x.frozen {
			r.sb.WriteString("frozenset(")
		}
		r.seq(x, "{", "}", len(items), func(i int) { r.value(items[i]) }, false)
		if x.frozen {
			r.sb.WriteString(")")
		}
	case *Object:
		r.object(x.Inst)
	case *Callable:
		if !r.enter(x.Inst) {
			r.sb.WriteString(x.Inst.RegistryKey() + "(...)")
			return
		}
		defer r.leave()
		r.sb.WriteString(x.Inst.RegistryKey())
		if args, ok := x.Args.(Tuple); ok {
			r.seq(x, "(", ")", len(args), func(i int) { r.value(args[i]) }, false)
		} else {
			r.sb.WriteString("(*")
			r.value(x.Args)
			r.sb.WriteString(")")
		}
	case *PersistentID:
		r.sb.WriteString("persistent_id(")
		r.value(x.PID)
		r.sb.WriteString(")")
	default:
		r.sb.WriteString(x.String())
	}
}

func (r *renderer) object(in *Instance) {
	if !r.enter(in) {
		r.sb.WriteString("<" + in.RegistryKey() + " ...>")
		return
	}
	defer r.leave()
	r.sb.WriteString("<")
	r.sb.WriteString(in.RegistryKey())
	if len(in.Args) > 0 {
		r.sb.WriteString(" args=")
		r.value(Tuple(in.Args))
	}
	if in.Kwargs != nil && in.Kwargs.Len() > 0 {
		r.sb.WriteString(" kwargs=")
		r.value(in.Kwargs)
	}
	if len(in.Fields) > 0 {
		names := in.FieldNames()
		r.sb.WriteString(" fields=")
		r.seq(nil, "{", "}", len(names), func(i int) {
			r.sb.WriteString(names[i])
			r.sb.WriteString(": ")
			r.value(in.Fields[names[i]])
		}, false)
	}
	r.sb.WriteString(">")
}

// seq writes n items between open and close.
// In pretty mode, items are placed on separate lines if the inline form is too wide.
func (r *renderer) seq(x Value, open, close string, n int, item func(i int), trailingComma bool) {
	multiline := false
	if r.pretty && n > 0 && x != nil {
		multiline = len(r.inline(x))+2*r.depth > prettyWidth
	}
	r.sb.WriteString(open)
	r.depth++
	for i := 0; i < n; i++ {
		if multiline {
			r.newline()
		} else if i > 0 {
			r.sb.WriteString(", ")
		}
		item(i)
		if multiline {
			r.sb.WriteString(",")
		}
	}
	r.depth--
	if multiline {
		r.newline()
	} else if trailingComma {
		r.sb.WriteString(",")
	}
	r.sb.WriteString(close)
}

func (r *renderer) inline(x Value) string {
	// the container itself is already on the path
	r2 := renderer{sb: &strings.Builder{}, path: slices.Clone(r.path[:max(len(r.path)-1, 0)])}
	if _, ok := x.(Tuple); ok {
		r2.path = slices.Clone(r.path)
	}
	r2.value(x)
	return r2.sb.String()
}

func (r *renderer) newline() {
	r.sb.WriteString("\n")
	r.sb.WriteString(strings.Repeat("  ", r.depth))
}

// enter returns false if p is already being rendered
func (r *renderer) enter(p any) bool {
	if slices.Contains(r.path, p) {
		return false
	}
	r.path = append(r.path, p)
	return true
}

func (r *renderer) leave() {
	r.path = r.path[:len(r.path)-1]
}
