package pkltorch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pvm"
)

// LoadLegacy decodes a checkpoint in the format written by torch.save before zip archives.
// The file is a sequence of pickles: the magic number, the protocol version, system info,
// the root object, and the list of storage keys.
// The storage contents follow, in key order, each as a little endian element count and the raw elements.
func LoadLegacy(ctx context.Context, r io.Reader, opts ...Option) (pklmem.Value, error) {
	cfg := newConfig(opts)
	br := bufio.NewReader(r)
	decode := func(what string, pl pvm.PersistentLoader) (pklmem.Value, error) {
		x, err := pvm.Decode(ctx, br, cfg.machineOptions(ctx, pl)...)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", what, err)
		}
		return x, nil
	}

	magic, err := decode("magic number", nil)
	if err != nil {
		return nil, err
	}
	if n, ok := pklmem.AsBigInt(magic); !ok || n.Cmp(legacyMagic) != 0 {
		return nil, fmt.Errorf("%w: magic number %v", ErrNotCheckpoint, magic)
	}
	proto, err := decode("protocol version", nil)
	if err != nil {
		return nil, err
	}
	if n, ok := pklmem.AsLong(proto); !ok || n != LegacyProtocol {
		return nil, fmt.Errorf("%w: protocol version %v", ErrNotCheckpoint, proto)
	}
	sysInfo, err := decode("system info", nil)
	if err != nil {
		return nil, err
	}
	if err := checkSysInfo(sysInfo); err != nil {
		return nil, err
	}
	logctx.Debug(ctx, "legacy checkpoint", zap.Stringer("sys_info", sysInfo))

	ls := &legacyStorages{objs: make(map[string]*legacyStorage)}
	root, err := decode("root object", ls.load)
	if err != nil {
		return nil, err
	}
	keysVal, err := decode("storage keys", nil)
	if err != nil {
		return nil, err
	}
	keys, ok := pklmem.Seq(keysVal)
	if !ok {
		return nil, fmt.Errorf("%w: storage keys are %v", ErrBadStorage, keysVal.Kind())
	}
	for _, kv := range keys {
		key, ok := pklmem.AsString(kv)
		if !ok {
			return nil, fmt.Errorf("%w: storage key %v", ErrBadStorage, kv)
		}
		st, ok := ls.objs[key]
		if !ok {
			return nil, fmt.Errorf("%w: storage %q is not referenced", ErrBadStorage, key)
		}
		data, err := readStorage(br, st.ref, cfg.skipData)
		if err != nil {
			return nil, fmt.Errorf("reading storage %q: %w", key, err)
		}
		if data != nil {
			st.obj.Inst.Fields["data"] = pklmem.Bytes(data)
		}
	}
	logctx.Info(ctx, "loaded legacy checkpoint", zap.Int("storages", len(keys)))
	return root, nil
}

// LoadLegacyBytes calls LoadLegacy on data.
func LoadLegacyBytes(ctx context.Context, data []byte, opts ...Option) (pklmem.Value, error) {
	return LoadLegacy(ctx, bytes.NewReader(data), opts...)
}

func checkSysInfo(x pklmem.Value) error {
	d, ok := pklmem.AsDict(x)
	if !ok {
		return fmt.Errorf("%w: system info is %v", ErrNotCheckpoint, x.Kind())
	}
	if v, ok := d.GetString("little_endian"); ok {
		if le, _ := pklmem.AsBool(v); !le {
			return fmt.Errorf("%w: big endian checkpoints are not supported", ErrNotCheckpoint)
		}
	}
	return nil
}

type legacyStorage struct {
	ref *storageRef
	obj *pklmem.Object
}

// legacyStorages creates storages for persistent ids.
// Their contents come after the root object, so data is filled in once it is read.
type legacyStorages struct {
	objs map[string]*legacyStorage
}

func (ls *legacyStorages) load(ctx context.Context, pid pklmem.Value) (pklmem.Value, error) {
	ref, err := parseStorageRef(pid)
	if err != nil {
		return nil, err
	}
	st, ok := ls.objs[ref.key]
	if !ok {
		st = &legacyStorage{ref: ref, obj: ref.newObject()}
		ls.objs[ref.key] = st
	}
	return ref.viewOf(st.obj)
}

// readStorage reads the element count and elements of one storage.
// If skip is true the elements are discarded and nil is returned.
func readStorage(r io.Reader, ref *storageRef, skip bool) ([]byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(hdr[:])
	if n != ref.numel {
		return nil, fmt.Errorf("%w: %d elements, want %d", ErrBadStorage, n, ref.numel)
	}
	size := int64(ref.size())
	if skip {
		if _, err := io.CopyN(io.Discard, r, size); err != nil {
			return nil, err
		}
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrBadStorage, len(data), size)
	}
	return data, nil
}
