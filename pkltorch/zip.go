package pkltorch

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pvm"
)

const rootName = "data.pkl"

// LoadZip decodes the checkpoint in a zip archive written by torch.save.
// The archive holds <prefix>/data.pkl and one <prefix>/data/<key> entry per storage.
func LoadZip(ctx context.Context, zr *zip.Reader, opts ...Option) (pklmem.Value, error) {
	cfg := newConfig(opts)
	root, prefix, err := findRoot(zr)
	if err != nil {
		return nil, err
	}
	logctx.Info(ctx, "loading torch archive", zap.String("prefix", prefix), zap.Int("entries", len(zr.File)))
	zs, err := newZipStorages(zr, prefix, cfg)
	if err != nil {
		return nil, err
	}
	f, err := root.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	x, err := pvm.Decode(ctx, bufio.NewReader(f), cfg.machineOptions(ctx, zs.load)...)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", root.Name, err)
	}
	logctx.Debug(ctx, "loaded torch archive", zap.Int("storages", zs.loaded))
	return x, nil
}

type File interface {
	io.ReaderAt
	Stat() (fs.FileInfo, error)
}

// LoadFromFile loads a checkpoint from f, which may be a zip archive or a legacy checkpoint.
func LoadFromFile(ctx context.Context, f File, opts ...Option) (pklmem.Value, error) {
	finfo, err := f.Stat()
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(f, finfo.Size())
	if errors.Is(err, zip.ErrFormat) {
		logctx.Debug(ctx, "not a zip archive, trying legacy format", zap.String("name", finfo.Name()))
		return LoadLegacy(ctx, io.NewSectionReader(f, 0, finfo.Size()), opts...)
	}
	if err != nil {
		return nil, err
	}
	return LoadZip(ctx, zr, opts...)
}

func findRoot(zr *zip.Reader) (*zip.File, string, error) {
	for _, f := range zr.File {
		if f.Name == rootName || strings.HasSuffix(f.Name, "/"+rootName) {
			return f, strings.TrimSuffix(f.Name, rootName), nil
		}
	}
	return nil, "", fmt.Errorf("%w: no %s in archive", ErrNotCheckpoint, rootName)
}

// zipStorages resolves persistent ids to storages read from archive entries.
type zipStorages struct {
	zr       *zip.Reader
	prefix   string
	skipData bool
	cache    *simplelru.LRU[string, *pklmem.Object]
	loaded   int
}

func newZipStorages(zr *zip.Reader, prefix string, cfg config) (*zipStorages, error) {
	cache, err := simplelru.NewLRU[string, *pklmem.Object](max(cfg.cacheSize, 1), nil)
	if err != nil {
		return nil, err
	}
	return &zipStorages{zr: zr, prefix: prefix, skipData: cfg.skipData, cache: cache}, nil
}

func (zs *zipStorages) load(ctx context.Context, pid pklmem.Value) (pklmem.Value, error) {
	ref, err := parseStorageRef(pid)
	if err != nil {
		return nil, err
	}
	if obj, ok := zs.cache.Get(ref.key); ok {
		return ref.viewOf(obj)
	}
	obj := ref.newObject()
	if !zs.skipData {
		data, err := zs.readEntry(ref)
		if err != nil {
			return nil, err
		}
		obj.Inst.Fields["data"] = pklmem.Bytes(data)
	}
	zs.cache.Add(ref.key, obj)
	zs.loaded++
	logctx.Debug(ctx, "loaded storage", zap.String("key", ref.key), zap.String("type", ref.cls.Name), zap.Uint64("numel", ref.numel))
	return ref.viewOf(obj)
}

func (zs *zipStorages) readEntry(ref *storageRef) ([]byte, error) {
	name := zs.prefix + "data/" + ref.key
	f, err := zs.zr.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: missing entry %s", ErrBadStorage, name)
		}
		return nil, err
	}
	defer f.Close()
	finfo, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if uint64(finfo.Size()) != ref.size() {
		return nil, fmt.Errorf("%w: entry %s is %d bytes, want %d", ErrBadStorage, name, finfo.Size(), ref.size())
	}
	// the entry header is not trusted for the allocation
	data, err := io.ReadAll(io.LimitReader(f, int64(ref.size())))
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) != ref.size() {
		return nil, fmt.Errorf("%w: entry %s has %d of %d bytes", ErrBadStorage, name, len(data), ref.size())
	}
	return data, nil
}
