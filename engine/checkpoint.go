package engine

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/vercel-labs/just-bash/vfs"
)

// checkpointDoc is the CBOR-encoded snapshot format: an additive,
// never-required-by-Exec persistence feature. It captures the filesystem
// tree plus the base environment frame, the same way a long-lived session
// bundles its env and cwd alongside its live state.
type checkpointDoc struct {
	Version int               `cbor:"version"`
	Entries []checkpointEntry `cbor:"entries"`
	Env     map[string]string `cbor:"env"`
	CWD     string            `cbor:"cwd"`
}

type checkpointEntry struct {
	Path    string `cbor:"path"`
	Kind    uint8  `cbor:"kind"` // 0=file, 1=dir, 2=symlink
	Content []byte `cbor:"content,omitempty"`
	Target  string `cbor:"target,omitempty"` // symlink target
}

const (
	entryFile uint8 = iota
	entryDir
	entrySymlink
)

const checkpointVersion = 1

// Checkpoint snapshots the engine's filesystem and base environment as
// CBOR, so a caller can persist it and later rebuild an equivalent engine
// with Restore. This always captures a flat file/dir/symlink snapshot
// regardless of the underlying vfs.FS implementation (Overlay/Mountable/
// ReadOnlyHost structure is not preserved, only its current resolved
// contents).
func (e *Engine) Checkpoint() ([]byte, error) {
	paths := e.fs.AllPaths()
	doc := checkpointDoc{
		Version: checkpointVersion,
		Entries: make([]checkpointEntry, 0, len(paths)),
		Env:     e.baseEnv,
		CWD:     e.baseCWD,
	}
	for _, p := range paths {
		// Stat follows symlinks, so links are detected through Readlink.
		if target, lerr := e.fs.Readlink(p); lerr == nil {
			doc.Entries = append(doc.Entries, checkpointEntry{Path: p, Kind: entrySymlink, Target: target})
			continue
		}
		fi, err := e.fs.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("engine: checkpoint: stat %s: %w", p, err)
		}
		switch {
		case fi.Mode.IsSymlink():
			target, err := e.fs.Readlink(p)
			if err != nil {
				return nil, fmt.Errorf("engine: checkpoint: readlink %s: %w", p, err)
			}
			doc.Entries = append(doc.Entries, checkpointEntry{Path: p, Kind: entrySymlink, Target: target})
		case fi.Mode.IsDir():
			doc.Entries = append(doc.Entries, checkpointEntry{Path: p, Kind: entryDir})
		default:
			content, err := e.fs.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("engine: checkpoint: read %s: %w", p, err)
			}
			doc.Entries = append(doc.Entries, checkpointEntry{Path: p, Kind: entryFile, Content: content})
		}
	}

	out, err := cbor.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("engine: checkpoint: encode: %w", err)
	}
	return out, nil
}

// Restore rebuilds the engine's filesystem and base environment from data
// produced by Checkpoint, replacing whatever the engine currently holds.
// The rebuilt filesystem is always a fresh InMemory tree; any FS override
// passed at New() time is discarded.
func (e *Engine) Restore(data []byte) error {
	var doc checkpointDoc
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("engine: restore: decode: %w", err)
	}
	if doc.Version != checkpointVersion {
		return fmt.Errorf("engine: restore: unsupported checkpoint version %d", doc.Version)
	}

	fresh := vfs.NewInMemory()
	for _, ent := range doc.Entries {
		switch ent.Kind {
		case entryDir:
			if err := fresh.Mkdir(ent.Path, true); err != nil {
				return fmt.Errorf("engine: restore: mkdir %s: %w", ent.Path, err)
			}
		case entryFile:
			dir, _ := vfs.SplitDirBase(ent.Path)
			if err := fresh.Mkdir(dir, true); err != nil {
				return fmt.Errorf("engine: restore: mkdir %s: %w", dir, err)
			}
			if err := fresh.WriteFile(ent.Path, ent.Content, vfs.DefaultFileMode); err != nil {
				return fmt.Errorf("engine: restore: write %s: %w", ent.Path, err)
			}
		case entrySymlink:
			dir, _ := vfs.SplitDirBase(ent.Path)
			if err := fresh.Mkdir(dir, true); err != nil {
				return fmt.Errorf("engine: restore: mkdir %s: %w", dir, err)
			}
			if err := fresh.Symlink(ent.Target, ent.Path); err != nil {
				return fmt.Errorf("engine: restore: symlink %s: %w", ent.Path, err)
			}
		default:
			return fmt.Errorf("engine: restore: unknown entry kind %d for %s", ent.Kind, ent.Path)
		}
	}

	e.fs = fresh
	e.baseEnv = doc.Env
	e.baseCWD = doc.CWD
	return nil
}
