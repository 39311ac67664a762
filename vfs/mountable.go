package vfs

import (
	"sort"
	"strings"
	"sync"
)

// Mount binds a path prefix to an inner filesystem (GLOSSARY "Mount").
type Mount struct {
	Point string
	Inner FS
}

// Mountable layers an ordered list of mounts over a base VFS; the longest
// matching mount-point prefix wins and the inner path is the original
// minus that prefix.
type Mountable struct {
	Base FS

	mu     sync.RWMutex
	mounts []Mount // kept sorted longest-prefix-first
}

// NewMountable wraps base with no mounts initially.
func NewMountable(base FS) *Mountable {
	return &Mountable{Base: base}
}

// Mount atomically adds (or replaces) a mount point's routing entry.
func (m *Mountable) Mount(point string, inner FS) {
	point = ResolvePath("/", point)
	m.mu.Lock()
	defer m.mu.Unlock()
	filtered := m.mounts[:0:0]
	for _, mm := range m.mounts {
		if mm.Point != point {
			filtered = append(filtered, mm)
		}
	}
	filtered = append(filtered, Mount{Point: point, Inner: inner})
	sort.Slice(filtered, func(i, j int) bool { return len(filtered[i].Point) > len(filtered[j].Point) })
	m.mounts = filtered
}

// Unmount atomically removes a mount point's routing entry.
func (m *Mountable) Unmount(point string) {
	point = ResolvePath("/", point)
	m.mu.Lock()
	defer m.mu.Unlock()
	filtered := m.mounts[:0:0]
	for _, mm := range m.mounts {
		if mm.Point != point {
			filtered = append(filtered, mm)
		}
	}
	m.mounts = filtered
}

// route finds the mount (if any) whose point is a prefix of p, returning
// the inner FS and the path relative to that mount.
func (m *Mountable) route(p string) (FS, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mm := range m.mounts {
		if mm.Point == "/" {
			return mm.Inner, p, true
		}
		if p == mm.Point {
			return mm.Inner, "/", true
		}
		if strings.HasPrefix(p, mm.Point+"/") {
			rest := strings.TrimPrefix(p, mm.Point)
			if rest == "" {
				rest = "/"
			}
			return mm.Inner, rest, true
		}
	}
	return nil, "", false
}

func (m *Mountable) mountPoints() []Mount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Mount(nil), m.mounts...)
}

func (m *Mountable) Stat(p string) (FileInfo, error) {
	if fs, rel, ok := m.route(p); ok {
		return fs.Stat(rel)
	}
	return m.Base.Stat(p)
}

func (m *Mountable) ReadFile(p string) ([]byte, error) {
	if fs, rel, ok := m.route(p); ok {
		return fs.ReadFile(rel)
	}
	return m.Base.ReadFile(p)
}

func (m *Mountable) WriteFile(p string, content []byte, mode FileMode) error {
	if fs, rel, ok := m.route(p); ok {
		return fs.WriteFile(rel, content, mode)
	}
	return m.Base.WriteFile(p, content, mode)
}

func (m *Mountable) AppendFile(p string, content []byte) error {
	if fs, rel, ok := m.route(p); ok {
		return fs.AppendFile(rel, content)
	}
	return m.Base.AppendFile(p, content)
}

func (m *Mountable) Remove(p string) error {
	if fs, rel, ok := m.route(p); ok {
		return fs.Remove(rel)
	}
	return m.Base.Remove(p)
}

func (m *Mountable) Mkdir(p string, recursive bool) error {
	if fs, rel, ok := m.route(p); ok {
		return fs.Mkdir(rel, recursive)
	}
	return m.Base.Mkdir(p, recursive)
}

// ReadDir stitches the base directory's listing with any mount points
// that land directly inside it, since a directory straddling a mount
// boundary must show both the routed inner entries and sibling base
// entries.
func (m *Mountable) ReadDir(p string) ([]string, error) {
	var names []string
	var baseErr error
	if fs, rel, ok := m.route(p); ok {
		names, baseErr = fs.ReadDir(rel)
	} else {
		names, baseErr = m.Base.ReadDir(p)
	}
	seen := make(map[string]bool)
	var out []string
	if baseErr == nil {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	for _, mm := range m.mountPoints() {
		dir, base := SplitDirBase(mm.Point)
		if dir == p && base != "" && !seen[base] {
			seen[base] = true
			out = append(out, base)
		}
	}
	if len(out) == 0 && baseErr != nil {
		return nil, baseErr
	}
	sort.Strings(out)
	return out, nil
}

func (m *Mountable) Symlink(target, link string) error {
	if fs, rel, ok := m.route(link); ok {
		return fs.Symlink(target, rel)
	}
	return m.Base.Symlink(target, link)
}

func (m *Mountable) Readlink(p string) (string, error) {
	if fs, rel, ok := m.route(p); ok {
		return fs.Readlink(rel)
	}
	return m.Base.Readlink(p)
}

func (m *Mountable) Rename(src, dst string) error {
	srcFS, srcRel, srcOK := m.route(src)
	dstFS, dstRel, dstOK := m.route(dst)
	if srcOK && dstOK && srcFS == dstFS {
		return srcFS.Rename(srcRel, dstRel)
	}
	if !srcOK && !dstOK {
		return m.Base.Rename(src, dst)
	}
	// Cross-filesystem rename: copy then remove.
	content, err := m.ReadFile(src)
	if err != nil {
		return err
	}
	if err := m.WriteFile(dst, content, DefaultFileMode); err != nil {
		return err
	}
	return m.Remove(src)
}

func (m *Mountable) AllPaths() []string {
	seen := make(map[string]bool)
	for _, p := range m.Base.AllPaths() {
		seen[p] = true
	}
	for _, mm := range m.mountPoints() {
		prefix := mm.Point
		if prefix == "/" {
			prefix = ""
		}
		for _, p := range mm.Inner.AllPaths() {
			full := prefix + p
			seen[full] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
