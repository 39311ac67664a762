package vfs

import (
	"sort"
	"sync"
)

// Overlay is a copy-on-write filesystem: reads fall through to Lower when
// Upper has no entry and no whiteout is recorded; writes land in Upper;
// deletions record a whiteout that hides the Lower entry from enumeration
// and access.
type Overlay struct {
	Upper *InMemory
	Lower FS

	mu        sync.RWMutex
	whiteouts map[string]bool
}

// NewOverlay builds an overlay with a fresh in-memory upper layer over an
// arbitrary lower FS (host-backed or another VFS), exposing a stable
// mount point regardless of the lower layer's own addressing.
func NewOverlay(lower FS) *Overlay {
	return &Overlay{Upper: NewInMemory(), Lower: lower, whiteouts: make(map[string]bool)}
}

func (o *Overlay) isWhitedOut(p string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.whiteouts[p]
}

func (o *Overlay) whiteout(p string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.whiteouts[p] = true
}

func (o *Overlay) clearWhiteout(p string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.whiteouts, p)
}

func (o *Overlay) Stat(p string) (FileInfo, error) {
	if o.isWhitedOut(p) {
		return FileInfo{}, newErr("stat", p, ENOENT)
	}
	if fi, err := o.Upper.Stat(p); err == nil {
		return fi, nil
	}
	return o.Lower.Stat(p)
}

func (o *Overlay) ReadFile(p string) ([]byte, error) {
	if o.isWhitedOut(p) {
		return nil, newErr("read", p, ENOENT)
	}
	if b, err := o.Upper.ReadFile(p); err == nil {
		return b, nil
	}
	return o.Lower.ReadFile(p)
}

func (o *Overlay) WriteFile(p string, content []byte, mode FileMode) error {
	o.clearWhiteout(p)
	return o.Upper.WriteFile(p, content, mode)
}

func (o *Overlay) AppendFile(p string, content []byte) error {
	if !o.isWhitedOut(p) {
		if _, err := o.Upper.Stat(p); err != nil {
			if lowerContent, lerr := o.Lower.ReadFile(p); lerr == nil {
				if werr := o.Upper.WriteFile(p, lowerContent, DefaultFileMode); werr != nil {
					return werr
				}
			}
		}
	}
	o.clearWhiteout(p)
	return o.Upper.AppendFile(p, content)
}

func (o *Overlay) Remove(p string) error {
	_, upperErr := o.Upper.Stat(p)
	if upperErr == nil {
		_ = o.Upper.Remove(p)
	}
	if o.isWhitedOut(p) {
		return newErr("remove", p, ENOENT)
	}
	if _, err := o.Lower.Stat(p); err != nil && upperErr != nil {
		return newErr("remove", p, ENOENT)
	}
	o.whiteout(p)
	return nil
}

func (o *Overlay) Mkdir(p string, recursive bool) error {
	o.clearWhiteout(p)
	return o.Upper.Mkdir(p, recursive)
}

func (o *Overlay) ReadDir(p string) ([]string, error) {
	if o.isWhitedOut(p) {
		return nil, newErr("readdir", p, ENOENT)
	}
	seen := make(map[string]bool)
	var out []string

	if upperNames, err := o.Upper.ReadDir(p); err == nil {
		for _, n := range upperNames {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	if lowerNames, err := o.Lower.ReadDir(p); err == nil {
		for _, n := range lowerNames {
			childPath := p
			if childPath == "/" {
				childPath = ""
			}
			if o.isWhitedOut(childPath + "/" + n) {
				continue
			}
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	if len(out) == 0 {
		if _, err := o.Upper.Stat(p); err != nil {
			if _, err := o.Lower.Stat(p); err != nil {
				return nil, newErr("readdir", p, ENOENT)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (o *Overlay) Symlink(target, link string) error {
	o.clearWhiteout(link)
	return o.Upper.Symlink(target, link)
}

func (o *Overlay) Readlink(p string) (string, error) {
	if o.isWhitedOut(p) {
		return "", newErr("readlink", p, ENOENT)
	}
	if t, err := o.Upper.Readlink(p); err == nil {
		return t, nil
	}
	return o.Lower.Readlink(p)
}

func (o *Overlay) Rename(src, dst string) error {
	content, err := o.ReadFile(src)
	if err != nil {
		return err
	}
	if err := o.Upper.WriteFile(dst, content, DefaultFileMode); err != nil {
		return err
	}
	return o.Remove(src)
}

func (o *Overlay) AllPaths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range o.Lower.AllPaths() {
		if !o.isWhitedOut(p) {
			seen[p] = true
		}
	}
	for _, p := range o.Upper.AllPaths() {
		seen[p] = true
	}
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
