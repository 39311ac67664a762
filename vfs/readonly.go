package vfs

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReadOnlyHost delegates reads to a real host directory and rejects every
// write. Stat results are cached until
// either the TTL expires or, if a watcher was started, fsnotify reports a
// change under Root.
type ReadOnlyHost struct {
	Root string

	mu        sync.Mutex
	statCache map[string]cachedStat
	watcher   *fsnotify.Watcher
	invalid   bool // set true by the watcher goroutine on any host event
}

type cachedStat struct {
	info FileInfo
	at   time.Time
}

const statCacheTTL = 2 * time.Second

// NewReadOnlyHost mounts hostRoot read-only at the VFS root.
func NewReadOnlyHost(hostRoot string) *ReadOnlyHost {
	return &ReadOnlyHost{Root: hostRoot, statCache: make(map[string]cachedStat)}
}

// Watch starts an fsnotify watcher on Root so cached stats invalidate
// promptly when the host directory changes out from under a long-lived
// engine. Watch is optional: callers that never invoke it get
// simple TTL-based cache expiry instead.
func (r *ReadOnlyHost) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(r.Root); err != nil {
		_ = w.Close()
		return err
	}
	r.mu.Lock()
	r.watcher = w
	r.mu.Unlock()

	go func() {
		for {
			select {
			case _, ok := <-w.Events:
				if !ok {
					return
				}
				r.mu.Lock()
				r.invalid = true
				r.statCache = make(map[string]cachedStat)
				r.mu.Unlock()
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Close stops the watcher, if one was started.
func (r *ReadOnlyHost) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func (r *ReadOnlyHost) hostPath(p string) string {
	return filepath.Join(r.Root, filepath.FromSlash(p))
}

func (r *ReadOnlyHost) Stat(p string) (FileInfo, error) {
	r.mu.Lock()
	if c, ok := r.statCache[p]; ok && time.Since(c.at) < statCacheTTL {
		r.mu.Unlock()
		return c.info, nil
	}
	r.mu.Unlock()

	fi, err := os.Stat(r.hostPath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, newErr("stat", p, ENOENT)
		}
		return FileInfo{}, newErr("stat", p, EACCES)
	}
	mode := ModeRead | ModeExec
	if fi.IsDir() {
		mode |= ModeDir
	}
	info := FileInfo{Name: fi.Name(), Mode: mode, Size: fi.Size(), ModTime: fi.ModTime()}

	r.mu.Lock()
	r.statCache[p] = cachedStat{info: info, at: time.Now()}
	r.mu.Unlock()
	return info, nil
}

func (r *ReadOnlyHost) ReadFile(p string) ([]byte, error) {
	b, err := os.ReadFile(r.hostPath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newErr("read", p, ENOENT)
		}
		return nil, newErr("read", p, EACCES)
	}
	return b, nil
}

func (r *ReadOnlyHost) WriteFile(p string, content []byte, mode FileMode) error {
	return newErr("write", p, EACCES)
}

func (r *ReadOnlyHost) AppendFile(p string, content []byte) error {
	return newErr("append", p, EACCES)
}

func (r *ReadOnlyHost) Remove(p string) error { return newErr("remove", p, EACCES) }

func (r *ReadOnlyHost) Mkdir(p string, recursive bool) error { return newErr("mkdir", p, EACCES) }

func (r *ReadOnlyHost) ReadDir(p string) ([]string, error) {
	entries, err := os.ReadDir(r.hostPath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newErr("readdir", p, ENOENT)
		}
		return nil, newErr("readdir", p, EACCES)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out, nil
}

func (r *ReadOnlyHost) Symlink(target, link string) error { return newErr("symlink", link, EACCES) }

func (r *ReadOnlyHost) Readlink(p string) (string, error) {
	target, err := os.Readlink(r.hostPath(p))
	if err != nil {
		return "", newErr("readlink", p, EINVAL)
	}
	return target, nil
}

func (r *ReadOnlyHost) Rename(src, dst string) error { return newErr("rename", src, EACCES) }

func (r *ReadOnlyHost) AllPaths() []string {
	var out []string
	_ = filepath.Walk(r.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil || path == r.Root {
			return nil
		}
		rel, rerr := filepath.Rel(r.Root, path)
		if rerr != nil {
			return nil
		}
		out = append(out, "/"+filepath.ToSlash(rel))
		return nil
	})
	return out
}
