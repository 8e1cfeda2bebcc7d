package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tribune/internal/logging"
	"tribune/internal/types"
)

// VersionStore is the slice of the database the persona file store needs.
type VersionStore interface {
	SavePersonaVersion(hash, body, note string) (int, error)
	PersonaVersion(version int) (*types.PersonaVersionRecord, error)
}

// FileStore owns the persona JSON file: cached reads with hot reload,
// atomic writes, and version snapshots in the database.
type FileStore struct {
	path     string
	versions VersionStore

	mu        sync.RWMutex
	cached    *Persona
	cachedRaw []byte
	hash      string
	mtime     time.Time

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileStore loads (or bootstraps) the persona file and starts a
// filesystem watcher for hot reload.
func NewFileStore(path string, versions VersionStore) (*FileStore, error) {
	fs := &FileStore{
		path:     path,
		versions: versions,
		done:     make(chan struct{}),
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.Persona("No persona file at %s, writing default", path)
		if err := fs.write(Default(), "bootstrap"); err != nil {
			return nil, err
		}
	}

	if err := fs.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.PersonaWarn("fsnotify unavailable, falling back to stat polling: %v", err)
	} else {
		fs.watcher = watcher
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			logging.PersonaWarn("failed to watch persona dir: %v", err)
			watcher.Close()
			fs.watcher = nil
		} else {
			go fs.watch()
		}
	}

	return fs, nil
}

// Close stops the filesystem watcher.
func (fs *FileStore) Close() error {
	close(fs.done)
	if fs.watcher != nil {
		return fs.watcher.Close()
	}
	return nil
}

// Current returns the cached persona, reloading first when the file
// changed on disk. A failed reload keeps the cached copy.
func (fs *FileStore) Current() *Persona {
	fs.maybeReload()
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.cached
}

// Hash returns the content hash of the cached persona.
func (fs *FileStore) Hash() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.hash
}

// Update validates, persists, and versions a new persona document.
func (fs *FileStore) Update(p *Persona, note string) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("persona rejected: %w", err)
	}
	if err := fs.write(p, note); err != nil {
		return 0, err
	}
	fs.mu.RLock()
	hash := fs.hash
	raw := fs.cachedRaw
	fs.mu.RUnlock()

	version, err := fs.versions.SavePersonaVersion(hash, string(raw), note)
	if err != nil {
		return 0, fmt.Errorf("failed to version persona: %w", err)
	}
	logging.Persona("Persona updated to version %d (hash %s)", version, hash)
	return version, nil
}

// Rollback restores a stored version as the current persona.
func (fs *FileStore) Rollback(version int) error {
	p, err := fs.loadVersion(version)
	if err != nil {
		return err
	}
	if _, err := fs.Update(p, fmt.Sprintf("rollback to v%d", version)); err != nil {
		return err
	}
	return nil
}

// Diff lists the field-level changes between two stored versions.
func (fs *FileStore) Diff(v1, v2 int) ([]Change, error) {
	a, err := fs.loadVersion(v1)
	if err != nil {
		return nil, err
	}
	b, err := fs.loadVersion(v2)
	if err != nil {
		return nil, err
	}
	return Diff(a, b)
}

func (fs *FileStore) loadVersion(version int) (*Persona, error) {
	rec, err := fs.versions.PersonaVersion(version)
	if err != nil {
		return nil, fmt.Errorf("failed to load version %d: %w", version, err)
	}
	var p Persona
	if err := json.Unmarshal([]byte(rec.Body), &p); err != nil {
		return nil, fmt.Errorf("stored version %d is corrupt: %w", version, err)
	}
	return &p, nil
}

// write persists the persona atomically: temp file, fsync, rename.
func (fs *FileStore) write(p *Persona, note string) error {
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal persona: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create persona dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".persona-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp persona: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp persona: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp persona: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp persona: %w", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		return fmt.Errorf("failed to replace persona file: %w", err)
	}

	return fs.reload()
}

// maybeReload reloads when the file's mtime moved past the cached one.
func (fs *FileStore) maybeReload() {
	info, err := os.Stat(fs.path)
	if err != nil {
		return
	}
	fs.mu.RLock()
	stale := info.ModTime().After(fs.mtime)
	fs.mu.RUnlock()
	if !stale {
		return
	}
	if err := fs.reload(); err != nil {
		logging.PersonaWarn("Hot reload failed, keeping cached persona: %v", err)
	}
}

// reload reads and validates the file, replacing the cache only on success.
func (fs *FileStore) reload() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return fmt.Errorf("failed to read persona file: %w", err)
	}

	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse persona file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("persona file invalid: %w", err)
	}

	hash, err := p.Hash()
	if err != nil {
		return err
	}

	info, err := os.Stat(fs.path)
	if err != nil {
		return fmt.Errorf("failed to stat persona file: %w", err)
	}

	fs.mu.Lock()
	changed := hash != fs.hash
	fs.cached = &p
	fs.cachedRaw = data
	fs.hash = hash
	fs.mtime = info.ModTime()
	fs.mu.Unlock()

	if changed {
		logging.Persona("Persona loaded (hash %s)", hash)
	}
	return nil
}

// watch reacts to filesystem events on the persona file.
func (fs *FileStore) watch() {
	base := filepath.Base(fs.path)
	for {
		select {
		case <-fs.done:
			return
		case ev, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := fs.reload(); err != nil {
				logging.PersonaWarn("Watcher reload failed, keeping cached persona: %v", err)
			}
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			logging.PersonaWarn("Persona watcher error: %v", err)
		}
	}
}
