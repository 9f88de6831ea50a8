package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const journalFile = "_journal.json"

// Sealer encrypts values at rest. vault.Box satisfies it.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// Persistence handles the disk I/O for the MemStore.
//
// Layout: one file per key. Kind-wide keys live at <dir>/<kind>.json,
// partitioned keys at <dir>/<kind>/<partition>.json.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
	sealer  Sealer
	log     *zap.SugaredLogger
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string, log *zap.SugaredLogger) (*Persistence, error) {
	// Ensure the data directory exists
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Persistence{DataDir: dir, log: log.Named("persistence")}, nil
}

// WithSealer makes every file written afterwards encrypted with s.
func (p *Persistence) WithSealer(s Sealer) *Persistence {
	p.sealer = s
	return p
}

// journalEntry records what a key held before the batch touched it.
type journalEntry struct {
	Key     string `json:"key"`
	Prev    []byte `json:"prev,omitempty"`
	Existed bool   `json:"existed"`
}

type journal struct {
	Entries []journalEntry `json:"entries"`
}

// SaveBatch writes a batch so that it lands completely or not at all.
//
// Before touching any key the previous content of every key is recorded in a
// journal (temp file + rename, so the journal is either complete or absent).
// Each key is then swapped in with its own temp file + rename, and the
// journal is removed. If a write fails half way the journal is used to put
// the old contents back; a journal left behind by a crash or a failed
// rollback is rolled back before the next batch and by LoadAll.
func (p *Persistence) SaveBatch(entries []Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.rollbackJournal(); err != nil {
		return err
	}

	values := make(map[Key][]byte, len(entries))
	j := journal{Entries: make([]journalEntry, 0, len(entries))}
	for _, e := range entries {
		val := e.Value
		if val != nil && p.sealer != nil {
			sealed, err := p.sealer.Seal(val)
			if err != nil {
				return fmt.Errorf("seal %s: %w", e.Key, err)
			}
			val = sealed
		}
		if _, seen := values[e.Key]; !seen {
			prev, err := os.ReadFile(p.pathFor(e.Key))
			switch {
			case errors.Is(err, os.ErrNotExist):
				j.Entries = append(j.Entries, journalEntry{Key: e.Key.String()})
			case err != nil:
				return fmt.Errorf("read %s: %w", e.Key, err)
			default:
				j.Entries = append(j.Entries, journalEntry{Key: e.Key.String(), Prev: prev, Existed: true})
			}
		}
		values[e.Key] = val
	}

	bytes, err := json.Marshal(j)
	if err != nil {
		return err
	}
	journalPath := filepath.Join(p.DataDir, journalFile)
	if err := writeAtomic(journalPath, bytes); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}

	for _, e := range entries {
		if err := p.write(e.Key, values[e.Key]); err != nil {
			if rbErr := p.rollback(j); rbErr != nil {
				p.log.Errorw("rollback failed, journal kept", "error", rbErr)
				return errors.Join(err, rbErr)
			}
			_ = os.Remove(journalPath)
			return err
		}
	}
	return os.Remove(journalPath)
}

// write stores val under key; a nil val removes it.
func (p *Persistence) write(key Key, val []byte) error {
	path := p.pathFor(key)
	if val == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := writeAtomic(path, val); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// rollback restores every key of j to its recorded content.
func (p *Persistence) rollback(j journal) error {
	for _, je := range j.Entries {
		key, err := ParseKey(je.Key)
		if err != nil {
			return fmt.Errorf("journal key %q: %w", je.Key, err)
		}
		var prev []byte
		if je.Existed {
			prev = je.Prev
			if prev == nil {
				prev = []byte{}
			}
		}
		if err := p.write(key, prev); err != nil {
			return err
		}
	}
	return nil
}

// writeAtomic writes to a temporary file and renames it over the target.
// On Linux/Unix the rename replaces the file instantly: a reader sees either
// the old content or the new one, never a torn write.
func writeAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func (p *Persistence) pathFor(k Key) string {
	if k.Partition == "" {
		return filepath.Join(p.DataDir, string(k.Kind)+".json")
	}
	return filepath.Join(p.DataDir, string(k.Kind), url.QueryEscape(k.Partition)+".json")
}

// LoadAll returns every stored value, rolling back an unfinished batch first.
// Unreadable files are skipped with a warning; values that fail to decrypt
// are returned as stored so the partition layer reports them as corrupt.
func (p *Persistence) LoadAll() (map[Key][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.rollbackJournal(); err != nil {
		return nil, err
	}

	allData := make(map[Key][]byte)
	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		name := file.Name()
		if file.IsDir() {
			if err := p.loadKindDir(Kind(name), allData); err != nil {
				return nil, err
			}
			continue
		}
		if filepath.Ext(name) != ".json" || strings.HasPrefix(name, "_") {
			continue
		}
		p.loadFile(Key{Kind: Kind(strings.TrimSuffix(name, ".json"))}, filepath.Join(p.DataDir, name), allData)
	}
	return allData, nil
}

func (p *Persistence) loadKindDir(kind Kind, into map[Key][]byte) error {
	dir := filepath.Join(p.DataDir, string(kind))
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		partition, err := url.QueryUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			p.log.Warnw("skipping file with undecodable name", "file", name, "error", err)
			continue
		}
		p.loadFile(Key{Kind: kind, Partition: partition}, filepath.Join(dir, name), into)
	}
	return nil
}

func (p *Persistence) loadFile(key Key, path string, into map[Key][]byte) {
	content, err := os.ReadFile(path)
	if err != nil {
		p.log.Warnw("could not read partition file", "key", key.String(), "error", err)
		return // Skip unreadable files
	}
	if p.sealer != nil {
		plain, err := p.sealer.Open(content)
		if err != nil {
			p.log.Warnw("could not decrypt partition file", "key", key.String(), "error", err)
			into[key] = content
			return
		}
		content = plain
	}
	into[key] = content
}

// rollbackJournal undoes a batch that did not finish, if there is one.
func (p *Persistence) rollbackJournal() error {
	journalPath := filepath.Join(p.DataDir, journalFile)
	content, err := os.ReadFile(journalPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	var j journal
	if err := json.Unmarshal(content, &j); err != nil {
		// Keep the evidence for manual recovery instead of guessing.
		p.log.Warnw("discarding unreadable journal", "error", err)
		return os.Rename(journalPath, journalPath+".corrupt")
	}

	p.log.Infow("rolling back interrupted batch", "entries", len(j.Entries))
	if err := p.rollback(j); err != nil {
		return fmt.Errorf("roll back journal: %w", err)
	}
	return os.Remove(journalPath)
}
