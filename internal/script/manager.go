//go:build !no_scripts

package script

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

const scriptExt = ".lua"

// metaPrefix starts the optional JSON header line of a script file.
const metaPrefix = "-- {"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// validScriptID reports whether id is usable as a file name stem.
func validScriptID(id string) bool {
	return idPattern.MatchString(id) && !strings.Contains(id, "..")
}

// Manager stores descriptor scripts as .lua files in one directory.
type Manager struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewManager creates the scripts directory if needed.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scripts dir: %w", err)
	}
	return &Manager{dir: dir, logger: logger.With("component", "scripts")}, nil
}

func (m *Manager) Dir() string { return m.dir }

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+scriptExt)
}

// List returns every script in ID order. Unreadable files are logged and
// skipped.
func (m *Manager) List() ([]*Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}

	var scripts []*Script
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), scriptExt)
		if e.IsDir() || !ok || !validScriptID(id) {
			continue
		}
		s, err := m.parseFile(m.path(id))
		if err != nil {
			m.logger.Warn("skip unreadable script", "file", e.Name(), "err", err)
			continue
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// Get returns the script with id.
func (m *Manager) Get(id string) (*Script, error) {
	if !validScriptID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, err := m.parseFile(m.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("script %s: %w", id, ErrNotFound)
	}
	return s, err
}

// Save writes s, replacing any script with the same ID. A script without an
// ID gets a fresh one derived from its name.
func (m *Manager) Save(s *Script) (*Script, error) {
	if s.ID != "" && !validScriptID(s.ID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, s.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = m.freeID(slugify(s.Meta.Name))
	}
	s.FilePath = m.path(s.ID)

	// Readers and the watcher only ever see whole files.
	tmp := s.FilePath + ".tmp"
	if err := os.WriteFile(tmp, encodeScript(s), 0o644); err != nil {
		return nil, fmt.Errorf("write script: %w", err)
	}
	if err := os.Rename(tmp, s.FilePath); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("write script: %w", err)
	}
	return s, nil
}

// freeID returns base, or base_N for the first N not taken. Callers hold mu.
func (m *Manager) freeID(base string) string {
	if base == "" {
		base = "devices"
	}
	id := base
	for n := 1; ; n++ {
		if _, err := os.Stat(m.path(id)); errors.Is(err, fs.ErrNotExist) {
			return id
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

// Delete removes the script with id.
func (m *Manager) Delete(id string) error {
	if !validScriptID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.path(id))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("script %s: %w", id, ErrNotFound)
	case err != nil:
		return fmt.Errorf("delete script: %w", err)
	}
	return nil
}

func (m *Manager) parseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, metaErr := decodeScript(strings.TrimSuffix(filepath.Base(path), scriptExt), data)
	if metaErr != nil {
		m.logger.Warn("script metadata parse error", "file", path, "err", metaErr)
	}
	s.FilePath = path
	return s, nil
}

// decodeScript splits a script file into its metadata header and Lua body.
// Files without a header are enabled and named after their ID. A malformed
// header is reported but the body is still returned.
func decodeScript(id string, data []byte) (*Script, error) {
	s := &Script{ID: id, Meta: ScriptMeta{Enabled: true}}

	var metaErr error
	body := data
	if first, rest, _ := bytes.Cut(data, []byte("\n")); bytes.HasPrefix(first, []byte(metaPrefix)) {
		metaErr = json.Unmarshal(bytes.TrimPrefix(first, []byte("-- ")), &s.Meta)
		body = rest
	}

	code := string(body)
	for {
		line, rest, ok := strings.Cut(code, "\n")
		if !ok || strings.TrimSpace(line) != "" {
			break
		}
		code = rest
	}
	s.LuaCode = code
	if s.Meta.Name == "" {
		s.Meta.Name = id
	}
	return s, metaErr
}

// encodeScript is the inverse of decodeScript.
func encodeScript(s *Script) []byte {
	var b bytes.Buffer
	meta, _ := json.Marshal(s.Meta)
	b.WriteString("-- ")
	b.Write(meta)
	b.WriteByte('\n')

	if s.LuaCode != "" {
		b.WriteByte('\n')
		b.WriteString(s.LuaCode)
		if !strings.HasSuffix(s.LuaCode, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.Bytes()
}

// slugify turns a display name into a lower-case ID of at most 40 bytes.
func slugify(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
	s := strings.Join(words, "_")
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "_")
	}
	return s
}
