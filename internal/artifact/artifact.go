// Package artifact persists stage checkpoints between pipeline runs. Each
// artifact is one gob file; values round-trip exactly, including the
// missingness pattern of NaN cells.
package artifact

import (
	"encoding/gob"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ninanor/villrein-go/internal/errors"
	"github.com/ninanor/villrein-go/internal/logging"
)

// Well known artifact names, one per pipeline checkpoint.
const (
	PosteriorSample = "posterior_sample"
	Detectability   = "detectability"
	CapacitySample  = "capacity_sample"
	ReferenceTable  = "reference_table"
	IndicatorTable  = "indicator_table"

	manifestName = "manifest"
)

// Manifest records the identity of a pipeline run and when each stage
// checkpoint was written.
type Manifest struct {
	RunID        string
	Created      time.Time
	ConfigDigest string
	Stages       map[string]time.Time
}

// Store reads and writes checkpoint artifacts under one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore opens (creating if needed) an artifact directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("artifact").
			Category(errors.CategoryFileIO).
			FileContext(dir).
			Build()
	}
	return &Store{dir: dir, logger: logging.ForService("artifact")}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".gob")
}

// Exists reports whether a checkpoint has been written.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// Save encodes v into the named checkpoint. The write goes through a
// temporary file and rename so a crash never leaves a torn artifact.
func (s *Store) Save(name string, v any) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return errors.New(err).
			Component("artifact").
			Category(errors.CategoryFileIO).
			FileContext(s.dir).
			Build()
	}
	defer os.Remove(tmp.Name())

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return errors.New(err).
			Component("artifact").
			Category(errors.CategoryArtifact).
			Context("artifact", name).
			Build()
	}
	if err := tmp.Close(); err != nil {
		return errors.New(err).
			Component("artifact").
			Category(errors.CategoryFileIO).
			FileContext(tmp.Name()).
			Build()
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return errors.New(err).
			Component("artifact").
			Category(errors.CategoryFileIO).
			FileContext(s.path(name)).
			Build()
	}

	s.logger.Debug("artifact saved", "artifact", name, "path", s.path(name))
	return s.stampStage(name)
}

// Load decodes the named checkpoint into v.
func (s *Store) Load(name string, v any) error {
	f, err := os.Open(s.path(name))
	if err != nil {
		return errors.New(err).
			Component("artifact").
			Category(errors.CategoryFileIO).
			FileContext(s.path(name)).
			Build()
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return errors.New(err).
			Component("artifact").
			Category(errors.CategoryArtifact).
			Context("artifact", name).
			Build()
	}
	return nil
}

// Manifest returns the run manifest, creating one on first use.
func (s *Store) Manifest() (*Manifest, error) {
	var m Manifest
	if s.Exists(manifestName) {
		if err := s.Load(manifestName, &m); err != nil {
			return nil, err
		}
		return &m, nil
	}
	m = Manifest{
		RunID:   uuid.NewString(),
		Created: time.Now().UTC(),
		Stages:  make(map[string]time.Time),
	}
	return &m, s.writeManifest(&m)
}

// EnsureConfigDigest records the digest of the active configuration in the
// manifest. A changed digest starts a fresh run identity, since checkpoints
// stamped under another configuration no longer describe this run. It
// reports whether the digest changed.
func (s *Store) EnsureConfigDigest(digest string) (bool, error) {
	m, err := s.Manifest()
	if err != nil {
		return false, err
	}
	if m.ConfigDigest == digest {
		return false, nil
	}
	changed := m.ConfigDigest != ""
	if changed {
		m.RunID = uuid.NewString()
		m.Created = time.Now().UTC()
		m.Stages = make(map[string]time.Time)
	}
	m.ConfigDigest = digest
	return changed, s.writeManifest(m)
}

func (s *Store) writeManifest(m *Manifest) error {
	tmp, err := os.CreateTemp(s.dir, manifestName+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := gob.NewEncoder(tmp).Encode(m); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(manifestName))
}

// stampStage records a checkpoint write in the manifest.
func (s *Store) stampStage(name string) error {
	if name == manifestName {
		return nil
	}
	m, err := s.Manifest()
	if err != nil {
		return err
	}
	m.Stages[name] = time.Now().UTC()
	return s.writeManifest(m)
}
