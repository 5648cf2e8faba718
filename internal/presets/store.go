// Package presets keeps the fuel and deviation preset collections shared by
// every UI surface and reconciles them with last-writer-wins dates.
//
// A Store is not safe for concurrent use. The server only touches it from
// its dispatch queue.
package presets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"
)

// Preset is one named curve. An empty curve is a tombstone.
type Preset[E any] struct {
	Name  string `json:"name"`
	Date  uint64 `json:"date"`
	Curve []E    `json:"curve"`
}

// Removed reports whether p is a tombstone.
func (p Preset[E]) Removed() bool {
	return len(p.Curve) == 0
}

// Target selects the recipients of an Action.
type Target int

const (
	// ToSender addresses the peer whose message is being handled.
	ToSender Target = iota
	// ToAll addresses every registered handler, sender included.
	ToAll
)

func (t Target) String() string {
	if t == ToAll {
		return "all"
	}
	return "sender"
}

// Action is a message the caller must deliver.
type Action struct {
	Target  Target
	Content protocol.Content
}

// Defaults persists the default preset name of each family.
type Defaults interface {
	DefaultPreset(kind string) string
	SetDefaultPreset(kind, name string) error
}

// Family describes one kind of preset: where it is stored and how its
// messages are built.
type Family[E any] struct {
	Kind     string
	File     string
	Curve    func(Preset[E]) protocol.Content
	Delete   func(name string, date uint64) protocol.Content
	GetCurve func(name string) protocol.Content
	Default  func(name string, date uint64) protocol.Content
	// Seed is used when the file does not exist yet. May be nil.
	Seed func() []Preset[E]
}

type pendingKey struct {
	peer uint64
	name string
}

// Store holds the presets of one family.
type Store[E any] struct {
	family   Family[E]
	dir      string
	defaults Defaults
	logger   *log.Logger

	presets map[string]Preset[E]
	// outstanding GetCurve requests, by peer and name, with the date asked for
	pending map[pendingKey]uint64

	defName string
	defDate uint64
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	logger *log.Logger
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *log.Logger) Option {
	return func(o *storeOptions) {
		o.logger = l
	}
}

// New returns an empty store persisting under dir. Call Load to read the
// file.
func New[E any](family Family[E], dir string, defaults Defaults, opts ...Option) *Store[E] {
	o := storeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "presets"})
	}

	s := &Store[E]{
		family:   family,
		dir:      dir,
		defaults: defaults,
		logger:   o.logger.With("kind", family.Kind),
		presets:  make(map[string]Preset[E]),
		pending:  make(map[pendingKey]uint64),
	}
	if defaults != nil {
		s.defName = defaults.DefaultPreset(family.Kind)
	}
	return s
}

// Kind returns the family name ("fuel", "deviation").
func (s *Store[E]) Kind() string {
	return s.family.Kind
}

// Path is the file the store persists to.
func (s *Store[E]) Path() string {
	return filepath.Join(s.dir, "Data", s.family.File)
}

// Load replaces the in-memory presets with the file content. A missing file
// installs the family seed.
func (s *Store[E]) Load() error {
	s.presets = make(map[string]Preset[E])

	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		if s.family.Seed != nil {
			for _, p := range s.family.Seed() {
				s.presets[p.Name] = p
			}
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s presets: %w", s.family.Kind, err)
	}

	var list []Preset[E]
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse %s: %w", s.Path(), err)
	}
	for _, p := range list {
		s.presets[p.Name] = p
	}
	return nil
}

// Save writes every preset, tombstones included, to <file>.tmp and renames
// it over the canonical path.
func (s *Store[E]) Save() error {
	path := s.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preset dir: %w", err)
	}

	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encode %s presets: %w", s.family.Kind, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// Snapshot returns every preset sorted by name.
func (s *Store[E]) Snapshot() []Preset[E] {
	out := make([]Preset[E], 0, len(s.presets))
	for _, p := range s.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the preset named name.
func (s *Store[E]) Get(name string) (Preset[E], bool) {
	p, ok := s.presets[name]
	return p, ok
}

// Len returns the number of presets, tombstones included.
func (s *Store[E]) Len() int {
	return len(s.presets)
}

// Default returns the current default preset name and its date.
func (s *Store[E]) Default() (string, uint64) {
	return s.defName, s.defDate
}

// Reconcile compares the batch announced by peer with the local presets.
func (s *Store[E]) Reconcile(peer uint64, batch []protocol.PresetInfo) []Action {
	var actions []Action
	save := false
	mentioned := make(map[string]struct{}, len(batch))

	for _, in := range batch {
		local, known := s.presets[in.Name]
		if !known {
			if in.Remove {
				s.presets[in.Name] = Preset[E]{Name: in.Name, Date: in.Date}
				save = true
				actions = append(actions, Action{ToAll, s.family.Delete(in.Name, in.Date)})
			} else if a, ok := s.request(peer, in); ok {
				actions = append(actions, a)
			}
			continue
		}

		mentioned[in.Name] = struct{}{}
		switch {
		case local.Date < in.Date:
			if in.Remove {
				s.presets[in.Name] = Preset[E]{Name: in.Name, Date: in.Date}
				save = true
				actions = append(actions, Action{ToAll, s.family.Delete(in.Name, in.Date)})
			} else if a, ok := s.request(peer, in); ok {
				actions = append(actions, a)
			}
		case local.Date > in.Date:
			actions = append(actions, Action{ToSender, s.message(local)})
		}
	}

	if save {
		s.save()
	}

	for _, p := range s.Snapshot() {
		if _, ok := mentioned[p.Name]; ok || p.Removed() {
			continue
		}
		actions = append(actions, Action{ToSender, s.family.Curve(p)})
	}

	if s.defName != "" {
		actions = append(actions, Action{ToSender, s.family.Default(s.defName, s.defDate)})
	}
	return actions
}

// ApplyCurve stores a full preset when it is unknown or strictly newer than
// the local one. Accepted presets are persisted and broadcast.
func (s *Store[E]) ApplyCurve(p Preset[E]) ([]Action, bool) {
	if local, ok := s.presets[p.Name]; ok && local.Date >= p.Date {
		return nil, false
	}

	s.presets[p.Name] = p
	for k, date := range s.pending {
		if k.name == p.Name && date <= p.Date {
			delete(s.pending, k)
		}
	}
	s.save()

	return []Action{{ToAll, s.message(p)}}, true
}

// SetDefault records name as the default preset when none is set or date is
// strictly newer than the current one.
func (s *Store[E]) SetDefault(name string, date uint64) bool {
	if s.defName != "" && s.defDate >= date {
		return false
	}

	s.defName = name
	s.defDate = date
	if s.defaults != nil {
		if err := s.defaults.SetDefaultPreset(s.family.Kind, name); err != nil {
			s.logger.Error("store default preset", "name", name, "err", err)
		}
	}
	return true
}

// DropPeer forgets the curve requests still outstanding for peer.
func (s *Store[E]) DropPeer(peer uint64) {
	for k := range s.pending {
		if k.peer == peer {
			delete(s.pending, k)
		}
	}
}

// request asks peer for the curve it announced, once per announced date.
func (s *Store[E]) request(peer uint64, in protocol.PresetInfo) (Action, bool) {
	key := pendingKey{peer: peer, name: in.Name}
	if date, ok := s.pending[key]; ok && date >= in.Date {
		return Action{}, false
	}
	s.pending[key] = in.Date
	return Action{ToSender, s.family.GetCurve(in.Name)}, true
}

func (s *Store[E]) message(p Preset[E]) protocol.Content {
	if p.Removed() {
		return s.family.Delete(p.Name, p.Date)
	}
	return s.family.Curve(p)
}

func (s *Store[E]) save() {
	if err := s.Save(); err != nil {
		s.logger.Error("persist presets", "err", err)
	}
}
