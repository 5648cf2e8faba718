package presets

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"
)

type memDefaults map[string]string

func (m memDefaults) DefaultPreset(kind string) string { return m[kind] }

func (m memDefaults) SetDefaultPreset(kind, name string) error {
	m[kind] = name
	return nil
}

func newDeviation(t *testing.T) *DeviationStore {
	t.Helper()
	s := NewDeviation(t.TempDir(), memDefaults{})
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return s
}

func kinds(actions []Action) []protocol.Kind {
	out := make([]protocol.Kind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Content.Kind())
	}
	return out
}

func TestFuelSeedWhenFileMissing(t *testing.T) {
	s := NewFuel(t.TempDir(), nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	p, ok := s.Get(H125Name)
	if !ok {
		t.Fatal("expected seeded h125 preset")
	}
	if p.Date != 0 || len(p.Curve) != 1 || p.Curve[0].Thrust != 100 {
		t.Errorf("unexpected seed %+v", p)
	}
	if len(p.Curve[0].Points) != 10 {
		t.Errorf("expected 10 altitude rows, got %d", len(p.Curve[0].Points))
	}
}

func TestDeviationHasNoSeed(t *testing.T) {
	if s := newDeviation(t); s.Len() != 0 {
		t.Errorf("expected empty deviation store, got %d", s.Len())
	}
}

func TestUnknownPresetRequestedFromSenderOnly(t *testing.T) {
	s := newDeviation(t)

	actions := s.Reconcile(3, []protocol.PresetInfo{{Name: "x", Date: 5}})
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %v", kinds(actions))
	}
	a := actions[0]
	if a.Target != ToSender {
		t.Errorf("target = %s, want sender", a.Target)
	}
	get, ok := a.Content.(protocol.GetDeviationCurve)
	if !ok || get.Name != "x" {
		t.Errorf("content = %#v", a.Content)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	s := newDeviation(t)
	batch := []protocol.PresetInfo{
		{Name: "fetch", Date: 5},
		{Name: "gone", Date: 9, Remove: true},
	}

	first := s.Reconcile(3, batch)
	if got := kinds(first); !reflect.DeepEqual(got, []protocol.Kind{
		protocol.KindGetDeviationCurve, protocol.KindDeleteDevPreset,
	}) {
		t.Fatalf("first pass = %v", got)
	}

	if second := s.Reconcile(3, batch); len(second) != 0 {
		t.Fatalf("second pass should be a no-op, got %v", kinds(second))
	}
}

func TestDropPeerAllowsNewRequest(t *testing.T) {
	s := newDeviation(t)
	batch := []protocol.PresetInfo{{Name: "x", Date: 5}}

	s.Reconcile(3, batch)
	s.DropPeer(3)
	if actions := s.Reconcile(3, batch); len(actions) != 1 {
		t.Fatalf("expected a fresh request after DropPeer, got %v", kinds(actions))
	}
}

func TestReconcileNewerAndOlder(t *testing.T) {
	s := newDeviation(t)
	s.ApplyCurve(Preset[[2]int16]{Name: "a", Date: 10, Curve: [][2]int16{{0, 1}}})
	s.ApplyCurve(Preset[[2]int16]{Name: "b", Date: 10, Curve: [][2]int16{{0, 2}}})
	s.ApplyCurve(Preset[[2]int16]{Name: "c", Date: 10, Curve: [][2]int16{{0, 3}}})
	s.ApplyCurve(Preset[[2]int16]{Name: "d", Date: 10, Curve: [][2]int16{{0, 4}}})

	actions := s.Reconcile(2, []protocol.PresetInfo{
		{Name: "a", Date: 20, Remove: true}, // newer delete
		{Name: "b", Date: 20},               // newer update
		{Name: "c", Date: 1},                // older
		{Name: "d", Date: 10},               // equal
	})

	want := []Action{
		{ToAll, protocol.DeleteDeviationPreset{Name: "a", Date: 20}},
		{ToSender, protocol.GetDeviationCurve{Name: "b"}},
		{ToSender, protocol.DeviationCurve{Name: "c", Date: 10, Curve: [][2]int16{{0, 3}}}},
	}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("actions =\n%#v\nwant\n%#v", actions, want)
	}

	a, _ := s.Get("a")
	if !a.Removed() || a.Date != 20 {
		t.Errorf("a should be a tombstone at 20, got %+v", a)
	}
}

func TestOlderSenderGetsTombstone(t *testing.T) {
	s := newDeviation(t)
	s.Reconcile(2, []protocol.PresetInfo{{Name: "gone", Date: 9, Remove: true}})

	actions := s.Reconcile(4, []protocol.PresetInfo{{Name: "gone", Date: 3}})
	want := []Action{{ToSender, protocol.DeleteDeviationPreset{Name: "gone", Date: 9}}}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("actions = %#v", actions)
	}
}

func TestTailPushesUnmentionedAndDefault(t *testing.T) {
	s := newDeviation(t)
	s.ApplyCurve(Preset[[2]int16]{Name: "live", Date: 4, Curve: [][2]int16{{90, -2}}})
	s.Reconcile(9, []protocol.PresetInfo{{Name: "dead", Date: 4, Remove: true}})
	if !s.SetDefault("live", 1) {
		t.Fatal("SetDefault rejected")
	}

	actions := s.Reconcile(2, nil)
	want := []Action{
		{ToSender, protocol.DeviationCurve{Name: "live", Date: 4, Curve: [][2]int16{{90, -2}}}},
		{ToSender, protocol.DefaultDeviationPreset{Name: "live", Date: 1}},
	}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("actions =\n%#v\nwant\n%#v", actions, want)
	}
}

func TestApplyCurveOnlyStrictlyNewer(t *testing.T) {
	s := newDeviation(t)

	actions, ok := s.ApplyCurve(Preset[[2]int16]{Name: "x", Date: 5, Curve: [][2]int16{{1, 1}}})
	if !ok || len(actions) != 1 || actions[0].Target != ToAll {
		t.Fatalf("first apply: ok=%v actions=%v", ok, actions)
	}
	if _, ok := s.ApplyCurve(Preset[[2]int16]{Name: "x", Date: 5, Curve: [][2]int16{{2, 2}}}); ok {
		t.Error("equal date must be rejected")
	}
	if _, ok := s.ApplyCurve(Preset[[2]int16]{Name: "x", Date: 4, Curve: [][2]int16{{2, 2}}}); ok {
		t.Error("older date must be rejected")
	}

	actions, ok = s.ApplyCurve(Preset[[2]int16]{Name: "x", Date: 6})
	if !ok {
		t.Fatal("newer empty curve rejected")
	}
	if _, isDelete := actions[0].Content.(protocol.DeleteDeviationPreset); !isDelete {
		t.Errorf("empty curve should broadcast a delete, got %#v", actions[0].Content)
	}
}

func TestApplyCurveClearsPendingRequest(t *testing.T) {
	s := newDeviation(t)
	s.Reconcile(3, []protocol.PresetInfo{{Name: "x", Date: 5}})
	s.ApplyCurve(Preset[[2]int16]{Name: "x", Date: 5, Curve: [][2]int16{{1, 1}}})

	actions := s.Reconcile(3, []protocol.PresetInfo{{Name: "x", Date: 7}})
	if got := kinds(actions); !reflect.DeepEqual(got, []protocol.Kind{protocol.KindGetDeviationCurve}) {
		t.Errorf("actions = %v", got)
	}
}

func TestSetDefault(t *testing.T) {
	defaults := memDefaults{KindDeviation: "boot"}
	s := NewDeviation(t.TempDir(), defaults)

	if name, date := s.Default(); name != "boot" || date != 0 {
		t.Fatalf("Default() = %q, %d", name, date)
	}
	if s.SetDefault("old", 0) {
		t.Error("equal date must be rejected")
	}
	if !s.SetDefault("new", 3) {
		t.Fatal("newer default rejected")
	}
	if defaults[KindDeviation] != "new" {
		t.Errorf("default not persisted: %q", defaults[KindDeviation])
	}
}

func TestPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFuel(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	s.ApplyCurve(Preset[protocol.FuelCurve]{Name: "mine", Date: 12, Curve: H125Curve()})
	s.Reconcile(2, []protocol.PresetInfo{{Name: "dead", Date: 3, Remove: true}})

	if _, err := os.Stat(filepath.Join(dir, "Data", "FuelPresets.json.tmp")); !os.IsNotExist(err) {
		t.Errorf("tmp file left behind: %v", err)
	}

	reloaded := NewFuel(dir, nil)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if !reflect.DeepEqual(reloaded.Snapshot(), s.Snapshot()) {
		t.Errorf("reloaded snapshot differs:\n%+v\n%+v", reloaded.Snapshot(), s.Snapshot())
	}
	if dead, ok := reloaded.Get("dead"); !ok || !dead.Removed() || dead.Date != 3 {
		t.Errorf("tombstone not persisted: %+v ok=%v", dead, ok)
	}
}
