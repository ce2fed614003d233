package pairing

import (
	"errors"
	"testing"

	"github.com/askelund/dagsplan/internal/model"
)

type mapKV map[string]string

func (m mapKV) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
func (m mapKV) Set(key, value string) { m[key] = value }
func (m mapKV) Delete(key string)     { delete(m, key) }

type fakeDirectory map[int64]*model.Child

func (d fakeDirectory) GetByID(id int64) (*model.Child, error) {
	return d[id], nil
}

func testChild() *model.Child {
	return &model.Child{
		ID:          7,
		ParentID:    3,
		DisplayName: "Emma",
		Avatar:      "unicorn",
		PINCode:     "4821",
	}
}

func newTestGate() (*Gate, mapKV) {
	kv := mapKV{}
	dir := fakeDirectory{7: testChild()}
	return NewGate(kv, dir), kv
}

func TestGateStartsUnpaired(t *testing.T) {
	g, _ := newTestGate()
	if g.State() != Unpaired {
		t.Errorf("state = %v, want Unpaired", g.State())
	}
}

func TestPairTransition(t *testing.T) {
	g, kv := newTestGate()

	g.Pair(7, 3)
	if g.State() != Paired {
		t.Errorf("state = %v, want Paired", g.State())
	}
	if kv[KeyDeviceChildID] != "7" || kv[KeyDeviceParentID] != "3" {
		t.Errorf("stored pairing = %q/%q, want 7/3", kv[KeyDeviceChildID], kv[KeyDeviceParentID])
	}

	id, ok := g.PairedChildID()
	if !ok || id != 7 {
		t.Errorf("PairedChildID = %d, %v, want 7, true", id, ok)
	}
}

func TestCorrectPINActivatesSession(t *testing.T) {
	g, _ := newTestGate()
	g.Pair(7, 3)

	marker, err := g.EnterPIN("4821")
	if err != nil {
		t.Fatalf("EnterPIN: %v", err)
	}
	if g.State() != SessionActive {
		t.Errorf("state = %v, want SessionActive", g.State())
	}
	if marker.ID != 7 || marker.DisplayName != "Emma" || marker.Avatar != "unicorn" || marker.ParentID != 3 {
		t.Errorf("unexpected marker: %+v", marker)
	}

	got, ok := g.Session()
	if !ok || got.ID != 7 {
		t.Errorf("Session = %+v, %v", got, ok)
	}
}

func TestWrongPINStaysPaired(t *testing.T) {
	g, _ := newTestGate()
	g.Pair(7, 3)

	wrong := []string{"0000", "4822", "1234"}
	for _, pin := range wrong {
		if _, err := g.EnterPIN(pin); !errors.Is(err, ErrWrongPIN) {
			t.Errorf("EnterPIN(%q) err = %v, want ErrWrongPIN", pin, err)
		}
		if g.State() != Paired {
			t.Errorf("state after wrong PIN = %v, want Paired", g.State())
		}
	}
}

func TestMalformedPINRejected(t *testing.T) {
	g, _ := newTestGate()
	g.Pair(7, 3)

	for _, pin := range []string{"", "482", "48211", "48a1"} {
		if _, err := g.EnterPIN(pin); !errors.Is(err, ErrInvalidPIN) {
			t.Errorf("EnterPIN(%q) err = %v, want ErrInvalidPIN", pin, err)
		}
	}
}

func TestEnterPINRequiresPairing(t *testing.T) {
	g, _ := newTestGate()
	if _, err := g.EnterPIN("4821"); !errors.Is(err, ErrNotPaired) {
		t.Errorf("err = %v, want ErrNotPaired", err)
	}
}

func TestEnterPINMissingChild(t *testing.T) {
	kv := mapKV{}
	g := NewGate(kv, fakeDirectory{})
	g.Pair(7, 3)

	if _, err := g.EnterPIN("4821"); !errors.Is(err, ErrChildNotFound) {
		t.Errorf("err = %v, want ErrChildNotFound", err)
	}
}

func TestLogoutKeepsPairing(t *testing.T) {
	g, _ := newTestGate()
	g.Pair(7, 3)
	g.EnterPIN("4821")

	g.Logout()
	if g.State() != Paired {
		t.Errorf("state after logout = %v, want Paired", g.State())
	}

	// Idempotent.
	g.Logout()
	if g.State() != Paired {
		t.Errorf("state after second logout = %v, want Paired", g.State())
	}
}

func TestResetClearsEverything(t *testing.T) {
	g, kv := newTestGate()
	g.Pair(7, 3)
	g.EnterPIN("4821")

	g.Reset()
	if g.State() != Unpaired {
		t.Errorf("state after reset = %v, want Unpaired", g.State())
	}
	if len(kv) != 0 {
		t.Errorf("storage not empty after reset: %v", kv)
	}

	// Idempotent.
	g.Reset()
	if g.State() != Unpaired {
		t.Errorf("state after second reset = %v, want Unpaired", g.State())
	}
}

func TestRepairDropsSession(t *testing.T) {
	g, _ := newTestGate()
	g.Pair(7, 3)
	g.EnterPIN("4821")

	g.Pair(7, 3)
	if g.State() != Paired {
		t.Errorf("state after re-pair = %v, want Paired", g.State())
	}
}
