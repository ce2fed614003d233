package pairing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/askelund/dagsplan/internal/model"
)

// State of the device gate.
type State int

const (
	// Unpaired: the device is not bound to any child.
	Unpaired State = iota
	// Paired: the device is bound to one child; no child is signed in.
	Paired
	// SessionActive: a child has entered the correct PIN on this device.
	SessionActive
)

func (s State) String() string {
	switch s {
	case Paired:
		return "paired"
	case SessionActive:
		return "session_active"
	default:
		return "unpaired"
	}
}

// Storage keys. The device keys survive restarts; the session key is scoped
// to the current session and vanishes with it.
const (
	KeyDeviceChildID  = "device_child_id"
	KeyDeviceParentID = "device_parent_id"
	KeyChildSession   = "child_session"
)

var (
	ErrNotPaired     = errors.New("device is not paired to a child")
	ErrInvalidPIN    = errors.New("PIN must be exactly 4 digits")
	ErrWrongPIN      = errors.New("wrong PIN")
	ErrChildNotFound = errors.New("paired child no longer exists")
)

// KV is the device-local storage the gate persists its state in. Handlers
// back it with cookies; tests back it with a map.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// ChildDirectory resolves a paired child id to its current record.
type ChildDirectory interface {
	GetByID(id int64) (*model.Child, error)
}

// SessionMarker is the ephemeral proof of a successful PIN entry.
type SessionMarker struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	ParentID    int64  `json:"parent_id"`
}

// Gate binds a physical device to one child profile and gates child access
// behind that child's PIN. All state lives in the injected KV, so a Gate can
// be constructed per request.
type Gate struct {
	kv       KV
	children ChildDirectory
}

func NewGate(kv KV, children ChildDirectory) *Gate {
	return &Gate{kv: kv, children: children}
}

// State derives the current gate state from storage.
func (g *Gate) State() State {
	if _, ok := g.kv.Get(KeyChildSession); ok {
		if _, paired := g.kv.Get(KeyDeviceChildID); paired {
			return SessionActive
		}
		// Stale marker without a pairing, treat as unpaired.
		g.kv.Delete(KeyChildSession)
		return Unpaired
	}
	if _, ok := g.kv.Get(KeyDeviceChildID); ok {
		return Paired
	}
	return Unpaired
}

// Pair binds the device to a child. Any existing child session is dropped;
// logging the parent out of the device is the caller's responsibility.
func (g *Gate) Pair(childID, parentID int64) {
	g.kv.Set(KeyDeviceChildID, strconv.FormatInt(childID, 10))
	g.kv.Set(KeyDeviceParentID, strconv.FormatInt(parentID, 10))
	g.kv.Delete(KeyChildSession)
}

// PairedChildID returns the bound child id, if any.
func (g *Gate) PairedChildID() (int64, bool) {
	v, ok := g.kv.Get(KeyDeviceChildID)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// EnterPIN attempts the Paired -> SessionActive transition. The input must be
// exactly 4 digits and is compared byte-for-byte against the child's stored
// pin code. On a mismatch the gate stays Paired and the caller clears the
// entered input; there is no lockout.
func (g *Gate) EnterPIN(pin string) (*SessionMarker, error) {
	childID, ok := g.PairedChildID()
	if !ok {
		return nil, ErrNotPaired
	}

	if len(pin) != 4 || !isDigits(pin) {
		return nil, ErrInvalidPIN
	}

	child, err := g.children.GetByID(childID)
	if err != nil {
		return nil, fmt.Errorf("look up paired child: %w", err)
	}
	if child == nil {
		return nil, ErrChildNotFound
	}

	if child.PINCode != pin {
		return nil, ErrWrongPIN
	}

	marker := &SessionMarker{
		ID:          child.ID,
		DisplayName: child.DisplayName,
		Avatar:      child.Avatar,
		ParentID:    child.ParentID,
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return nil, fmt.Errorf("marshal session marker: %w", err)
	}
	g.kv.Set(KeyChildSession, string(data))
	return marker, nil
}

// Session returns the active session marker, if a child is signed in.
func (g *Gate) Session() (*SessionMarker, bool) {
	v, ok := g.kv.Get(KeyChildSession)
	if !ok {
		return nil, false
	}
	var marker SessionMarker
	if err := json.Unmarshal([]byte(v), &marker); err != nil {
		g.kv.Delete(KeyChildSession)
		return nil, false
	}
	return &marker, true
}

// Logout drops the child session but keeps the pairing. Idempotent.
func (g *Gate) Logout() {
	g.kv.Delete(KeyChildSession)
}

// Reset returns the device to Unpaired, clearing the pairing and any session.
// Idempotent. The deliberate long-press confirmation lives in the client; the
// server only honors the confirmed call.
func (g *Gate) Reset() {
	g.kv.Delete(KeyDeviceChildID)
	g.kv.Delete(KeyDeviceParentID)
	g.kv.Delete(KeyChildSession)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
