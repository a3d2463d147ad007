// Package state holds the in-memory model of the pedal's current patch.
package state

import (
	"errors"
	"fmt"
)

// ErrUnknownSlot is returned when a toggle targets a chain position that
// does not exist in the current snapshot.
var ErrUnknownSlot = errors.New("unknown effect slot")

// EffectSlot is one position in the effect chain. Index 0 is the fixed
// input stage: it is stored like any other slot but renderers skip it.
type EffectSlot struct {
	Index    int    `json:"index"`
	EffectID uint32 `json:"effectId"`
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
}

// PatchSnapshot is an immutable view of the patch chain. A new snapshot
// replaces the previous one wholesale; the slot slice is never mutated
// after construction.
type PatchSnapshot struct {
	PatchName string       `json:"patchName"`
	Slots     []EffectSlot `json:"slots"`
}

// VisibleEffects returns the renderable slots, skipping the input stage.
func (p *PatchSnapshot) VisibleEffects() []EffectSlot {
	if len(p.Slots) <= 1 {
		return nil
	}
	return p.Slots[1:]
}

// Model is the authoritative holder of the current chain state.
// All methods must be called from a single goroutine (the coordinator).
type Model struct {
	snapshot *PatchSnapshot
}

func NewModel() *Model {
	return &Model{}
}

// Snapshot returns the current snapshot, or nil when no patch is known.
func (m *Model) Snapshot() *PatchSnapshot {
	return m.snapshot
}

// Clear drops the current snapshot. Used on pedal detach so stale state is
// never rendered as current.
func (m *Model) Clear() {
	m.snapshot = nil
}

// ApplyFullChain replaces the entire chain with the slots from a decoded
// full-chain reply. Slot indexes are renumbered contiguously from 0.
func (m *Model) ApplyFullChain(patchName string, slots []EffectSlot) *PatchSnapshot {
	copied := make([]EffectSlot, len(slots))
	copy(copied, slots)
	for i := range copied {
		copied[i].Index = i
	}
	m.snapshot = &PatchSnapshot{PatchName: patchName, Slots: copied}
	return m.snapshot
}

// ApplySlotToggle flips a single slot's enabled flag and returns the new
// snapshot. The old snapshot is left untouched. Returns ErrUnknownSlot if
// the index is outside the current chain, e.g. a stale command racing a
// chain-length change.
func (m *Model) ApplySlotToggle(index int, enabled bool) (*PatchSnapshot, error) {
	if m.snapshot == nil {
		return nil, fmt.Errorf("toggle slot %d: %w", index, ErrUnknownSlot)
	}
	if index < 0 || index >= len(m.snapshot.Slots) {
		return nil, fmt.Errorf("toggle slot %d of %d: %w", index, len(m.snapshot.Slots), ErrUnknownSlot)
	}
	slots := make([]EffectSlot, len(m.snapshot.Slots))
	copy(slots, m.snapshot.Slots)
	slots[index].Enabled = enabled
	m.snapshot = &PatchSnapshot{PatchName: m.snapshot.PatchName, Slots: slots}
	return m.snapshot, nil
}
