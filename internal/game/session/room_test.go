package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSlotLabel_Other(t *testing.T) {
	assert.Equal(t, SlotB, SlotA.Other())
	assert.Equal(t, SlotA, SlotB.Other())
}

func TestParseSlotLabel(t *testing.T) {
	label, ok := ParseSlotLabel("A")
	require.True(t, ok)
	assert.Equal(t, SlotA, label)

	label, ok = ParseSlotLabel("B")
	require.True(t, ok)
	assert.Equal(t, SlotB, label)

	for _, bad := range []string{"", "a", "C", "AB", "red"} {
		_, ok := ParseSlotLabel(bad)
		assert.False(t, ok, "%q must not parse", bad)
	}
}

func TestRoom_FreeSlotOrder(t *testing.T) {
	r := newRoom("TEST01")

	label, free := r.freeSlot()
	require.True(t, free)
	assert.Equal(t, SlotA, label, "seat A fills first")

	r.Players[SlotA] = &Player{Label: SlotA}
	label, free = r.freeSlot()
	require.True(t, free)
	assert.Equal(t, SlotB, label)

	r.Players[SlotB] = &Player{Label: SlotB}
	_, free = r.freeSlot()
	assert.False(t, free)
}

func TestRoom_RefreshState(t *testing.T) {
	r := newRoom("TEST01")
	r.Players[SlotA] = &Player{Label: SlotA, Connected: true}
	r.refreshState()
	assert.Equal(t, StateAwaitingOpponent, r.state)

	r.Players[SlotB] = &Player{Label: SlotB, Connected: true}
	r.refreshState()
	assert.Equal(t, StateActive, r.state)

	r.Players[SlotB].Connected = false
	r.refreshState()
	assert.Equal(t, StateDegraded, r.state)

	r.Players[SlotB].Connected = true
	r.refreshState()
	assert.Equal(t, StateActive, r.state)

	r.state = StateTerminated
	r.refreshState()
	assert.Equal(t, StateTerminated, r.state, "terminated is sticky")
}

func TestRoom_RosterOrder(t *testing.T) {
	r := newRoom("TEST01")
	r.Players[SlotB] = &Player{Label: SlotB, DisplayName: "Bob", Connected: true}
	r.Players[SlotA] = &Player{Label: SlotA, DisplayName: "Alice", Connected: false}

	roster := r.roster()
	require.Len(t, roster, 2)
	assert.Equal(t, SlotA, roster[0].SlotLabel)
	assert.False(t, roster[0].Connected)
	assert.Equal(t, SlotB, roster[1].SlotLabel)
}

func TestRoom_ObjectStateCopyIsDetached(t *testing.T) {
	r := newRoom("TEST01")
	r.ObjectState["ship1"] = json.RawMessage(`{"pos":[1,2,3]}`)

	snap := r.objectStateCopy()
	snap["ship2"] = json.RawMessage(`{}`)

	assert.Len(t, r.ObjectState, 1, "mutating the snapshot must not touch the room")
}

// Property: over any number of completed turns, the counter increases by
// exactly one per turn and the active seat strictly alternates from A.
func TestRoom_TurnAlternation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := newRoom("PROP01")
		turns := rapid.IntRange(0, 200).Draw(t, "turns")

		for i := 0; i < turns; i++ {
			before := r.TurnNumber
			active := r.Turn
			r.advanceTurn()
			if r.TurnNumber != before+1 {
				t.Fatalf("turn %d: counter jumped from %d to %d", i, before, r.TurnNumber)
			}
			if r.Turn != active.Other() {
				t.Fatalf("turn %d: expected alternation from %s, got %s", i, active, r.Turn)
			}
		}

		expected := SlotA
		if turns%2 == 1 {
			expected = SlotB
		}
		if r.Turn != expected || r.TurnNumber != turns+1 {
			t.Fatalf("after %d turns: turn=%s number=%d", turns, r.Turn, r.TurnNumber)
		}
	})
}
