package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/listenex/internal/domain"
)

var (
	ErrSlotOccupied = errors.New("slot already occupied")
	ErrNotPlaced    = errors.New("item is not placed")
)

// Slot addresses one placement position inside a group.
type Slot struct {
	GroupID int `json:"groupId"`
	Index   int `json:"slotIndex"`
}

func (s Slot) String() string {
	return fmt.Sprintf("group %d slot %d", s.GroupID, s.Index)
}

// Item is an audio item augmented with the group it was authored under.
// CorrectGroupID is fixed when the pool is built and is the scoring oracle.
type Item struct {
	domain.AudioItem
	CorrectGroupID int `json:"correctGroupId"`
}

// Placement binds one item to one slot.
type Placement struct {
	Slot
	CorrectGroupID int  `json:"correctGroupId"`
	Item           Item `json:"audioData"`
}

// ItemID returns the id of the placed item.
func (p Placement) ItemID() int { return p.Item.ID }

// Correct reports whether the item sits in its authored group.
func (p Placement) Correct() bool { return p.GroupID == p.CorrectGroupID }

// Store is the authoritative item→slot mapping. It keeps two indexes so that
// both "where is item X" and "who is in slot S" are O(1), and it never lets
// them disagree. Store is not safe for concurrent use; the Engine serialises
// access.
type Store struct {
	byItem map[int]*Placement
	bySlot map[Slot]int
}

// NewStore creates an empty placement store.
func NewStore() *Store {
	return &Store{
		byItem: make(map[int]*Placement),
		bySlot: make(map[Slot]int),
	}
}

// Place puts item into slot. If the item is already placed elsewhere it is
// moved. Placing onto a slot held by a different item fails with
// ErrSlotOccupied; callers evict first.
func (s *Store) Place(item Item, slot Slot) error {
	if occupant, ok := s.bySlot[slot]; ok && occupant != item.ID {
		return fmt.Errorf("place item %d on %s: %w", item.ID, slot, ErrSlotOccupied)
	}
	if existing, ok := s.byItem[item.ID]; ok {
		delete(s.bySlot, existing.Slot)
	}
	s.byItem[item.ID] = &Placement{
		Slot:           slot,
		CorrectGroupID: item.CorrectGroupID,
		Item:           item,
	}
	s.bySlot[slot] = item.ID
	return nil
}

// Remove deletes the placement for itemID and returns it. The caller owns
// returning the item to the pending pool.
func (s *Store) Remove(itemID int) (Placement, bool) {
	p, ok := s.byItem[itemID]
	if !ok {
		return Placement{}, false
	}
	delete(s.byItem, itemID)
	delete(s.bySlot, p.Slot)
	return *p, true
}

// Get returns the placement of itemID.
func (s *Store) Get(itemID int) (Placement, bool) {
	p, ok := s.byItem[itemID]
	if !ok {
		return Placement{}, false
	}
	return *p, true
}

// FindBySlot returns the placement occupying slot.
func (s *Store) FindBySlot(slot Slot) (Placement, bool) {
	id, ok := s.bySlot[slot]
	if !ok {
		return Placement{}, false
	}
	return *s.byItem[id], true
}

// Swap exchanges the slots of two placed items.
func (s *Store) Swap(a, b int) error {
	pa, ok := s.byItem[a]
	if !ok {
		return fmt.Errorf("swap item %d: %w", a, ErrNotPlaced)
	}
	pb, ok := s.byItem[b]
	if !ok {
		return fmt.Errorf("swap item %d: %w", b, ErrNotPlaced)
	}
	pa.Slot, pb.Slot = pb.Slot, pa.Slot
	s.bySlot[pa.Slot] = a
	s.bySlot[pb.Slot] = b
	return nil
}

// Len returns the number of placements.
func (s *Store) Len() int { return len(s.byItem) }

// IsComplete reports whether every item of the document is placed.
func (s *Store) IsComplete(totalItems int) bool {
	return len(s.byItem) == totalItems
}

// Score counts placements whose group matches their correct group.
func (s *Store) Score() domain.Score {
	correct := 0
	for _, p := range s.byItem {
		if p.Correct() {
			correct++
		}
	}
	return domain.NewScore(correct, len(s.byItem))
}

// Snapshot returns all placements ordered by group id then slot index.
func (s *Store) Snapshot() []Placement {
	out := make([]Placement, 0, len(s.byItem))
	for _, p := range s.byItem {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupID != out[j].GroupID {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// Records converts the store into its persisted form.
func (s *Store) Records() []domain.PlacementRecord {
	snap := s.Snapshot()
	out := make([]domain.PlacementRecord, 0, len(snap))
	for _, p := range snap {
		out = append(out, domain.PlacementRecord{
			AudioItemID:    p.ItemID(),
			Label:          p.Item.Label(),
			GroupID:        p.GroupID,
			SlotIndex:      p.Index,
			CorrectGroupID: p.CorrectGroupID,
			Correct:        p.Correct(),
		})
	}
	return out
}

// Clear removes every placement.
func (s *Store) Clear() {
	s.byItem = make(map[int]*Placement)
	s.bySlot = make(map[Slot]int)
}
