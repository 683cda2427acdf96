package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedPayload is returned for drag data that is neither a pending
// nor a placed payload.
var ErrMalformedPayload = errors.New("malformed drag payload")

// PayloadKind tags the two payload variants on the wire.
type PayloadKind string

const (
	KindPending PayloadKind = "pending"
	KindPlaced  PayloadKind = "placed"
)

// DragPayload is what a drag gesture carries: either a PendingPayload (from
// the pool) or a PlacedPayload (from an occupied slot). The interface is
// sealed; no other implementations exist.
type DragPayload interface {
	Kind() PayloadKind
	ItemID() int
	sealed()
}

// PendingPayload originates from the unplaced pool.
type PendingPayload struct {
	AudioItemID int
	Item        Item
}

// PlacedPayload originates from an occupied slot.
type PlacedPayload struct {
	AudioItemID int
	Item        Item
	From        Slot
}

func (PendingPayload) Kind() PayloadKind { return KindPending }
func (p PendingPayload) ItemID() int     { return p.AudioItemID }
func (PendingPayload) sealed()           {}

func (PlacedPayload) Kind() PayloadKind { return KindPlaced }
func (p PlacedPayload) ItemID() int     { return p.AudioItemID }
func (PlacedPayload) sealed()           {}

// wirePayload is the JSON shape carried in dataTransfer "text/plain".
type wirePayload struct {
	Type      PayloadKind `json:"type"`
	AudioID   flexInt     `json:"audioId"`
	AudioData *Item       `json:"audioData,omitempty"`
	GroupID   *flexInt    `json:"groupId,omitempty"`
	SlotIndex *flexInt    `json:"slotIndex,omitempty"`
}

// flexInt accepts both 3 and "3"; DOM datasets hand slot coordinates over
// as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// ParsePayload decodes drag data. Besides the tagged JSON form it accepts a
// bare numeric audio id, the legacy pending form.
func ParsePayload(data []byte) (DragPayload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedPayload)
	}

	if id, err := strconv.Atoi(string(trimmed)); err == nil {
		if id <= 0 {
			return nil, fmt.Errorf("%w: non-positive id %d", ErrMalformedPayload, id)
		}
		return PendingPayload{AudioItemID: id}, nil
	}

	var w wirePayload
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if w.AudioID <= 0 {
		return nil, fmt.Errorf("%w: missing audioId", ErrMalformedPayload)
	}

	var item Item
	if w.AudioData != nil {
		item = *w.AudioData
	}

	switch w.Type {
	case KindPending:
		return PendingPayload{AudioItemID: int(w.AudioID), Item: item}, nil
	case KindPlaced:
		if w.GroupID == nil || w.SlotIndex == nil {
			return nil, fmt.Errorf("%w: placed payload without source slot", ErrMalformedPayload)
		}
		return PlacedPayload{
			AudioItemID: int(w.AudioID),
			Item:        item,
			From:        Slot{GroupID: int(*w.GroupID), Index: int(*w.SlotIndex)},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedPayload, w.Type)
	}
}

// EncodePayload is the inverse of ParsePayload for the tagged form.
func EncodePayload(p DragPayload) ([]byte, error) {
	switch v := p.(type) {
	case PendingPayload:
		item := v.Item
		return json.Marshal(wirePayload{Type: KindPending, AudioID: flexInt(v.AudioItemID), AudioData: &item})
	case PlacedPayload:
		item := v.Item
		g, s := flexInt(v.From.GroupID), flexInt(v.From.Index)
		return json.Marshal(wirePayload{
			Type:      KindPlaced,
			AudioID:   flexInt(v.AudioItemID),
			AudioData: &item,
			GroupID:   &g,
			SlotIndex: &s,
		})
	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", ErrMalformedPayload, p)
	}
}
