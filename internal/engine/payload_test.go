package engine

import (
	"errors"
	"testing"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantKind PayloadKind
		wantID   int
		wantFrom Slot
		wantErr  bool
	}{
		{
			name:     "pending",
			data:     `{"type":"pending","audioId":3,"audioData":{"id":3,"fileName":"a.wav","originalName":"Dog","correctGroupId":1}}`,
			wantKind: KindPending,
			wantID:   3,
		},
		{
			name:     "placed with numeric slot",
			data:     `{"type":"placed","audioId":4,"groupId":2,"slotIndex":1}`,
			wantKind: KindPlaced,
			wantID:   4,
			wantFrom: Slot{GroupID: 2, Index: 1},
		},
		{
			name:     "placed with dataset strings",
			data:     `{"type":"placed","audioId":"4","groupId":"2","slotIndex":"0"}`,
			wantKind: KindPlaced,
			wantID:   4,
			wantFrom: Slot{GroupID: 2, Index: 0},
		},
		{
			name:     "legacy bare id",
			data:     " 12\n",
			wantKind: KindPending,
			wantID:   12,
		},
		{name: "empty", data: "", wantErr: true},
		{name: "garbage", data: "not a payload", wantErr: true},
		{name: "unknown tag", data: `{"type":"dragging","audioId":1}`, wantErr: true},
		{name: "missing id", data: `{"type":"pending"}`, wantErr: true},
		{name: "negative bare id", data: "-1", wantErr: true},
		{name: "placed without slot", data: `{"type":"placed","audioId":1}`, wantErr: true},
		{name: "bad slot string", data: `{"type":"placed","audioId":1,"groupId":"x","slotIndex":0}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("ParsePayload() error = %v; want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePayload() error = %v", err)
			}
			if p.Kind() != tt.wantKind {
				t.Errorf("Kind() = %q; want %q", p.Kind(), tt.wantKind)
			}
			if p.ItemID() != tt.wantID {
				t.Errorf("ItemID() = %d; want %d", p.ItemID(), tt.wantID)
			}
			if placed, ok := p.(PlacedPayload); ok && placed.From != tt.wantFrom {
				t.Errorf("From = %v; want %v", placed.From, tt.wantFrom)
			}
		})
	}
}

func TestEncodePayload_Placed(t *testing.T) {
	in := PlacedPayload{
		AudioItemID: 5,
		Item:        testItem(5, 2),
		From:        Slot{GroupID: 2, Index: 1},
	}

	data, err := EncodePayload(in)
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}
	out, err := ParsePayload(data)
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	got, ok := out.(PlacedPayload)
	if !ok {
		t.Fatalf("ParsePayload() = %T; want PlacedPayload", out)
	}
	if got.From != in.From || got.Item.CorrectGroupID != 2 || got.Item.Source != in.Item.Source {
		t.Errorf("decoded = %+v; want %+v", got, in)
	}
}
