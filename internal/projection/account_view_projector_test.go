package projection

import (
	"context"
	"testing"

	"github.com/hyprbank/ledger/shared/events"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingInvalidator struct {
	invalidated []string
}

func (r *recordingInvalidator) InvalidateAccountView(_ context.Context, number string) {
	r.invalidated = append(r.invalidated, number)
}

func TestHandle(t *testing.T) {
	inv := &recordingInvalidator{}
	p := NewAccountViewProjector(inv, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name    string
		event   events.Event
		wantErr bool
	}{
		{
			name: "balance update invalidates",
			event: events.Event{Type: events.BalanceUpdated, Data: map[string]any{
				"accountNumber": "01000001", "newBalance": "10.00", "change": "5.00",
			}},
		},
		{
			name:  "movement events are ignored",
			event: events.Event{Type: events.MovementRecorded, Data: map[string]any{"accountNumber": "01000002"}},
		},
		{
			name:    "missing account number",
			event:   events.Event{Type: events.BalanceUpdated, Data: map[string]any{"newBalance": "1.00"}},
			wantErr: true,
		},
		{
			name:    "malformed payload",
			event:   events.Event{Type: events.BalanceUpdated, Data: "garbage"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		err := p.Handle(ctx, tt.event)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
		} else {
			assert.NoError(t, err, tt.name)
		}
	}
	assert.Equal(t, []string{"01000001"}, inv.invalidated)
}
