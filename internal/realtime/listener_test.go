package realtime

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/mitumba-market/api/internal/domain"
	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
)

func TestNewListenerRequiresProvider(t *testing.T) {
	_, err := NewListener(nil, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestNewListenerDefaultsAndBufferOption(t *testing.T) {
	listener, err := NewListener(&pfirestore.Provider{}, nil, WithBuffer(64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listener.buffer != 64 {
		t.Fatalf("expected buffer 64, got %d", listener.buffer)
	}
	if listener.logger == nil {
		t.Fatal("expected nop logger fallback")
	}

	listener, err = NewListener(&pfirestore.Provider{}, zap.NewNop(), WithBuffer(-1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listener.buffer != 16 {
		t.Fatalf("expected default buffer for non-positive option, got %d", listener.buffer)
	}
}

func TestSubscribeOrdersRequiresPartyUser(t *testing.T) {
	listener, err := NewListener(&pfirestore.Provider{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = listener.SubscribeOrders(context.Background(), domain.OrderParty{Role: domain.PartyBuyer})
	if err == nil {
		t.Fatal("expected error for missing party user id")
	}
}
