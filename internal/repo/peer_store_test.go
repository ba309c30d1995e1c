package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
)

func TestNextAddressOffsetProgression(t *testing.T) {
	db := testDB(t)
	s := NewPeerStore(db)
	ctx := context.Background()

	off, err := s.NextAddressOffset(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if off != 2 {
		t.Fatalf("empty pool: want offset 2, got %d", off)
	}

	for i := 0; i < 3; i++ {
		p := models.PeerConfig{UserID: int64(i + 1), PrivateKey: "pk", PublicKey: fmt.Sprintf("pub-%d", i), Address: fmt.Sprintf("10.0.0.%d", i+2)}
		if err := s.Create(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}
	off, err = s.NextAddressOffset(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if off != 5 {
		t.Fatalf("after 3 peers: want offset 5, got %d", off)
	}
}

func TestNextAddressOffsetWrapsPool(t *testing.T) {
	db := testDB(t)
	s := NewPeerStore(db)
	ctx := context.Background()

	// config_id = 250 соответствует последнему индексу пула,
	// следующий адрес снова начинается с .2.
	p := models.PeerConfig{ConfigID: 250, UserID: 1, PrivateKey: "pk", PublicKey: "pub-250", Address: "10.0.0.251"}
	if err := s.Create(ctx, &p); err != nil {
		t.Fatal(err)
	}
	off, err := s.NextAddressOffset(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if off != 2 {
		t.Fatalf("wrap: want offset 2, got %d", off)
	}
}

func TestFirstByUserOrdering(t *testing.T) {
	db := testDB(t)
	s := NewPeerStore(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p := models.PeerConfig{UserID: 9, PrivateKey: "pk", PublicKey: fmt.Sprintf("pub-%d", i), Address: fmt.Sprintf("10.0.0.%d", i+2)}
		if err := s.Create(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}
	first, err := s.FirstByUser(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if first == nil || first.PublicKey != "pub-0" {
		t.Fatalf("want earliest slot pub-0, got %+v", first)
	}

	none, err := s.FirstByUser(ctx, 404)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Fatalf("no slots: want nil, got %+v", none)
	}
}

func TestUpdateKeysMissingSlot(t *testing.T) {
	db := testDB(t)
	s := NewPeerStore(db)

	err := s.UpdateKeys(context.Background(), 999, "new-priv", "new-pub")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteByUser(t *testing.T) {
	db := testDB(t)
	s := NewPeerStore(db)
	ctx := context.Background()

	givePeer(t, db, 1)
	givePeer(t, db, 2)

	if err := s.DeleteByUser(ctx, 1); err != nil {
		t.Fatal(err)
	}
	n, err := s.CountByUser(ctx, 1)
	if err != nil || n != 0 {
		t.Fatalf("user 1 slots after delete: n=%d err=%v", n, err)
	}
	n, err = s.CountByUser(ctx, 2)
	if err != nil || n != 1 {
		t.Fatalf("user 2 slots must survive: n=%d err=%v", n, err)
	}
}
