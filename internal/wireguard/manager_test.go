package wireguard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/repo"
)

type fakeControl struct {
	mu      sync.Mutex
	peers   map[string]string // pubkey -> allowed-ips
	keySeq  int
	saves   int
	failAdd bool
}

func newFakeControl() *fakeControl {
	return &fakeControl{peers: map[string]string{}}
}

func (f *fakeControl) GeneratePrivateKey(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keySeq++
	return fmt.Sprintf("priv-%d", f.keySeq), nil
}

func (f *fakeControl) DerivePublicKey(_ context.Context, priv string) (string, error) {
	return "pub-" + strings.TrimPrefix(priv, "priv-"), nil
}

func (f *fakeControl) AddPeer(_ context.Context, publicKey, allowedIPs string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd {
		return &ControlPlaneError{Op: "wg set", Err: errors.New("device not configured")}
	}
	f.peers[publicKey] = allowedIPs
	return nil
}

func (f *fakeControl) RemovePeer(_ context.Context, publicKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.peers, publicKey)
	return nil
}

func (f *fakeControl) Save(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return nil
}

func (f *fakeControl) has(publicKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.peers[publicKey]
	return ok
}

func (f *fakeControl) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.PeerConfig{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.WireGuard.Interface = "wg0"
	cfg.WireGuard.ServerHost = "vpn.example.org"
	cfg.WireGuard.ServerPort = 51820
	cfg.WireGuard.ServerPublicKey = "SRVPUBKEY"
	cfg.WireGuard.Subnet = "10.0.0.0/24"
	cfg.WireGuard.DNS = "8.8.8.8"
	cfg.WireGuard.Keepalive = 20
	return cfg
}

func testManager(t *testing.T) (*Manager, *repo.PeerStore, *fakeControl) {
	t.Helper()
	db := testDB(t)
	store := repo.NewPeerStore(db)
	cp := newFakeControl()
	log := logrus.NewEntry(logrus.New())
	log.Logger.SetOutput(nullWriter{})
	return NewManager(store, cp, testConfig(), log), store, cp
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestProvisionQuota(t *testing.T) {
	mgr, store, cp := testManager(t)
	ctx := context.Background()

	for i := 0; i < MaxPeersPerUser; i++ {
		if _, err := mgr.Provision(ctx, 42); err != nil {
			t.Fatalf("provision %d: %v", i+1, err)
		}
	}

	before := cp.count()
	if _, err := mgr.Provision(ctx, 42); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("want ErrQuotaExceeded, got %v", err)
	}
	if cp.count() != before {
		t.Fatalf("quota failure mutated control plane: %d -> %d", before, cp.count())
	}
	n, err := store.CountByUser(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if n != MaxPeersPerUser {
		t.Fatalf("quota failure mutated store: %d records", n)
	}
}

func TestProvisionAddressSequence(t *testing.T) {
	mgr, _, _ := testManager(t)
	ctx := context.Background()

	want := []string{"10.0.0.2", "10.0.0.3", "10.0.0.4"}
	for i, w := range want {
		cc, err := mgr.Provision(ctx, int64(100+i))
		if err != nil {
			t.Fatalf("provision: %v", err)
		}
		if cc.Address != w {
			t.Fatalf("address %d: want %s, got %s", i, w, cc.Address)
		}
	}
}

// Пер-пользовательский лок нарочно не сериализует разных пользователей,
// поэтому пару "прочитать max(config_id) + вставить строку" держит
// отдельный аллокаторный лок. Без него два одновременных запроса получают
// один и тот же адрес.
func TestProvisionConcurrentUniqueAddresses(t *testing.T) {
	mgr, store, _ := testManager(t)
	ctx := context.Background()

	const users = 16
	var wg sync.WaitGroup
	start := make(chan struct{})
	addrs := make([]string, users)
	errs := make([]error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			cc, err := mgr.Provision(ctx, int64(1000+i))
			if err != nil {
				errs[i] = err
				return
			}
			addrs[i] = cc.Address
		}(i)
	}
	close(start)
	wg.Wait()

	seen := map[string]int{}
	for i := 0; i < users; i++ {
		if errs[i] != nil {
			t.Fatalf("provision %d: %v", i, errs[i])
		}
		if prev, dup := seen[addrs[i]]; dup {
			t.Fatalf("address %s issued to users %d and %d", addrs[i], prev, i)
		}
		seen[addrs[i]] = i
	}
	n, err := store.ActiveCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != users {
		t.Fatalf("want %d records, got %d", users, n)
	}
}

func TestIssueConfigRefreshKeepsAddress(t *testing.T) {
	mgr, store, cp := testManager(t)
	ctx := context.Background()

	first, err := mgr.IssueConfig(ctx, 7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := mgr.IssueConfig(ctx, 7)
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}

	if second.Address != first.Address {
		t.Fatalf("refresh changed address: %s -> %s", first.Address, second.Address)
	}
	if second.PrivateKey == first.PrivateKey {
		t.Fatal("refresh reused private key")
	}
	if cp.has(first.PublicKey) {
		t.Fatal("stale public key still registered")
	}
	if !cp.has(second.PublicKey) {
		t.Fatal("fresh public key not registered")
	}
	n, _ := store.CountByUser(ctx, 7)
	if n != 1 {
		t.Fatalf("refresh must not add slots, got %d", n)
	}
}

func TestProvisionControlPlaneFailure(t *testing.T) {
	mgr, store, cp := testManager(t)
	ctx := context.Background()
	cp.failAdd = true

	_, err := mgr.Provision(ctx, 9)
	var cpe *ControlPlaneError
	if !errors.As(err, &cpe) {
		t.Fatalf("want ControlPlaneError, got %v", err)
	}
	n, _ := store.CountByUser(ctx, 9)
	if n != 0 {
		t.Fatalf("failed provision left %d records", n)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	mgr, _, _ := testManager(t)
	ctx := context.Background()

	cc, err := mgr.Provision(ctx, 5)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := mgr.Revoke(ctx, cc.PublicKey); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := mgr.Revoke(ctx, cc.PublicKey); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := mgr.Revoke(ctx, "never-issued"); err != nil {
		t.Fatalf("revoke of unknown key: %v", err)
	}
}

func TestRevokeUser(t *testing.T) {
	mgr, store, cp := testManager(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := mgr.Provision(ctx, 11); err != nil {
			t.Fatalf("provision: %v", err)
		}
	}
	if err := mgr.RevokeUser(ctx, 11); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	if cp.count() != 0 {
		t.Fatalf("control plane still has %d peers", cp.count())
	}
	n, _ := store.CountByUser(ctx, 11)
	if n != 0 {
		t.Fatalf("store still has %d slots", n)
	}
}

func TestClientConfigText(t *testing.T) {
	mgr, _, _ := testManager(t)
	ctx := context.Background()

	cc, err := mgr.Provision(ctx, 1)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	for _, want := range []string{
		"[Interface]",
		"PrivateKey = " + cc.PrivateKey,
		"Address = " + cc.Address + "/32",
		"DNS = 8.8.8.8",
		"[Peer]",
		"PublicKey = SRVPUBKEY",
		"AllowedIPs = 0.0.0.0/0",
		"Endpoint = vpn.example.org:51820",
		"PersistentKeepalive = 20",
	} {
		if !strings.Contains(cc.Text, want) {
			t.Fatalf("config missing %q:\n%s", want, cc.Text)
		}
	}
}
