package wireguard

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
)

// MaxPeersPerUser — жёсткая квота слотов на пользователя.
const MaxPeersPerUser = 3

// PeerStore — срез хранилища, нужный менеджеру.
type PeerStore interface {
	CountByUser(ctx context.Context, userID int64) (int, error)
	FirstByUser(ctx context.Context, userID int64) (*models.PeerConfig, error)
	ListByUser(ctx context.Context, userID int64) ([]models.PeerConfig, error)
	Create(ctx context.Context, p *models.PeerConfig) error
	UpdateKeys(ctx context.Context, configID uint, privateKey, publicKey string) error
	DeleteByUser(ctx context.Context, userID int64) error
	NextAddressOffset(ctx context.Context) (int, error)
	ActiveCount(ctx context.Context) (int, error)
}

// ClientConfig — готовый клиентский документ плюс поля для подписи/QR.
type ClientConfig struct {
	Text       string
	Address    string
	PublicKey  string
	PrivateKey string
}

// Manager — единственный компонент, которому позволено мутировать таблицу
// пиров control plane. Гарантия: control plane и хранилище двигаются вместе
// (либо оба обновлены, либо — при раннем отказе — ни один).
type Manager struct {
	peers PeerStore
	cp    ControlPlane
	cfg   *config.Config
	log   *logrus.Entry
	locks *userLocks

	// alloc держит выдачу адреса атомарной: чтение max(config_id) и
	// вставка строки должны идти парой, иначе два пользователя получат
	// один адрес. Пер-пользовательских локов для этого недостаточно.
	alloc sync.Mutex
}

func NewManager(peers PeerStore, cp ControlPlane, cfg *config.Config, log *logrus.Entry) *Manager {
	return &Manager{peers: peers, cp: cp, cfg: cfg, log: log, locks: newUserLocks()}
}

// Provision выделяет пользователю новый слот: свежая пара ключей, адрес из
// пула, регистрация в control plane, запись в хранилище. Проверка подписки —
// забота вызывающего; здесь только квота и аллокация.
func (m *Manager) Provision(ctx context.Context, userID int64) (*ClientConfig, error) {
	unlock := m.locks.lock(userID)
	defer unlock()
	return m.provisionLocked(ctx, userID)
}

func (m *Manager) provisionLocked(ctx context.Context, userID int64) (*ClientConfig, error) {
	count, err := m.peers.CountByUser(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "count peers", Err: err}
	}
	if count >= MaxPeersPerUser {
		return nil, ErrQuotaExceeded
	}

	m.alloc.Lock()
	defer m.alloc.Unlock()

	offset, err := m.peers.NextAddressOffset(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "next address", Err: err}
	}
	address, err := hostAddress(m.cfg.WireGuard.Subnet, offset)
	if err != nil {
		return nil, err
	}

	priv, pub, err := m.freshKeypair(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.registerPeer(ctx, pub, address); err != nil {
		return nil, err
	}

	rec := &models.PeerConfig{
		UserID:     userID,
		PrivateKey: priv,
		PublicKey:  pub,
		Address:    address,
	}
	if err := m.peers.Create(ctx, rec); err != nil {
		// control plane уже обновлён — окно расхождения, кандидат
		// на следующий reconcile
		m.log.WithError(err).WithField("user_id", userID).
			Error("peer registered in control plane but not persisted")
		return nil, &PersistenceError{Op: "create peer", Err: err}
	}

	m.log.WithFields(logrus.Fields{"user_id": userID, "address": address}).
		Info("provisioned new peer")
	return m.render(priv, pub, address), nil
}

// refreshSlot перевыпускает ключи конкретного слота; адрес сохраняется.
// Вызывается только под пер-пользовательским локом (из IssueConfig).
// Старый публичный ключ снимается до регистрации нового: протухший ключ не
// должен остаться в control plane, даже если следующий шаг упадёт (редкая
// деградация "пользователь без пира" принята осознанно, не маскируется).
func (m *Manager) refreshSlot(ctx context.Context, userID int64, slot *models.PeerConfig) (*ClientConfig, error) {
	if err := m.cp.RemovePeer(ctx, slot.PublicKey); err != nil {
		return nil, err
	}

	priv, pub, err := m.freshKeypair(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.registerPeer(ctx, pub, slot.Address); err != nil {
		return nil, err
	}

	if err := m.peers.UpdateKeys(ctx, slot.ConfigID, priv, pub); err != nil {
		m.log.WithError(err).WithField("user_id", userID).
			Error("refreshed peer in control plane but not persisted")
		return nil, &PersistenceError{Op: "update keys", Err: err}
	}

	m.log.WithFields(logrus.Fields{"user_id": userID, "address": slot.Address}).
		Info("refreshed peer keys")
	return m.render(priv, pub, slot.Address), nil
}

// IssueConfig — семантика кнопки "получить конфиг": если слот уже есть,
// перевыпускаем ключи первого (по порядку создания), иначе выделяем новый.
func (m *Manager) IssueConfig(ctx context.Context, userID int64) (*ClientConfig, error) {
	unlock := m.locks.lock(userID)
	defer unlock()

	count, err := m.peers.CountByUser(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "count peers", Err: err}
	}
	if count >= MaxPeersPerUser {
		return nil, ErrQuotaExceeded
	}

	existing, err := m.peers.FirstByUser(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "lookup peer", Err: err}
	}
	if existing != nil {
		return m.refreshSlot(ctx, userID, existing)
	}
	return m.provisionLocked(ctx, userID)
}

// Revoke снимает один пир по публичному ключу. Идемпотентен: повторный
// отзыв или отзыв никогда не выдававшегося ключа — no-op, потому что
// reconcile может гоняться с ручными действиями администратора.
func (m *Manager) Revoke(ctx context.Context, publicKey string) error {
	if err := m.cp.RemovePeer(ctx, publicKey); err != nil {
		return err
	}
	return m.cp.Save(ctx)
}

// RevokeUser снимает все слоты пользователя: сначала control plane,
// затем записи хранилища.
func (m *Manager) RevokeUser(ctx context.Context, userID int64) error {
	unlock := m.locks.lock(userID)
	defer unlock()

	slots, err := m.peers.ListByUser(ctx, userID)
	if err != nil {
		return &PersistenceError{Op: "list peers", Err: err}
	}
	for _, slot := range slots {
		if err := m.Revoke(ctx, slot.PublicKey); err != nil {
			return err
		}
	}
	if err := m.peers.DeleteByUser(ctx, userID); err != nil {
		m.log.WithError(err).WithField("user_id", userID).
			Error("peers removed from control plane but records remain")
		return &PersistenceError{Op: "delete peers", Err: err}
	}
	return nil
}

// ActivePeerCount — для health/статистики.
func (m *Manager) ActivePeerCount(ctx context.Context) (int, error) {
	return m.peers.ActiveCount(ctx)
}

// SlotCount — занятые слоты пользователя.
func (m *Manager) SlotCount(ctx context.Context, userID int64) (int, error) {
	return m.peers.CountByUser(ctx, userID)
}

// ---- внутренности ----

func (m *Manager) freshKeypair(ctx context.Context) (priv, pub string, err error) {
	priv, err = m.cp.GeneratePrivateKey(ctx)
	if err != nil {
		return "", "", err
	}
	pub, err = m.cp.DerivePublicKey(ctx, priv)
	if err != nil {
		return "", "", err
	}
	return priv, pub, nil
}

// registerPeer добавляет ключ ровно с одним /32 и фиксирует состояние.
func (m *Manager) registerPeer(ctx context.Context, publicKey, address string) error {
	if err := m.cp.AddPeer(ctx, publicKey, address+"/32"); err != nil {
		return err
	}
	return m.cp.Save(ctx)
}

func (m *Manager) render(privateKey, publicKey, address string) *ClientConfig {
	wg := m.cfg.WireGuard
	var b strings.Builder
	fmt.Fprintf(&b, "[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", privateKey)
	fmt.Fprintf(&b, "Address = %s/32\n", address)
	fmt.Fprintf(&b, "DNS = %s\n", wg.DNS)
	fmt.Fprintf(&b, "\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", wg.ServerPublicKey)
	fmt.Fprintf(&b, "AllowedIPs = 0.0.0.0/0\n")
	fmt.Fprintf(&b, "Endpoint = %s:%d\n", wg.ServerHost, wg.ServerPort)
	fmt.Fprintf(&b, "PersistentKeepalive = %d\n", wg.Keepalive)
	return &ClientConfig{Text: b.String(), Address: address, PublicKey: publicKey, PrivateKey: privateKey}
}

// hostAddress собирает IPv4-адрес из базы пула и хостового индекса.
func hostAddress(cidr string, host int) (string, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", fmt.Errorf("bad subnet %q: %w", cidr, err)
	}
	base := ipnet.IP.To4()
	if base == nil {
		return "", fmt.Errorf("only IPv4 pools are supported: %s", cidr)
	}
	return net.IPv4(base[0], base[1], base[2], byte(host)).String(), nil
}
