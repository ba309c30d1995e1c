package wireguard

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// ControlPlane — граница с работающим VPN-движком. Все мутации таблицы
// пиров и генерация ключей идут только через этот интерфейс; ключи никогда
// не выводятся алгоритмически внутри приложения.
type ControlPlane interface {
	GeneratePrivateKey(ctx context.Context) (string, error)
	DerivePublicKey(ctx context.Context, privateKey string) (string, error)
	AddPeer(ctx context.Context, publicKey, allowedIP string) error
	RemovePeer(ctx context.Context, publicKey string) error
	// Save сбрасывает текущее состояние интерфейса на диск, чтобы пиры
	// пережили рестарт wg-quick. Обязателен после каждого add/remove.
	Save(ctx context.Context) error
}

// ExecControlPlane гоняет бинарники wg/wg-quick через subprocess.
type ExecControlPlane struct {
	WGExec      string // /usr/bin/wg
	WGQuickExec string // /usr/bin/wg-quick
	Interface   string // wg0
	Timeout     time.Duration
}

func NewExecControlPlane(wgExec, wgQuickExec, iface string, timeout time.Duration) *ExecControlPlane {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExecControlPlane{WGExec: wgExec, WGQuickExec: wgQuickExec, Interface: iface, Timeout: timeout}
}

// run выполняет команду с жёстким таймаутом; stdin опционален.
func (c *ExecControlPlane) run(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%s timed out after %s", name, c.Timeout)
		}
		return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (c *ExecControlPlane) GeneratePrivateKey(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "", c.WGExec, "genkey")
	if err != nil {
		return "", &ControlPlaneError{Op: "genkey", Err: err}
	}
	return out, nil
}

func (c *ExecControlPlane) DerivePublicKey(ctx context.Context, privateKey string) (string, error) {
	out, err := c.run(ctx, privateKey, c.WGExec, "pubkey")
	if err != nil {
		return "", &ControlPlaneError{Op: "pubkey", Err: err}
	}
	return out, nil
}

func (c *ExecControlPlane) AddPeer(ctx context.Context, publicKey, allowedIP string) error {
	// формат ключа проверяем до запуска процесса — ошибка тут почти
	// наверняка означает порчу данных в хранилище
	if _, err := wgtypes.ParseKey(publicKey); err != nil {
		return &ControlPlaneError{Op: "set peer", Err: fmt.Errorf("bad public key: %w", err)}
	}
	if _, err := c.run(ctx, "", c.WGExec, "set", c.Interface, "peer", publicKey, "allowed-ips", allowedIP); err != nil {
		return &ControlPlaneError{Op: "set peer", Err: err}
	}
	return nil
}

func (c *ExecControlPlane) RemovePeer(ctx context.Context, publicKey string) error {
	if _, err := wgtypes.ParseKey(publicKey); err != nil {
		return &ControlPlaneError{Op: "remove peer", Err: fmt.Errorf("bad public key: %w", err)}
	}
	// wg молча игнорирует remove несуществующего пира — идемпотентность
	// получаем даром, отдельной проверки не нужно
	if _, err := c.run(ctx, "", c.WGExec, "set", c.Interface, "peer", publicKey, "remove"); err != nil {
		return &ControlPlaneError{Op: "remove peer", Err: err}
	}
	return nil
}

func (c *ExecControlPlane) Save(ctx context.Context) error {
	if _, err := c.run(ctx, "", c.WGQuickExec, "save", c.Interface); err != nil {
		return &ControlPlaneError{Op: "save", Err: err}
	}
	return nil
}
