package wireguard

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded — у пользователя уже занято максимальное число слотов.
// Не ретраится: сначала нужно отозвать существующий пир.
var ErrQuotaExceeded = errors.New("peer quota exceeded")

// ControlPlaneError — внешний вызов wg/wg-quick завершился ошибкой или
// таймаутом. Никогда не ретраится для provision (риск двойной выдачи).
type ControlPlaneError struct {
	Op  string
	Err error
}

func (e *ControlPlaneError) Error() string { return fmt.Sprintf("control plane %s: %v", e.Op, e.Err) }
func (e *ControlPlaneError) Unwrap() error { return e.Err }

// PersistenceError — хранилище отказало. Если это случилось после успешной
// мутации control plane, расхождение чинит следующий reconcile-проход;
// такие случаи логируются на уровне error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
