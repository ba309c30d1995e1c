package wireguard

import "sync"

// userLocks — пер-пользовательская взаимная блокировка. Два одновременных
// запроса конфига от одного пользователя не должны оба пройти проверку
// квоты; запросы разных пользователей идут полностью параллельно.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
