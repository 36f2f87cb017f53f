// Package circuitbreaker защищает ExchangePort-адаптеры от лавинообразных
// сбоев: после серии ошибок размыкается и коротко отбивает вызовы, пока не
// истечёт период охлаждения, затем переходит в half-open и пропускает
// пробные вызовы до полного восстановления. Число одновременных пробных
// вызовов в HALF_OPEN не ограничивается: Allow() возвращает true на каждый.
//
// Tunables are a struct with functional-option defaults (see pkg/retry.Config);
// state is a map[string]*state guarded by one sync.RWMutex, keyed per exchange.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State — состояние автомата выключателя.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrOpen возвращается Execute, когда выключатель разомкнут и вызов
// отклонён без обращения к защищаемой операции.
var ErrOpen = errors.New("circuit breaker is open")

// Config задаёт пороги срабатывания одного Breaker.
type Config struct {
	// FailureThreshold — число подряд идущих ошибок в CLOSED, после
	// которого выключатель переходит в OPEN.
	FailureThreshold int
	// OpenTimeout — сколько Breaker остаётся в OPEN, прежде чем
	// перейти в HALF_OPEN и снова допускать вызовы.
	OpenTimeout time.Duration
	// HalfOpenSuccessThreshold — число подряд успешных пробных вызовов
	// в HALF_OPEN, необходимое для возврата в CLOSED.
	HalfOpenSuccessThreshold int
}

// DefaultConfig — пороги по умолчанию для вызовов к биржевым адаптерам.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:         5,
		OpenTimeout:              30 * time.Second,
		HalfOpenSuccessThreshold: 2,
	}
}

func (c *Config) validate() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenSuccessThreshold <= 0 {
		c.HalfOpenSuccessThreshold = 1
	}
}

// Breaker — один выключатель, как правило один на пару (exchange, endpoint-category).
type Breaker struct {
	cfg Config

	mu               sync.Mutex
	state            State
	consecutiveFails int
	halfOpenSuccess  int
	openedAt         time.Time

	onStateChange func(from, to State)
}

// New создаёт Breaker в состоянии CLOSED.
func New(cfg Config) *Breaker {
	cfg.validate()
	return &Breaker{cfg: cfg, state: StateClosed}
}

// OnStateChange регистрирует колбэк, вызываемый при каждом переходе
// состояния (используется для метрик/логирования/EventBus публикаций).
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == StateOpen {
		b.openedAt = time.Now()
	}
	cb := b.onStateChange
	if cb != nil {
		go cb(from, to)
	}
}

// Allow сообщает, разрешён ли следующий вызов прямо сейчас, и переводит
// OPEN->HALF_OPEN, когда истёк OpenTimeout.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.OpenTimeout {
			b.transition(StateHalfOpen)
			b.halfOpenSuccess = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess отмечает успешный вызов.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails = 0
	case StateHalfOpen:
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.cfg.HalfOpenSuccessThreshold {
			b.transition(StateClosed)
			b.consecutiveFails = 0
			b.halfOpenSuccess = 0
		}
	}
}

// RecordFailure отмечает неуспешный вызов.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		// один провал в пробном режиме — обратно в OPEN на полный таймаут
		b.transition(StateOpen)
		b.halfOpenSuccess = 0
	}
}

// State возвращает текущее состояние.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute оборачивает operation: отклоняет вызов с ErrOpen, если Allow()
// false, иначе выполняет operation и обновляет состояние по результату.
func (b *Breaker) Execute(operation func() error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := operation()
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// Registry — набор именованных Breaker'ов, один на (exchange, category),
// в идиоме internal/bot/risk.go's map[string]*state + RWMutex.
type Registry struct {
	mu       sync.RWMutex
	cfg      Config
	breakers map[string]*Breaker
}

// NewRegistry создаёт Registry, лениво создающий Breaker'ы с общим cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get возвращает (создавая при необходимости) Breaker для ключа.
func (r *Registry) Get(key string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[key]; ok {
		return b
	}
	b = New(r.cfg)
	r.breakers[key] = b
	return b
}

// Snapshot возвращает текущее состояние всех известных выключателей.
func (r *Registry) Snapshot() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for k, b := range r.breakers {
		out[k] = b.State()
	}
	return out
}
