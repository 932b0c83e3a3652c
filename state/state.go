package state

import (
	"errors"
	"sync"
)

// Phase 是房间所处的阶段
type Phase string

const (
	NotStarted Phase = "NOT_STARTED"
	Started    Phase = "STARTED"
)

// ErrTransitionNotAllowed is returned when no transition is registered between two phases.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Guard decides whether a registered transition may happen right now.
// A non-nil error vetoes the transition and is returned to the caller as is.
type Guard func() error

// Machine 是基于阶段的状态机，只允许显式注册的转换
type Machine struct {
	current     Phase
	transitions map[Phase]map[Phase]Guard // from -> to -> guard
	mutex       sync.RWMutex
}

func NewMachine(initial Phase) *Machine {
	return &Machine{
		current:     initial,
		transitions: make(map[Phase]map[Phase]Guard),
	}
}

func (m *Machine) AddTransition(from, to Phase, guard Guard) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[Phase]Guard)
	}
	m.transitions[from][to] = guard
}

func (m *Machine) ChangeState(to Phase) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	guard, exists := m.transitions[m.current][to]
	if !exists {
		return ErrTransitionNotAllowed
	}
	if guard != nil {
		if err := guard(); err != nil {
			return err
		}
	}

	m.current = to
	return nil
}

func (m *Machine) Current() Phase {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

func (m *Machine) Is(p Phase) bool {
	return m.Current() == p
}
