package modbusengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/wwhai/worksite-bridge/internal/config"
)

// Status tags the outcome of a group Read, replacing the upstream
// library's exception-as-control-flow for the backoff case (per
// SPEC_FULL.md's DESIGN NOTES: "structured outcomes").
type Status int

const (
	// StatusOK means inputs were read successfully.
	StatusOK Status = iota
	// StatusBackoff means no I/O was attempted because the group's
	// reconnect backoff window has not elapsed.
	StatusBackoff
	// StatusError means a connect or read failure occurred; the group's
	// client has been closed and backoff has been armed.
	StatusError
)

// Result is the outcome of one Engine.Read call.
type Result struct {
	Status  Status
	Inputs  []bool
	Message string
}

// connState is the per-group runtime state described by DATA MODEL's
// ModbusConnState: a lazily-created client plus the timestamp of the last
// connect attempt, used to gate reconnects against ReconnectBackoff.
type connState struct {
	mu            sync.Mutex
	client        *Client
	lastAttemptAt time.Time
}

// Dialer abstracts Client construction so tests can substitute a fake
// endpoint without a real TCP listener elsewhere in the pipeline.
type Dialer func(addr string, unitID uint8, dialTimeout, requestTimeout time.Duration) (*Client, error)

// Engine is the grouped Modbus/TCP connection manager (component C2): one
// client per group, with per-group reconnect/backoff and timeout handling.
// Engine encapsulates its state rather than keeping it in a package-level
// map, per SPEC_FULL.md's DESIGN NOTES on explicit per-component state.
type Engine struct {
	reconnectBackoff time.Duration
	requestTimeout   time.Duration
	dial             Dialer

	mu     sync.Mutex
	states map[string]*connState
}

// NewEngine creates an Engine. dial defaults to Dial when nil.
func NewEngine(reconnectBackoff, requestTimeout time.Duration, dial Dialer) *Engine {
	if dial == nil {
		dial = Dial
	}
	return &Engine{
		reconnectBackoff: reconnectBackoff,
		requestTimeout:   requestTimeout,
		dial:             dial,
		states:           make(map[string]*connState),
	}
}

func (e *Engine) stateFor(group *config.Group) *connState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.states[group.Key]
	if !ok {
		s = &connState{}
		e.states[group.Key] = s
	}
	return s
}

// Read implements the connection and read policy of component C2.
func (e *Engine) Read(group *config.Group, now time.Time) Result {
	st := e.stateFor(group)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.client == nil {
		if !st.lastAttemptAt.IsZero() && now.Sub(st.lastAttemptAt) < e.reconnectBackoff {
			return Result{Status: StatusBackoff}
		}
		st.lastAttemptAt = now
		addr := fmt.Sprintf("%s:%d", group.Host, group.Port)
		client, err := e.dial(addr, group.UnitID, e.requestTimeout, e.requestTimeout)
		if err != nil {
			return Result{Status: StatusError, Message: err.Error()}
		}
		st.client = client
	}

	length := group.Length()
	inputs, err := st.client.ReadDiscreteInputs(uint16(group.MinOffset), length)
	if err != nil {
		_ = st.client.Close()
		st.client = nil
		st.lastAttemptAt = now
		return Result{Status: StatusError, Message: err.Error()}
	}
	return Result{Status: StatusOK, Inputs: inputs}
}

// CloseAll closes every open group client, swallowing close errors
// (best-effort, per component C6's shutdown contract).
func (e *Engine) CloseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.states {
		st.mu.Lock()
		if st.client != nil {
			_ = st.client.Close()
			st.client = nil
		}
		st.mu.Unlock()
	}
}
