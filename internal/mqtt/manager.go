// Package mqtt owns the broker session. The Manager is an explicit service
// object with a Start/Stop lifecycle and a single internal loop consuming
// inbound broker events; nothing in this package is global, so multiple
// managers can coexist in one process.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"airsense-server/internal/config"
	"airsense-server/internal/metrics"
)

// State is the connection lifecycle state:
// Disconnected → Connecting → Connected → (Reconnecting ⇄ Connected) → GivenUp.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateGivenUp is terminal for the process lifetime: the reconnect attempt
	// ceiling was reached, the session is torn down and ingestion stays off
	// while the rest of the application keeps running.
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateGivenUp:
		return "given_up"
	default:
		return "invalid"
	}
}

// Handler receives each raw broker message (topic, payload).
type Handler func(topic string, payload []byte)

type message struct {
	topic   string
	payload []byte
}

const (
	connectTimeout = 5 * time.Second
	tokenPoll      = 200 * time.Millisecond
	inboundBuffer  = 256
)

type Manager struct {
	cfg     config.Config
	logger  *slog.Logger
	handler Handler
	topic   string

	// newClient is swapped out by tests.
	newClient func(*paho.ClientOptions) paho.Client
	client    paho.Client

	mu       sync.Mutex
	state    State
	attempts int
	started  bool

	inbound chan message
	lost    chan error

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewManager(cfg config.Config, logger *slog.Logger, handler Handler) *Manager {
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		handler:   handler,
		topic:     cfg.MQTTTopicPrefix + "/out/+",
		newClient: paho.NewClient,
		inbound:   make(chan message, inboundBuffer),
		lost:      make(chan error, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start connects to the broker and launches the processing loop. With
// ingestion administratively disabled it is a no-op and the manager stays
// Disconnected. An unreachable broker is not an error: the manager enters
// its reconnect cycle and Start returns nil, because ingestion is a
// best-effort enhancement, not a liveness dependency of the host.
func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.MQTTEnabled {
		m.logger.Info("mqtt ingestion disabled, not connecting")
		return nil
	}

	select {
	case <-m.stopCh:
		return fmt.Errorf("manager stopped")
	default:
	}

	m.setState(StateConnecting)
	m.client = m.newClient(m.clientOptions())

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	err := m.connectOnce(connectCtx)
	if err != nil {
		m.logger.Warn("initial mqtt connect failed, retrying in background",
			"broker", m.cfg.MQTTBrokerURL, "error", err)
	}

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	go m.run(err == nil)
	return nil
}

func (m *Manager) clientOptions() *paho.ClientOptions {
	clientID := m.cfg.MQTTClientID
	if clientID == "" {
		clientID = "airsense-server-" + uuid.NewString()[:8]
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(m.cfg.MQTTBrokerURL)
	opts.SetClientID(clientID)
	if m.cfg.MQTTUsername != "" {
		opts.SetUsername(m.cfg.MQTTUsername)
		opts.SetPassword(m.cfg.MQTTPassword)
	}

	opts.SetCleanSession(true)

	// Reconnects are this manager's own state machine, not paho's.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		m.setState(StateConnected)
		m.resetAttempts()
		m.logger.Info("mqtt connected", "broker", m.cfg.MQTTBrokerURL)
		m.subscribe()
	})

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		select {
		case m.lost <- err:
		default:
		}
	})

	return opts
}

// connectOnce runs one connect attempt, polling the token so ctx and Stop
// are honored.
func (m *Manager) connectOnce(ctx context.Context) error {
	token := m.client.Connect()
	for {
		if token.WaitTimeout(tokenPoll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler sets Connected and subscribes.
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCh:
			return fmt.Errorf("manager stopped")
		default:
		}
	}
}

// subscribe registers the wildcard device subscription. Failure is logged
// but does not change connection state.
func (m *Manager) subscribe() {
	token := m.client.Subscribe(m.topic, 1, func(_ paho.Client, msg paho.Message) {
		select {
		case m.inbound <- message{topic: msg.Topic(), payload: msg.Payload()}:
		case <-m.stopCh:
		default:
			m.logger.Warn("inbound queue full, dropping message", "topic", msg.Topic())
		}
	})
	if !token.WaitTimeout(connectTimeout) {
		m.logger.Error("mqtt subscribe timeout", "topic", m.topic)
		return
	}
	if err := token.Error(); err != nil {
		m.logger.Error("mqtt subscribe failed", "topic", m.topic, "error", err)
		return
	}
	m.logger.Info("subscribed to mqtt topic", "topic", m.topic, "qos", 1)
}

// run is the single message-processing loop. It exits on Stop or when the
// reconnect ceiling is reached.
func (m *Manager) run(connected bool) {
	defer close(m.done)

	if !connected {
		if !m.reconnect() {
			return
		}
	}

	for {
		select {
		case <-m.stopCh:
			return
		case msg := <-m.inbound:
			m.handler(msg.topic, msg.payload)
		case err := <-m.lost:
			m.logger.Warn("mqtt connection lost", "error", err)
			if !m.reconnect() {
				return
			}
		}
	}
}

// reconnect drives the fixed-period retry cycle. It returns true once a
// connect attempt succeeds and false when the manager should stop, either
// because Stop was called or the attempt counter reached the ceiling.
func (m *Manager) reconnect() bool {
	m.setState(StateReconnecting)

	ticker := time.NewTicker(m.cfg.MQTTReconnectWait)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return false
		case msg := <-m.inbound:
			// Messages already queued before the connection dropped.
			m.handler(msg.topic, msg.payload)
		case <-ticker.C:
			attempt := m.nextAttempt()
			metrics.ReconnectAttempts.Inc()

			if err := m.connectOnce(context.Background()); err == nil {
				m.logger.Info("mqtt reconnected", "attempt", attempt)
				return true
			} else {
				m.logger.Warn("mqtt reconnect failed",
					"attempt", attempt, "max", m.cfg.MQTTMaxReconnects, "error", err)
			}

			if attempt >= m.cfg.MQTTMaxReconnects {
				m.logger.Error("mqtt reconnect ceiling reached, giving up",
					"attempts", attempt)
				m.client.Disconnect(250)
				m.setState(StateGivenUp)
				return false
			}
		}
	}
}

// Status reports the current connection state and reconnect attempt count.
func (m *Manager) Status() (State, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.attempts
}

// Stop tears down the session. Idempotent and safe to call in any state;
// when it returns, the processing loop has exited and no reconnect timer is
// left running.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.done
	}

	if m.client != nil {
		if m.client.IsConnected() {
			m.client.Unsubscribe(m.topic).WaitTimeout(2 * time.Second)
		}
		m.client.Disconnect(250)
	}

	m.mu.Lock()
	if m.state != StateGivenUp {
		m.state = StateDisconnected
	}
	m.mu.Unlock()
	m.logger.Info("mqtt manager stopped")
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) nextAttempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	return m.attempts
}

func (m *Manager) resetAttempts() {
	m.mu.Lock()
	m.attempts = 0
	m.mu.Unlock()
}
