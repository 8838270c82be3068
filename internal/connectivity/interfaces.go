package connectivity

import (
	"log/slog"
	"net"
	"sync"
	"time"
)

const defaultProbeInterval = 5 * time.Second

// InterfaceSource follows the operating system's network interfaces: it
// reports online while any non-loopback interface is up and has an
// address. It never contacts the remote store, so it can report online
// while the backend itself is unreachable.
type InterfaceSource struct {
	interval time.Duration
	probe    func() bool
	logger   *slog.Logger

	mu      sync.Mutex
	online  bool
	subs    map[int]func(bool)
	nextID  int
	stopCh  chan struct{}
	running bool
}

// NewInterfaceSource creates a source sampling interfaces every interval.
func NewInterfaceSource(interval time.Duration, logger *slog.Logger) *InterfaceSource {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &InterfaceSource{
		interval: interval,
		probe:    hasActiveInterface,
		logger:   logger,
		subs:     make(map[int]func(bool)),
	}
	s.online = s.probe()
	return s
}

func (s *InterfaceSource) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Subscribe registers fn and starts sampling on the first subscription.
func (s *InterfaceSource) Subscribe(fn func(online bool)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	if !s.running {
		s.running = true
		s.stopCh = make(chan struct{})
		go s.loop(s.stopCh)
	}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
		if len(s.subs) == 0 && s.running {
			s.running = false
			close(s.stopCh)
		}
	}
}

func (s *InterfaceSource) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

// sample probes once and notifies subscribers when the state changed.
func (s *InterfaceSource) sample() {
	online := s.probe()

	s.mu.Lock()
	if online == s.online {
		s.mu.Unlock()
		return
	}
	s.online = online
	subs := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.logger.Debug("network interfaces changed", "online", online)
	for _, fn := range subs {
		fn(online)
	}
}

func hasActiveInterface() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
