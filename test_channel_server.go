package steamcmd

import (
	"bufio"
	"net"
	"sync"
)

// MockChannelServer stands in for a socket-activated server console during
// tests: it listens on a unix socket at the channel path and records every
// line written to it. Tests get the not-ready case for free by simply not
// starting one.
type MockChannelServer struct {
	// Path is the channel path the server listens on
	Path string

	listener net.Listener

	mu    sync.Mutex
	lines []string

	wg sync.WaitGroup
}

// NewMockChannelServer starts a mock console reader on a unix socket at path
func NewMockChannelServer(path string) (*MockChannelServer, error) {
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	m := &MockChannelServer{
		Path:     path,
		listener: listener,
	}

	m.wg.Add(1)
	go m.acceptLoop()

	return m, nil
}

func (m *MockChannelServer) acceptLoop() {
	defer m.wg.Done()

	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			defer func() { _ = conn.Close() }()

			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				m.mu.Lock()
				m.lines = append(m.lines, scanner.Text())
				m.mu.Unlock()
			}
		}()
	}
}

// Lines returns a copy of the command lines received so far, in arrival order
func (m *MockChannelServer) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, len(m.lines))
	copy(lines, m.lines)
	return lines
}

// Close stops accepting and waits for in-flight readers to drain
func (m *MockChannelServer) Close() error {
	err := m.listener.Close()
	m.wg.Wait()
	return err
}
