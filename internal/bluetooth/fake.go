// internal/bluetooth/fake.go
package bluetooth

import (
	"context"
	"sync"
)

type fakePass struct {
	records []Record
	err     error
}

// FakeBackend replays scripted inquiry passes. Once the script is exhausted
// the last pass repeats; an empty script reports no devices.
type FakeBackend struct {
	mu     sync.Mutex
	name   string
	passes []fakePass
	calls  int
}

// NewFakeBackend creates an empty scripted backend
func NewFakeBackend(name string) *FakeBackend {
	if name == "" {
		name = "fake"
	}
	return &FakeBackend{name: name}
}

// AddPass scripts a successful pass reporting records in order
func (f *FakeBackend) AddPass(records ...Record) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passes = append(f.passes, fakePass{records: records})
	return f
}

// AddFailure scripts a failed pass
func (f *FakeBackend) AddFailure(err error) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passes = append(f.passes, fakePass{err: err})
	return f
}

// Calls returns the number of inquiries performed
func (f *FakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeBackend) Name() string { return f.name }

func (f *FakeBackend) Inquire(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	f.calls++

	if len(f.passes) == 0 {
		return []Record{}, nil
	}
	if idx >= len(f.passes) {
		idx = len(f.passes) - 1
	}

	pass := f.passes[idx]
	if pass.err != nil {
		return nil, pass.err
	}
	return append([]Record(nil), pass.records...), nil
}

// FakeConnector records connection requests
type FakeConnector struct {
	mu         sync.Mutex
	Known      map[string]bool
	ConnectErr error
	connected  string
	history    []string
}

// NewFakeConnector creates a connector that accepts the given identifiers
func NewFakeConnector(known ...string) *FakeConnector {
	c := &FakeConnector{Known: make(map[string]bool)}
	for _, id := range known {
		if norm, err := NormalizeIdentifier(id); err == nil {
			c.Known[norm] = true
		}
	}
	return c
}

func (c *FakeConnector) Connect(ctx context.Context, identifier string) error {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, id)
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	if !c.Known[id] {
		return ErrDeviceNotFound
	}
	c.connected = id
	return nil
}

func (c *FakeConnector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected == "" {
		return ErrNotConnected
	}
	c.connected = ""
	return nil
}

// Connected returns the identifier of the connected device, if any
func (c *FakeConnector) Connected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// History returns every identifier passed to Connect
func (c *FakeConnector) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.history...)
}
