package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tidefall/docstore/internal/core/constants"
	"github.com/tidefall/docstore/internal/core/ports"
	"github.com/tidefall/docstore/pkg/eventbus"
)

// Connectivity is the process-wide online/offline cell. The flag is
// mutated only by explicit SetOnline/SetOffline calls and reflects
// intent: the backend toggle is invoked but its effect on the actual
// network condition is not verified. Construct one Connectivity at the
// composition root and share it by reference.
type Connectivity struct {
	toggler ports.NetworkToggler
	bus     *eventbus.Bus[bool]
	logger  *slog.Logger

	// mu serialises toggle+flag+publish so observers see transitions
	// in mutation order.
	mu     sync.Mutex
	online bool
}

var _ ports.ConnectivityStream = (*Connectivity)(nil)

// NewConnectivity creates the tracker in the online state.
func NewConnectivity(toggler ports.NetworkToggler, logger *slog.Logger) *Connectivity {
	if logger == nil {
		logger = slog.Default()
	}

	bus := eventbus.NewWithConfig[bool](eventbus.Config{
		BufferSize: constants.DefaultChangeBufferSize,
		ReplayLast: true,
	})
	bus.Publish(true)

	return &Connectivity{
		toggler: toggler,
		bus:     bus,
		logger:  logger.With("component", "connectivity"),
		online:  true,
	}
}

// Online reports the current flag synchronously.
func (c *Connectivity) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.online
}

// SetOnline asks the backend to enable its network and flips the flag
// to true. The flag is set and published even if the toggle errors;
// the error is returned for visibility.
func (c *Connectivity) SetOnline(ctx context.Context) error {
	return c.set(ctx, true)
}

// SetOffline asks the backend to disable its network and flips the
// flag to false.
func (c *Connectivity) SetOffline(ctx context.Context) error {
	return c.set(ctx, false)
}

func (c *Connectivity) set(ctx context.Context, online bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if online {
		err = c.toggler.EnableNetwork(ctx)
	} else {
		err = c.toggler.DisableNetwork(ctx)
	}

	if err != nil {
		c.logger.Warn("network toggle reported an error", "online", online, "error", err)
	}

	c.online = online
	c.bus.Publish(online)
	c.logger.Info("connectivity changed", "online", online)

	return err
}

// Subscribe returns a stream of flag values. The current value is
// delivered first, then every subsequent change in mutation order.
func (c *Connectivity) Subscribe(ctx context.Context) (<-chan bool, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.bus.Subscribe(ctx)
}

// Close shuts the notification stream down.
func (c *Connectivity) Close() {
	c.bus.Close()
}
