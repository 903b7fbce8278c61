// Package redis provides a channel driver for device endpoints bridged
// through a redis instance. Frames travel JSON-encoded on a pair of
// lists: the bridge pushes inbound frames to "<key>:in" and pops
// outbound frames from "<key>:out".
//
// Locations look like "redis://host:port/key".
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/ports"
)

// wireFrame is the JSON shape of a frame on the lists.
type wireFrame struct {
	Encoding string   `json:"encoding"`
	Offset   int      `json:"offset"`
	Bits     []bool   `json:"bits,omitempty"`
	Text     string   `json:"text,omitempty"`
	Command  string   `json:"command,omitempty"`
	Args     []string `json:"args,omitempty"`
}

// Driver implements ports.ChannelDriver on a redis list pair.
type Driver struct {
	location string
	key      string

	mu     sync.Mutex
	client *backend.Client
	owned  bool // whether Close should close the client
	opened bool
	closed bool
}

// New creates a redis driver from a location string.
func New(location string) (*Driver, error) {
	_, key, err := splitLocation(location)
	if err != nil {
		return nil, err
	}
	return &Driver{location: location, key: key}, nil
}

// NewFromClient creates a driver on an existing client (used by tests
// with miniredis). The key names the list pair.
func NewFromClient(client *backend.Client, key string) *Driver {
	return &Driver{
		location: "redis://" + client.Options().Addr + "/" + key,
		key:      key,
		client:   client,
	}
}

// Factory builds redis drivers. Registered for the "redis" scheme.
func Factory(cfg domain.BindingConfig) (ports.ChannelDriver, error) {
	return New(cfg.Location)
}

// Location returns the endpoint address.
func (d *Driver) Location() string { return d.location }

func (d *Driver) inKey() string  { return d.key + ":in" }
func (d *Driver) outKey() string { return d.key + ":out" }

// Open connects and pings the instance.
func (d *Driver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return nil
	}
	if d.client == nil {
		addr, _, err := splitLocation(d.location)
		if err != nil {
			return err
		}
		d.client = backend.NewClient(&backend.Options{Addr: addr})
		d.owned = true
	}
	if err := d.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrChannelUnavailable, d.location, err)
	}
	d.opened = true
	d.closed = false
	return nil
}

// ReadFrame blocks on the inbound list. Close unblocks it with
// ErrChannelClosed.
func (d *Driver) ReadFrame(ctx context.Context) (domain.Frame, error) {
	for {
		d.mu.Lock()
		client := d.client
		opened := d.opened
		d.mu.Unlock()
		if !opened {
			return domain.Frame{}, domain.ErrChannelClosed
		}

		// Short poll interval so Close and ctx cancellation are honored
		// promptly without holding a connection forever.
		res, err := client.BRPop(ctx, time.Second, d.inKey()).Result()
		if err == backend.Nil {
			continue
		}
		if err != nil {
			d.mu.Lock()
			closed := d.closed
			d.mu.Unlock()
			if closed || ctx.Err() != nil {
				return domain.Frame{}, domain.ErrChannelClosed
			}
			return domain.Frame{}, fmt.Errorf("%w: %v", domain.ErrChannelClosed, err)
		}
		if len(res) != 2 {
			continue
		}

		var wf wireFrame
		if err := json.Unmarshal([]byte(res[1]), &wf); err != nil {
			return domain.Frame{}, fmt.Errorf("%w: %v", domain.ErrDecode, err)
		}
		return domain.Frame{
			Encoding: domain.Encoding(wf.Encoding),
			Offset:   wf.Offset,
			Bits:     wf.Bits,
			Text:     wf.Text,
			Command:  wf.Command,
			Args:     wf.Args,
		}, nil
	}
}

// WriteFrame pushes the frame onto the outbound list.
func (d *Driver) WriteFrame(ctx context.Context, f domain.Frame) error {
	d.mu.Lock()
	client := d.client
	opened := d.opened
	d.mu.Unlock()
	if !opened {
		return domain.ErrChannelClosed
	}

	data, err := json.Marshal(wireFrame{
		Encoding: string(f.Encoding),
		Offset:   f.Offset,
		Bits:     f.Bits,
		Text:     f.Text,
		Command:  f.Command,
		Args:     f.Args,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrChannelWrite, err)
	}
	if err := client.LPush(ctx, d.outKey(), data).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrChannelWrite, err)
	}
	return nil
}

// Close releases the connection. Idempotent.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil
	}
	d.opened = false
	d.closed = true
	if d.owned && d.client != nil {
		if err := d.client.Close(); err != nil {
			return fmt.Errorf("close %s: %w", d.location, err)
		}
		d.client = nil
	}
	return nil
}

func splitLocation(location string) (addr, key string, err error) {
	rest, ok := strings.CutPrefix(location, "redis://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a redis location", domain.ErrChannelUnavailable, location)
	}
	addr, key, ok = strings.Cut(rest, "/")
	if !ok || addr == "" || key == "" {
		return "", "", fmt.Errorf("%w: redis location %q needs host:port/key", domain.ErrChannelUnavailable, location)
	}
	return addr, key, nil
}
