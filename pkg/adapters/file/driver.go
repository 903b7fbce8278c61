// Package file provides a channel driver for path-like device endpoints:
// FIFOs, character devices, or plain files. Frames travel as lines of
// the form "<offset> <payload>"; the payload is a run of 0/1 lane digits
// for bit-stream bindings, an opaque string for textual bindings, and a
// command name followed by arguments for command-stream bindings.
package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/ports"
)

// Driver implements ports.ChannelDriver on top of an os.File.
type Driver struct {
	cfg domain.BindingConfig

	mu     sync.Mutex
	file   *os.File
	reader *bufio.Reader
	opened bool
	closed bool

	// wmu serializes writers without blocking Close behind a stalled
	// write (a FIFO with no consumer can block indefinitely).
	wmu sync.Mutex
}

// NewDriver creates a file driver for the binding's device location.
func NewDriver(cfg domain.BindingConfig) *Driver {
	return &Driver{cfg: cfg}
}

// Factory builds file drivers. Registered for the "file" scheme, which
// also covers plain path locations.
func Factory(cfg domain.BindingConfig) (ports.ChannelDriver, error) {
	return NewDriver(cfg), nil
}

// Location returns the endpoint path.
func (d *Driver) Location() string {
	return strings.TrimPrefix(d.cfg.Location, "file://")
}

// Open acquires the endpoint with flags matching the binding direction.
func (d *Driver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return nil
	}

	flags := os.O_RDWR
	switch d.cfg.Direction {
	case domain.DirectionInput:
		flags = os.O_RDONLY
	case domain.DirectionOutput:
		flags = os.O_WRONLY | os.O_APPEND
	}

	f, err := os.OpenFile(d.Location(), flags, 0)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrChannelUnavailable, d.Location(), err)
	}
	d.file = f
	d.reader = bufio.NewReader(f)
	d.opened = true
	d.closed = false
	return nil
}

// ReadFrame blocks on the underlying file until a full line arrives.
// Closing the driver interrupts the read with ErrChannelClosed.
func (d *Driver) ReadFrame(ctx context.Context) (domain.Frame, error) {
	d.mu.Lock()
	r := d.reader
	opened := d.opened
	d.mu.Unlock()

	if !opened {
		return domain.Frame{}, domain.ErrChannelClosed
	}

	line, err := r.ReadString('\n')
	if err != nil {
		d.mu.Lock()
		closed := d.closed
		d.mu.Unlock()
		if closed || err == io.EOF {
			return domain.Frame{}, domain.ErrChannelClosed
		}
		return domain.Frame{}, fmt.Errorf("%w: %v", domain.ErrChannelClosed, err)
	}

	return parseLine(d.cfg.Encoding, strings.TrimRight(line, "\r\n"))
}

// WriteFrame serializes the frame as one line. Writers are serialized
// among themselves; the write honors the context deadline on pollable
// endpoints (FIFOs, character devices), so a stalled consumer fails the
// write instead of wedging the mutator and blocking Close.
func (d *Driver) WriteFrame(ctx context.Context, f domain.Frame) error {
	d.mu.Lock()
	file := d.file
	opened := d.opened
	d.mu.Unlock()
	if !opened || file == nil {
		return domain.ErrChannelClosed
	}

	d.wmu.Lock()
	defer d.wmu.Unlock()

	// Regular files reject deadlines (os.ErrNoDeadline); their writes
	// do not block on a consumer, so that is fine to ignore.
	if deadline, ok := ctx.Deadline(); ok {
		if err := file.SetWriteDeadline(deadline); err == nil {
			defer file.SetWriteDeadline(time.Time{})
		}
	}

	if _, err := file.WriteString(formatLine(f) + "\n"); err != nil {
		if errors.Is(err, os.ErrClosed) {
			return domain.ErrChannelClosed
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("%w: %s: write deadline exceeded", domain.ErrChannelWrite, d.Location())
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrChannelWrite, d.Location(), err)
	}
	return nil
}

// Close releases the endpoint. Idempotent. A pending ReadFrame fails
// with ErrChannelClosed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil
	}
	d.opened = false
	d.closed = true
	err := d.file.Close()
	d.file = nil
	d.reader = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", d.Location(), err)
	}
	return nil
}

func parseLine(enc domain.Encoding, line string) (domain.Frame, error) {
	head, rest, _ := strings.Cut(line, " ")
	offset, err := strconv.Atoi(head)
	if err != nil || offset < 0 {
		return domain.Frame{}, fmt.Errorf("%w: bad offset in line %q", domain.ErrDecode, line)
	}

	switch enc {
	case domain.EncodingBits:
		lanes := make([]bool, 0, len(rest))
		for _, c := range rest {
			switch c {
			case '0':
				lanes = append(lanes, false)
			case '1':
				lanes = append(lanes, true)
			default:
				return domain.Frame{}, fmt.Errorf("%w: bad lane digit %q in line %q", domain.ErrDecode, c, line)
			}
		}
		return domain.BitFrame(offset, lanes...), nil

	case domain.EncodingText:
		return domain.TextFrame(offset, rest), nil

	case domain.EncodingCommand:
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return domain.Frame{}, fmt.Errorf("%w: empty command in line %q", domain.ErrDecode, line)
		}
		return domain.CommandFrame(offset, fields[0], fields[1:]...), nil
	}

	return domain.Frame{}, fmt.Errorf("%w: unsupported encoding %q", domain.ErrDecode, enc)
}

func formatLine(f domain.Frame) string {
	switch f.Encoding {
	case domain.EncodingBits:
		var b strings.Builder
		for _, v := range f.Bits {
			if v {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		return fmt.Sprintf("%d %s", f.Offset, b.String())
	case domain.EncodingCommand:
		parts := append([]string{f.Command}, f.Args...)
		return fmt.Sprintf("%d %s", f.Offset, strings.Join(parts, " "))
	default:
		return fmt.Sprintf("%d %s", f.Offset, f.Text)
	}
}
