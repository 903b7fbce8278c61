package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tetherdev/tether/pkg/domain"
)

func tempDevice(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadBitLines(t *testing.T) {
	path := tempDevice(t, "0 101\n2 0\n")
	d := NewDriver(domain.BindingConfig{
		ID:        "tiles",
		Location:  path,
		Direction: domain.DirectionInput,
		Encoding:  domain.EncodingBits,
	})
	ctx := context.Background()
	if err := d.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	f, err := d.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Offset != 0 || len(f.Bits) != 3 || !f.Bits[0] || f.Bits[1] || !f.Bits[2] {
		t.Fatalf("unexpected frame %s", f)
	}

	f, err = d.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Offset != 2 || len(f.Bits) != 1 || f.Bits[0] {
		t.Fatalf("unexpected frame %s", f)
	}

	// End of file reads as a closed channel.
	if _, err := d.ReadFrame(ctx); !errors.Is(err, domain.ErrChannelClosed) {
		t.Fatalf("want ErrChannelClosed at EOF, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := tempDevice(t, "")
	cfg := domain.BindingConfig{
		ID:       "lights",
		Location: "file://" + path,
		Encoding: domain.EncodingCommand,
	}
	ctx := context.Background()

	out := NewDriver(domain.BindingConfig{ID: cfg.ID, Location: cfg.Location, Direction: domain.DirectionOutput, Encoding: cfg.Encoding})
	if err := out.Open(ctx); err != nil {
		t.Fatalf("open writer: %v", err)
	}
	if err := out.WriteFrame(ctx, domain.CommandFrame(2, "color", "black")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	in := NewDriver(domain.BindingConfig{ID: cfg.ID, Location: cfg.Location, Direction: domain.DirectionInput, Encoding: cfg.Encoding})
	if err := in.Open(ctx); err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer in.Close()

	f, err := in.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Offset != 2 || f.Command != "color" || len(f.Args) != 1 || f.Args[0] != "black" {
		t.Fatalf("unexpected frame %s", f)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	d := NewDriver(domain.BindingConfig{
		ID:        "ghost",
		Location:  filepath.Join(t.TempDir(), "missing"),
		Direction: domain.DirectionInput,
		Encoding:  domain.EncodingBits,
	})
	err := d.Open(context.Background())
	if !errors.Is(err, domain.ErrChannelUnavailable) {
		t.Fatalf("want ErrChannelUnavailable, got %v", err)
	}
}

func TestClosedDriverRefusesIO(t *testing.T) {
	path := tempDevice(t, "0 1\n")
	d := NewDriver(domain.BindingConfig{
		ID:        "tiles",
		Location:  path,
		Direction: domain.DirectionBidirectional,
		Encoding:  domain.EncodingBits,
	})
	ctx := context.Background()
	if err := d.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := d.ReadFrame(ctx); !errors.Is(err, domain.ErrChannelClosed) {
		t.Fatalf("read after close: got %v", err)
	}
	if err := d.WriteFrame(ctx, domain.BitFrame(0, true)); !errors.Is(err, domain.ErrChannelClosed) {
		t.Fatalf("write after close: got %v", err)
	}
}

func TestLocationStripsScheme(t *testing.T) {
	d := NewDriver(domain.BindingConfig{Location: "file:///dev/tiles"})
	if got := d.Location(); got != "/dev/tiles" {
		t.Fatalf("Location() = %q", got)
	}
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		name string
		enc  domain.Encoding
		line string
		ok   bool
	}{
		{"bits", domain.EncodingBits, "0 0110", true},
		{"bits bad digit", domain.EncodingBits, "0 01x0", false},
		{"bad offset", domain.EncodingBits, "x 01", false},
		{"negative offset", domain.EncodingBits, "-1 01", false},
		{"text", domain.EncodingText, "4 3:00 pm", true},
		{"command", domain.EncodingCommand, "2 color black", true},
		{"empty command", domain.EncodingCommand, "2 ", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := parseLine(tc.enc, tc.line)
			if tc.ok {
				if err != nil {
					t.Fatalf("parse %q: %v", tc.line, err)
				}
				if got := formatLine(f); got != tc.line {
					t.Errorf("round trip %q -> %q", tc.line, got)
				}
				return
			}
			if !errors.Is(err, domain.ErrDecode) {
				t.Fatalf("parse %q: want ErrDecode, got %v", tc.line, err)
			}
		})
	}
}
