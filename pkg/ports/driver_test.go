package ports_test

import (
	"errors"
	"testing"

	"github.com/tetherdev/tether/pkg/adapters/memory"
	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/ports"
)

func TestLocationScheme(t *testing.T) {
	cases := map[string]string{
		"mem://tiles":                "mem",
		"redis://localhost:6379/dev": "redis",
		"file:///dev/tiles0":         "file",
		"/dev/tiles0":                "file",
		"relative/path":              "file",
		"serial:/dev/ttyUSB0":        "serial",
		"":                           "file",
	}
	for location, want := range cases {
		if got := ports.LocationScheme(location); got != want {
			t.Errorf("LocationScheme(%q) = %q, want %q", location, got, want)
		}
	}
}

func TestDriverRegistryRoutesByScheme(t *testing.T) {
	reg := ports.NewDriverRegistry()
	hub := memory.NewHub()
	reg.Register("mem", hub.Factory())

	d, err := reg.For(domain.BindingConfig{ID: "tiles", Location: "mem://tiles"})
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if d.Location() != "mem://tiles" {
		t.Errorf("driver location = %q", d.Location())
	}

	_, err = reg.For(domain.BindingConfig{ID: "ghost", Location: "gopher://hole"})
	if !errors.Is(err, domain.ErrChannelUnavailable) {
		t.Errorf("unknown scheme: want ErrChannelUnavailable, got %v", err)
	}
}
