package tether_test

import (
	"context"
	"fmt"
	"log"

	tether "github.com/tetherdev/tether"
	"github.com/tetherdev/tether/pkg/adapters/memory"
	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/dsl"
)

// Example_library demonstrates using Tether purely as a Go library with
// the in-memory loopback driver, without a YAML document or real devices.
func Example_library() {
	// 1. Declare the bindings and the entity tree with the builder.
	tree, reg, err := dsl.New().
		Binding(domain.BindingConfig{
			ID:        "tiles",
			Location:  "mem://tiles",
			Direction: domain.DirectionInput,
			Encoding:  domain.EncodingBits,
			Events:    domain.EventNames{Acquired: "pickup", Released: "putdown"},
		}).
		Root("board", "board").
		Child("tile-1", "tile").Bind("tiles").Up().
		Done().
		Build()
	if err != nil {
		log.Fatal(err)
	}

	// 2. Wire a loopback hub so the "mem" scheme resolves to drivers we
	// can feed frames into.
	hub := memory.NewHub()
	rt := tether.New(tree, reg, tether.WithDriverFactory("mem", hub.Factory()))

	// 3. Listen for the renamed presence event before starting.
	events := make(chan domain.Event, 1)
	rt.Listen("tile-1", "pickup", func(ev domain.Event) error {
		events <- ev
		return nil
	})

	if err := rt.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer rt.Stop()

	// 4. Inject a frame, as if the device had reported lane 0 high.
	if err := hub.Feed("mem://tiles", domain.BitFrame(0, true)); err != nil {
		log.Fatal(err)
	}

	ev := <-events
	fmt.Printf("%s %s on %s\n", ev.EntityID, ev.Kind, ev.Binding)
	// Output: tile-1 pickup on tiles
}

// Example_outbound demonstrates the write path: mutating a bound
// entity's style produces exactly one frame on the device channel, with
// repeated identical mutations suppressed.
func Example_outbound() {
	tree, reg, err := dsl.New().
		Binding(domain.BindingConfig{
			ID:           "lights",
			Location:     "mem://lights",
			Direction:    domain.DirectionOutput,
			Encoding:     domain.EncodingCommand,
			ChannelLabel: "color",
		}).
		Root("board", "board").
		Child("tile-1", "tile").Bind("lights").Up().
		Child("tile-2", "tile").Bind("lights").Up().
		Done().
		Build()
	if err != nil {
		log.Fatal(err)
	}

	hub := memory.NewHub()
	rt := tether.New(tree, reg, tether.WithDriverFactory("mem", hub.Factory()))
	if err := rt.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer rt.Stop()

	tile, _ := rt.Tree().Get("tile-2")
	tile.SetStyle("color", "black")
	tile.SetStyle("color", "black") // same value: no second write

	driver, _ := hub.Driver("mem://lights")
	for _, f := range driver.Writes() {
		fmt.Println(f)
	}
	// Output: command@1 color[black]
}
