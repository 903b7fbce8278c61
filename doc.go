/*
Package tether is a binding runtime: it mediates between a structured
entity tree (a hierarchical document of physical objects such as doors,
tiles, displays, and items) and physical I/O channels reached through
device-like endpoints.

The runtime translates attribute and style-property mutations on tree
entities into outbound frames on the correct channel offset, translates
inbound raw channel data into synthesized domain events dispatched to
the correct entity, manages per-channel connection lifecycle with
failure isolation, and resolves declarative entity-to-binding
associations into stable ordinal channel mappings.

# Architecture

Tether follows a hexagonal layout. The core (registry, engines,
dispatcher) is decoupled from concrete device endpoints through the
ports.ChannelDriver interface; adapters exist for in-process loopback
channels, file/FIFO devices, and redis-bridged endpoints. Document
parsing, scripting environments, and process bootstrapping are external
collaborators that consume the runtime's surface.

# Usage

Declare bindings and a tree (via YAML with pkg/schema or
programmatically with pkg/dsl), then start the runtime:

	tree, reg, err := dsl.New().
		Binding(domain.BindingConfig{
			ID:        "tiles",
			Location:  "mem://tiles",
			Direction: domain.DirectionInput,
			Encoding:  domain.EncodingBits,
		}).
		Root("hall", "room").
		Child("tile-0", "tile").Bind("tiles").Up().
		Child("tile-1", "tile").Bind("tiles").Up().
		Done().
		Build()
	if err != nil {
		log.Fatal(err)
	}

	rt := tether.New(tree, reg, tether.WithDriverFactory("mem", hub.Factory()))
	if err := rt.Start(ctx); err != nil {
		log.Printf("some bindings failed: %v", err)
	}
	defer rt.Stop()

	rt.Listen("tile-0", "acquired", func(ev domain.Event) error {
		// react to the physical world
		return nil
	})

One failed device never halts the runtime: its binding degrades in
isolation while the tree and every other binding keep working.
*/
package tether

// Version is the library version, surfaced by the CLI.
const Version = "0.3.0"
