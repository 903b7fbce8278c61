package domain

import "fmt"

// Direction declares which way frames flow on a binding's channel.
type Direction string

const (
	DirectionInput         Direction = "input"
	DirectionOutput        Direction = "output"
	DirectionBidirectional Direction = "bidirectional"
)

// Inbound reports whether the binding consumes frames from its channel.
func (d Direction) Inbound() bool {
	return d == DirectionInput || d == DirectionBidirectional
}

// Outbound reports whether the binding writes frames to its channel.
func (d Direction) Outbound() bool {
	return d == DirectionOutput || d == DirectionBidirectional
}

// Encoding declares the frame format spoken on a binding's channel.
type Encoding string

const (
	// EncodingBits frames are fixed-width vectors of boolean lanes.
	EncodingBits Encoding = "bits"
	// EncodingText frames are opaque delimited text payloads.
	EncodingText Encoding = "text"
	// EncodingCommand frames are structured commands (name + arguments).
	EncodingCommand Encoding = "command"
)

// EventNames optionally overrides the generic event kinds synthesized by
// a binding. A presence-style binding names its transitions
// "pickup"/"putdown" instead of the generic acquired/released kinds.
type EventNames struct {
	Acquired string `yaml:"acquired" mapstructure:"acquired"`
	Released string `yaml:"released" mapstructure:"released"`
	Changed  string `yaml:"changed" mapstructure:"changed"`
}

// BindingConfig is the immutable declaration of one binding: which device
// location it talks to, in which direction and encoding, and how the
// channel space is carved up across bound entities.
type BindingConfig struct {
	// ID is the identifier entities reference to associate with this binding.
	ID string `yaml:"id" mapstructure:"id"`

	// Location is the opaque device endpoint address (e.g. a path-like
	// identifier). Resolution of the address is the driver's concern.
	Location string `yaml:"location" mapstructure:"location"`

	Direction Direction `yaml:"direction" mapstructure:"direction"`
	Encoding  Encoding  `yaml:"encoding" mapstructure:"encoding"`

	// ChannelsPerElement is how many underlying signal channels one
	// bound entity consumes. Defaults to 1.
	ChannelsPerElement int `yaml:"channels_per_element" mapstructure:"channels_per_element"`

	// ChannelLabel optionally names the semantic lane within an
	// element's channel group (e.g. which lane maps to "color").
	ChannelLabel string `yaml:"channel_label" mapstructure:"channel_label"`

	// Events optionally renames the synthesized event kinds.
	Events EventNames `yaml:"events" mapstructure:"events"`
}

// Arity returns the effective channels-per-element (minimum 1).
func (c BindingConfig) Arity() int {
	if c.ChannelsPerElement < 1 {
		return 1
	}
	return c.ChannelsPerElement
}

// AcquiredKind returns the event kind for a false→true lane transition.
func (c BindingConfig) AcquiredKind() string {
	if c.Events.Acquired != "" {
		return c.Events.Acquired
	}
	return EventAcquired
}

// ReleasedKind returns the event kind for a true→false lane transition.
func (c BindingConfig) ReleasedKind() string {
	if c.Events.Released != "" {
		return c.Events.Released
	}
	return EventReleased
}

// ChangedKind returns the event kind for a textual/command value change.
func (c BindingConfig) ChangedKind() string {
	if c.Events.Changed != "" {
		return c.Events.Changed
	}
	return EventValueChanged
}

// Validate checks the declaration for structural problems. It does not
// touch the device location; reachability is checked at open time.
func (c BindingConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("binding has no id")
	}
	if c.Location == "" {
		return fmt.Errorf("binding %q has no location", c.ID)
	}
	switch c.Direction {
	case DirectionInput, DirectionOutput, DirectionBidirectional:
	default:
		return fmt.Errorf("binding %q has invalid direction %q", c.ID, c.Direction)
	}
	switch c.Encoding {
	case EncodingBits, EncodingText, EncodingCommand:
	default:
		return fmt.Errorf("binding %q has invalid encoding %q", c.ID, c.Encoding)
	}
	if c.ChannelsPerElement < 0 {
		return fmt.Errorf("binding %q has negative channels_per_element", c.ID)
	}
	return nil
}
