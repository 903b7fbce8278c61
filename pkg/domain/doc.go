// Package domain contains the core types of the Tether runtime: the
// entity tree, binding configurations, channel frames, and domain events.
// It has no dependencies on the rest of the module; every other package
// builds on top of it.
package domain
