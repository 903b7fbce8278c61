/*
Package ports defines the driven ports (interfaces) of the Tether binding
runtime.

These interfaces decouple the core from concrete device endpoints and
delivery mechanisms, allowing the runtime to work with in-process loopback
channels, file/FIFO devices, or bridged endpoints.

# Key Interfaces

  - ChannelDriver: a uniform handle on one physical communication endpoint.
  - DriverFactory / DriverRegistry: build drivers from binding declarations
    by device-location scheme.
  - EventDispatcher: delivers synthesized domain events to listeners.
*/
package ports
