package module

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/repository"
)

// StorageModule declares tables and receives the provisioned database.
type StorageModule interface {
	Tables() []repository.Table
	BindStorage(db *sql.DB)
}

// NetworkModule receives the shared outbound HTTP client.
type NetworkModule interface {
	BindHTTPClient(client *http.Client)
}

// EventsModule receives non-command events. Delivery is asynchronous.
type EventsModule interface {
	OnEvent(ctx context.Context, event entity.SlackcatEvent) error
}

// UnhandledCommandModule is offered commands no module is registered for.
// It returns true if it handled the message. Called synchronously by the router.
type UnhandledCommandModule interface {
	OnUnhandledCommand(ctx context.Context, msg *entity.IncomingChatMessage) bool
}

// Capability is a set of optional module capabilities.
type Capability uint8

const (
	CapabilityStorage Capability = 1 << iota
	CapabilityNetwork
	CapabilityEvents
	CapabilityUnhandledCommand
)

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}

	var names []string
	for _, entry := range []struct {
		flag Capability
		name string
	}{
		{CapabilityStorage, "storage"},
		{CapabilityNetwork, "network"},
		{CapabilityEvents, "events"},
		{CapabilityUnhandledCommand, "unhandled_command"},
	} {
		if c&entry.flag != 0 {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, ",")
}

// Descriptor is a module plus the capabilities it declares.
// Capabilities are explicit fields, inspected once at registration.
type Descriptor struct {
	Module Module

	Storage   StorageModule
	Network   NetworkModule
	Events    EventsModule
	Unhandled UnhandledCommandModule
}

// Option declares a capability on a Descriptor.
type Option func(*Descriptor)

// Describe builds a Descriptor for m.
func Describe(m Module, opts ...Option) Descriptor {
	d := Descriptor{Module: m}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithStorage declares the Storage capability.
func WithStorage(s StorageModule) Option {
	return func(d *Descriptor) { d.Storage = s }
}

// WithNetwork declares the Network capability.
func WithNetwork(n NetworkModule) Option {
	return func(d *Descriptor) { d.Network = n }
}

// WithEvents declares the Events capability.
func WithEvents(e EventsModule) Option {
	return func(d *Descriptor) { d.Events = e }
}

// WithUnhandledCommand declares the UnhandledCommand capability.
func WithUnhandledCommand(u UnhandledCommandModule) Option {
	return func(d *Descriptor) { d.Unhandled = u }
}

// Name returns the module's primary command.
func (d Descriptor) Name() string {
	return d.Module.Command()
}

// Capabilities returns the declared capability set.
func (d Descriptor) Capabilities() Capability {
	var c Capability
	if d.Storage != nil {
		c |= CapabilityStorage
	}
	if d.Network != nil {
		c |= CapabilityNetwork
	}
	if d.Events != nil {
		c |= CapabilityEvents
	}
	if d.Unhandled != nil {
		c |= CapabilityUnhandledCommand
	}
	return c
}

// Has reports whether every capability in c is declared.
func (d Descriptor) Has(c Capability) bool {
	return d.Capabilities()&c == c
}
