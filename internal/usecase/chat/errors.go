package chat

import "errors"

var (
	// ErrCommandCollision is returned when two registrations claim the same command key.
	ErrCommandCollision = errors.New("command key already registered")

	// ErrInvalidModule is returned for a module without a command.
	ErrInvalidModule = errors.New("invalid module")

	// ErrModulePanic wraps a panic recovered from a module.
	ErrModulePanic = errors.New("module panicked")

	// ErrUnhandledLocalMessage is returned when the offline engine's synthesized
	// message is not handled by any module.
	ErrUnhandledLocalMessage = errors.New("local message was not handled by any module")

	// ErrStorageUnavailable is returned when modules declare tables but no storage is configured.
	ErrStorageUnavailable = errors.New("storage modules registered but no storage configured")

	// ErrEngineStopped is returned when the engine session ends before it became ready.
	ErrEngineStopped = errors.New("engine stopped before becoming ready")
)
