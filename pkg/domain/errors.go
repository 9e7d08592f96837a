package domain

import "errors"

// ErrSessionNotFound is returned when a session name cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when creating a session whose name is already taken.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionNotLoaded is returned by storage operations issued before a session was opened.
var ErrSessionNotLoaded = errors.New("no session loaded")

// ErrNoSink is returned by Submit when the call manager has no event sink.
var ErrNoSink = errors.New("event sink not set")

// ErrManagerClosed is returned by Submit after Shutdown.
var ErrManagerClosed = errors.New("call manager is shut down")

// ErrAgentNotFound is returned when an agent definition does not exist.
var ErrAgentNotFound = errors.New("agent not found")
