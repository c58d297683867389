/*
Package switchboard exposes a catalog of named actions over several transports at once.

An action is a named unit of work with an input schema. Transports (HTTP, MCP and a
Redis work queue) translate their wire protocol into a dispatch request, and one
shared registry resolves the name, validates the payload and runs the action.

# Concept

The Hub owns the registry and the adapters. Every adapter moves through the same
lifecycle: Idle until opened, Open while serving, Closed for good after Close.
Requests that reach an adapter which is not Open are answered with a
TransportUnavailable error instead of being dispatched.

Failures are always returned as a structured error with one of six kinds:
MalformedRequest, ActionNotFound, InvalidPayload, ActionExecutionFailed,
TransportUnavailable and InternalSerializationFault. An action that returns an
error or panics never takes the process down.

# Usage

	hub := switchboard.New(
		switchboard.WithActions(actions.Catalog(actions.Deps{AppName: "demo", AppVersion: "1.0"})...),
		switchboard.WithAdapters(httpadapter.New(":3000")),
	)
	if err := hub.Open(ctx); err != nil {
		log.Fatal(err)
	}
	defer hub.Close(context.Background())

	// POST /ping -> {"pong":true}

Reload swaps the whole catalog atomically. In-flight requests finish against the
catalog they started with.
*/
package switchboard
