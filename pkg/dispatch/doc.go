/*
Package dispatch implements the transport-agnostic dispatch protocol.

Every transport hands a domain.Request to the same Dispatcher, which runs:

 1. Name check: an empty action name is a MalformedRequest and never reaches the registry.
 2. Lookup: an unknown name is ActionNotFound and never reaches validation.
 3. Validation: the payload is checked against the action schema; the first
    failure is InvalidPayload and the action is never executed.
 4. Execution: a returned (or panicking) domain error becomes ActionExecutionFailed,
    carrying the original message.
 5. Success: the result is wrapped exactly as returned.

The protocol imposes no deadline of its own. Timeouts and cancellation arrive
through the context supplied by the transport.
*/
package dispatch
