/*
Package domain contains the core contracts of the Switchboard dispatch server.

It defines what an Action is, the transient Request and Response values that
travel between a transport and the dispatch protocol, and the fixed error
taxonomy every transport renders. This package is kept free of I/O so that
transports, the registry and the actions themselves can share it.

# Key Entities

  - Action: a named, schema-validated unit of remotely invocable work.
  - Request: an action name plus an untyped payload, produced per inbound message.
  - Response: exactly one of a result or a structured *Error.
  - ErrorKind: the discriminator set (MalformedRequest, ActionNotFound, ...).
*/
package domain
