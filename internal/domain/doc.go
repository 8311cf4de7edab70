// Package domain defines the core business types of the identity service:
// the User aggregate and its lifecycle states, the domain events those
// transitions emit, and the outbox envelope that carries events to delivery.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Validation methods are allowed (they're pure functions on the type)
//   - State transitions happen only through User methods
package domain
