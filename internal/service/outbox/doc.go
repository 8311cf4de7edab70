// Package outbox implements the transactional outbox core: the durable
// envelope store port, the event-to-handler registry, the retry backoff
// calculator, and the relay service that leases pending envelopes and
// dispatches them to side-effect handlers with at-least-once semantics.
package outbox
