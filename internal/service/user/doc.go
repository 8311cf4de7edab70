// Package user implements the identity use-cases: signup, login, profile
// changes, and admin lifecycle actions.
//
// The service layer contains the business flows and authorization
// predicates. It depends on interfaces defined in this package and never
// imports from api/ or repository/. Every write flow runs inside a unit of
// work so aggregate changes and the domain events they emit reach the
// database atomically.
//
// Repository and unit-of-work implementations live in repository/postgres/.
package user
