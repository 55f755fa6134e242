// Package project houses concrete implementations of core.ProjectStore and
// core.CreditStore. The in-memory store serves tests and the demo CLI; the
// postgres sub-package is the persistent backend.
package project
