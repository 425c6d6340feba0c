// Package flows contains pure-function orchestrators for the multi-step
// Engine operations: session rotation and offer acceptance.
//
// Each flow function (RunRotate, RunAccept) accepts a typed dependency
// struct and returns a result without side-effects beyond those
// dependencies. This keeps the Engine type thin and makes the
// claim/side-effect/finalize ordering exhaustively unit-testable with mock
// dependencies.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the grant store and the external
// allocation collaborator. They do NOT own any of these resources —
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import grantcore (to avoid import cycles).
//   - Perform I/O except through dependency interfaces.
package flows
