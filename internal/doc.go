// Package internal contains helper utilities that are intentionally private
// to grantcore, including secure random generation and the opaque session
// token codec.
//
// # Sub-packages
//
//   - flows — pure-function flow orchestrators for the multi-step Engine
//     operations (rotation, offer acceptance)
//
// # What this package must NOT do
//
//   - Export types that appear in the public grantcore API.
//   - Be imported by any package outside the grantcore module.
package internal
