// Package grant provides Redis-backed storage for time-bounded,
// single-consumption grants and the compact binary record format they are
// stored in.
//
// # Claim discipline
//
// The [Store] is the only component allowed to mutate grant status. Every
// transition runs as one Lua script, so N concurrent claims on the same id
// have exactly one winner regardless of process count. Claim reserves,
// Finalize commits a terminal status, Release abandons a reservation.
// Expiry is lazy: an ACTIVE record past its expiry is classified expired on
// read and converted to a stored REVOKED("expired") on first claim contact.
//
// # Binary encoding
//
// Records are stored as a versioned binary blob with a fixed-width header
// so the Lua scripts can read and patch status, expiry, reservation, and
// secret-hash fields at constant offsets.
//
// # What this package must NOT do
//
//   - Import grantcore or jwt (no upward imports).
//   - Decide which berth to offer or who may log in — it only stores the
//     lifecycle of already-decided grants.
//   - Keep bearer secrets in plaintext; only their hashes are stored.
package grant
