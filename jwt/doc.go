// Package jwt mints and verifies the short-lived signed access tokens the
// engine pairs with session grants.
//
// Access tokens are a convenience surface: the single-consumption
// lifecycle lives entirely in the grant store, and nothing in this package
// participates in claim/finalize ordering. Revoking a grant simply stops
// the rotation path from minting further access tokens.
package jwt
