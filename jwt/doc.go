// Package jwt reads portal access tokens on the client side and mints them for
// in-process test backends.
//
// # Inspection
//
// [Inspect] decodes claims without verifying the signature. The client never holds
// the signing key; it only needs the expiry (for early refresh) and the profile
// claims the backend embeds. Inspected claims must not be used for authorization
// decisions that matter to the server.
//
// # Issuance
//
// [Manager] signs and verifies HS256 tokens. It backs the fake
// portal in internal/registrytest and the load-test harness.
package jwt
