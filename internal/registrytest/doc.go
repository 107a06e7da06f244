// Package registrytest runs an in-process fake of the task portal backend
// for tests and load tests.
//
// The fake implements the OTP login, refresh cookie, task, user and category
// endpoints over httptest and gorilla/mux, mints access tokens with package
// jwt, and exposes hooks to script failures: forced 401s per path, a fixed
// refresh status, a gate that holds refresh exchanges open, and queued token
// values. Every request is recorded for assertions.
package registrytest
