// Package refresh coordinates access-token refresh exchanges for concurrent callers.
//
// # Single-flight policy
//
// A [Coordinator] owns the "refresh in progress" flag and the list of pending
// completion handles. The first caller to request a refresh runs the exchange;
// every caller that arrives while it is running is queued and receives the same
// [Result] when the exchange settles. At most one exchange is in flight at a time.
//
// # Bounded waits
//
// The exchange runs detached from the leader's cancellation and bounded by
// Config.ExchangeTimeout. Queued callers give up after Config.WaitTimeout or when
// their own context is done; the leader never blocks on a caller that left.
//
// # Architecture boundaries
//
// This package knows nothing about HTTP, token storage or session signals. The
// exchange function supplied by the caller owns those side effects and runs
// exactly once per exchange.
package refresh
