// Package taskdesk is a client for the court registry task portal API.
//
// A [Client] attaches the current access token to every request and recovers
// from expired tokens on its own: a 401 triggers one refresh exchange against
// POST /auth/refresh (authenticated by the refresh cookie held in the client's
// cookie jar), shared by every request that fails meanwhile, after which each
// of them is replayed once. A second 401, or a 401 from the refresh endpoint,
// ends the session: the stored token is cleared, handlers registered with
// [Builder.OnSessionEnded] run, and the request fails with [ErrSessionExpired].
//
// Build a Client with [New]:
//
//	client, err := taskdesk.New().
//		WithBaseURL("https://registry.example/api").
//		OnSessionEnded(func(ctx context.Context, end taskdesk.SessionEnd) { ... }).
//		Build()
//
// # Architecture boundaries
//
// taskdesk is the public surface: [Client], [Builder], [Config], the portal
// value types and sentinel errors. Refresh coordination lives in package
// refresh, credential storage in package session, token inspection in package
// jwt and the role guard in package permission.
//
// # What this package must NOT do
//
//   - Read or write the refresh cookie; it stays in the cookie jar.
//   - Retry any request more than once.
//   - Verify token signatures; tokens are only inspected for expiry and profile claims.
package taskdesk
