package taskdesk

import (
	"context"
	"fmt"
)

// require fails with ErrForbidden when the cached role lacks perm. Without a
// cached profile, or with Roles.Enforce off, the backend decides.
func (c *Client) require(ctx context.Context, perm string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if !c.config.Roles.Enforce || c.roles == nil {
		return nil
	}
	sess, err := c.loadSession(ctx)
	if err != nil || !sess.HasProfile() {
		return nil
	}
	if c.roles.Allows(sess.Role, perm) {
		return nil
	}

	c.metrics.Inc(MetricForbiddenLocal)
	c.logger.DebugContext(ctx, "operation refused by role guard", "role", sess.Role, "permission", perm)
	return fmt.Errorf("%w: role %q lacks %s", ErrForbidden, sess.Role, perm)
}

// Can reports whether the cached profile's role holds perm. It returns false
// when no profile is cached.
func (c *Client) Can(ctx context.Context, perm string) bool {
	if c.ready() != nil || c.roles == nil {
		return false
	}
	sess, err := c.loadSession(ctx)
	if err != nil || !sess.HasProfile() {
		return false
	}
	return c.roles.Allows(sess.Role, perm)
}
