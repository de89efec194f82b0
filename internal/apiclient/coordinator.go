package apiclient

import (
	"context"

	"go.uber.org/zap"
)

type waitResult struct {
	accessToken string
	err         error
}

// refreshAccess is the single-flight core. Any number of requests may
// observe a 401 concurrently; exactly one of them performs the refresh
// exchange while the rest park on a waiter channel and are released once,
// in no particular order, when the exchange resolves. staleToken is the
// access token the caller used, so a request that raced an already
// completed refresh picks up the fresh token without another exchange.
func (c *Client) refreshAccess(ctx context.Context, staleToken string) (string, error) {
	c.mu.Lock()
	if c.creds.AccessToken != "" && c.creds.AccessToken != staleToken {
		access := c.creds.AccessToken
		c.mu.Unlock()
		return access, nil
	}

	if c.refreshing {
		ch := make(chan waitResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		select {
		case res := <-ch:
			return res.accessToken, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	c.refreshing = true
	refreshToken := c.creds.RefreshToken
	c.mu.Unlock()

	creds, err := c.exchange(ctx, refreshToken)

	c.mu.Lock()
	c.refreshing = false
	waiters := c.waiters
	c.waiters = nil
	if err != nil {
		c.creds = Credentials{}
	} else {
		c.creds = creds
	}
	c.mu.Unlock()

	res := waitResult{accessToken: creds.AccessToken}
	if err != nil {
		c.logger.Warn("refresh exchange failed, ending session", zap.Error(err))
		res = waitResult{err: ErrSessionExpired}
	}
	// each waiter channel is buffered and written exactly once
	for _, ch := range waiters {
		ch <- res
	}

	if err != nil {
		return "", ErrSessionExpired
	}
	return creds.AccessToken, nil
}
