package apiclient

import (
	"errors"
	"fmt"

	"github.com/iamdebrajghosh/task-manager/internal/httpx"
)

// ErrSessionExpired is terminal for the session: the single permitted
// refresh attempt failed, cached credentials are gone, and the caller must
// re-authenticate. No further automatic retries happen.
var ErrSessionExpired = errors.New("session expired")

// APIError carries the server's error envelope for non-2xx responses.
type APIError struct {
	Status  int
	Code    httpx.ErrorCode
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}
