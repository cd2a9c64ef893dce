// Package should runs cleanup that ought to succeed but may not. Failures are
// logged through the context logger instead of returned, which keeps defer
// statements short.
package should

import (
	"context"
	"io"

	"github.com/amp-labs/fsm/logger"
)

// Close closes closer and logs msg at error level if that fails.
//
//	defer should.Close(ctx, rsp.Body, "closing response body")
func Close(ctx context.Context, closer io.Closer, msg string) {
	if err := closer.Close(); err != nil {
		logger.Get(ctx).ErrorContext(ctx, msg, "error", err)
	}
}
