package lock

import "context"

func testCtx() context.Context {
	return context.Background()
}
