package observability

import (
	"context"
)

// Call runs fn and re-panics (after reporting) if it panics.
func Call(ctx context.Context, fn func(context.Context)) {
	defer func() { PanicIfNotNil(ctx, recover()) }()
	fn(ctx)
}

// CallSafe runs fn and only reports a panic.
func CallSafe(ctx context.Context, fn func(context.Context)) {
	defer func() { ReportPanicIfNotNil(ctx, recover()) }()
	fn(ctx)
}

func Go(ctx context.Context, fn func(context.Context)) {
	go Call(ctx, fn)
}

func GoSafe(ctx context.Context, fn func(context.Context)) {
	go CallSafe(ctx, fn)
}
