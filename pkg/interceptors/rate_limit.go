package interceptors

import (
	"context"
	"errors"
	"sync"

	"connectrpc.com/connect"
	"golang.org/x/time/rate"
)

var errRateLimited = errors.New("rate limit exceeded, retry later")

// RateLimitInterceptor keeps one token bucket per procedure.
type RateLimitInterceptor struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitInterceptor allows perSecond requests per procedure with the given burst.
func NewRateLimitInterceptor(perSecond float64, burst int) *RateLimitInterceptor {
	return &RateLimitInterceptor{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (i *RateLimitInterceptor) limiter(procedure string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	l, ok := i.limiters[procedure]
	if !ok {
		l = rate.NewLimiter(i.limit, i.burst)
		i.limiters[procedure] = l
	}
	return l
}

// WrapUnary implements connect.Interceptor.
func (i *RateLimitInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if !i.limiter(req.Spec().Procedure).Allow() {
			return nil, connect.NewError(connect.CodeResourceExhausted, errRateLimited)
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *RateLimitInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *RateLimitInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if !i.limiter(conn.Spec().Procedure).Allow() {
			return connect.NewError(connect.CodeResourceExhausted, errRateLimited)
		}
		return next(ctx, conn)
	}
}
