package interceptors

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/policy"
	"github.com/Keksclan/linkSquirrel/ratelimit"
	"github.com/Keksclan/linkSquirrel/reqscope"
	"github.com/Keksclan/linkSquirrel/security"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// okHandler is a trivial handler that always succeeds.
func okHandler(_ context.Context, _ any) (any, error) { return "ok", nil }

func codeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	st, _ := status.FromError(err)
	return st.Code()
}

func info(method string) *grpc.UnaryServerInfo {
	return &grpc.UnaryServerInfo{FullMethod: method}
}

func TestRecoveryUnary_Panic_ReturnsInternal(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	ic := RecoveryUnary(zap.New(core))
	handler := func(_ context.Context, _ any) (any, error) {
		panic("boom")
	}

	resp, err := ic(t.Context(), "req", info(policy.OpGetProfile), handler)
	if resp != nil {
		t.Fatalf("expected nil response, got %v", resp)
	}
	if codeOf(err) != codes.Internal {
		t.Fatalf("expected codes.Internal, got %v", codeOf(err))
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatal("expected the panic to be logged")
	}
}

func TestRecoveryUnary_NonStringPanic_ReturnsInternal(t *testing.T) {
	ic := RecoveryUnary(nil)
	handler := func(_ context.Context, _ any) (any, error) {
		panic(42)
	}

	_, err := ic(t.Context(), "req", info("/svc/M"), handler)
	if codeOf(err) != codes.Internal {
		t.Fatalf("expected codes.Internal, got %v", codeOf(err))
	}
}

func TestRecoveryUnary_NoPanic_Passthrough(t *testing.T) {
	ic := RecoveryUnary(nil)
	handler := func(_ context.Context, req any) (any, error) {
		return req, nil
	}

	resp, err := ic(t.Context(), "hello", info("/svc/M"), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hello" {
		t.Fatalf("expected %q, got %v", "hello", resp)
	}
}

func TestRequestIDUnary_GeneratesAndAdopts(t *testing.T) {
	ic := RequestIDUnary()
	var seen string
	handler := func(ctx context.Context, _ any) (any, error) {
		seen = contextx.RequestIDFromContext(ctx)
		return nil, nil
	}

	if _, err := ic(t.Context(), nil, info("/svc/M"), handler); err != nil {
		t.Fatal(err)
	}
	if seen == "" {
		t.Fatal("expected a generated request ID")
	}

	ctx := metadata.NewIncomingContext(t.Context(), metadata.Pairs(RequestIDKey, "req-123"))
	if _, err := ic(ctx, nil, info("/svc/M"), handler); err != nil {
		t.Fatal(err)
	}
	if seen != "req-123" {
		t.Fatalf("got %q, want the caller's ID", seen)
	}
}

func TestScopeUnary_BindsFreshScope(t *testing.T) {
	ic := ScopeUnary()
	var scopes []*reqscope.Scope
	handler := func(ctx context.Context, _ any) (any, error) {
		scopes = append(scopes, contextx.RequestScopeFromContext(ctx))
		return nil, nil
	}

	for range 2 {
		if _, err := ic(t.Context(), nil, info("/svc/M"), handler); err != nil {
			t.Fatal(err)
		}
	}
	if scopes[0] == nil || scopes[1] == nil {
		t.Fatal("expected a scope on every call")
	}
	if scopes[0] == scopes[1] {
		t.Fatal("calls must not share a scope")
	}
}

func TestTimeoutUnary_AppliesPolicyDeadline(t *testing.T) {
	r := policy.NewResolver(
		policy.Group("reads").Exact("/svc/Get").Policy(policy.Policy{Timeout: 50 * time.Millisecond}),
	)
	ic := TimeoutUnary(r)

	var deadline time.Time
	var ok bool
	handler := func(ctx context.Context, _ any) (any, error) {
		deadline, ok = ctx.Deadline()
		return nil, nil
	}

	if _, err := ic(t.Context(), nil, info("/svc/Get"), handler); err != nil {
		t.Fatal(err)
	}
	if !ok || time.Until(deadline) > 50*time.Millisecond {
		t.Fatalf("deadline = (%v, %v), want within 50ms", deadline, ok)
	}

	if _, err := ic(context.Background(), nil, info("/svc/Other"), handler); err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unmatched method must not get a deadline")
	}
}

func TestLoggingUnary_LevelFollowsCode(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ic := LoggingUnary(zap.New(core))

	_, _ = ic(t.Context(), nil, info("/svc/Get"), okHandler)
	_, _ = ic(t.Context(), nil, info("/svc/Get"), func(context.Context, any) (any, error) {
		return nil, status.Error(codes.NotFound, "nope")
	})
	_, _ = ic(t.Context(), nil, info("/svc/Get"), func(context.Context, any) (any, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d log entries, want 3", len(entries))
	}
	wantLevels := []string{"info", "info", "error"}
	for i, e := range entries {
		if e.Level.String() != wantLevels[i] {
			t.Errorf("entry %d level = %s, want %s", i, e.Level, wantLevels[i])
		}
	}
	if got := entries[1].ContextMap()["code"]; got != "NotFound" {
		t.Fatalf("code field = %v, want NotFound", got)
	}
}

func TestRateLimitUnary_GlobalOnly(t *testing.T) {
	global := ratelimit.NewLimiter(0.001, 2) // burst 2, nearly no refill
	ic := RateLimitUnary(RateLimitConfig{Global: global})

	for i := range 2 {
		if _, err := ic(t.Context(), nil, info("/svc/Method"), okHandler); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}
	_, err := ic(t.Context(), nil, info("/svc/Method"), okHandler)
	if codeOf(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", codeOf(err))
	}
}

func TestRateLimitUnary_PerGroupOverridesGlobal(t *testing.T) {
	global := ratelimit.NewLimiter(1000, 100)
	resolver := policy.NewResolver(
		policy.Group("writes").
			Exact(policy.OpSaveProfile).
			Policy(policy.Policy{RateLimit: &policy.RateLimitRule{Rate: 2, Window: time.Minute}}),
	)
	ic := RateLimitUnary(RateLimitConfig{Global: global, Policies: resolver})

	for i := range 2 {
		if _, err := ic(t.Context(), nil, info(policy.OpSaveProfile), okHandler); err != nil {
			t.Fatalf("write %d: unexpected error: %v", i, err)
		}
	}
	if _, err := ic(t.Context(), nil, info(policy.OpSaveProfile), okHandler); codeOf(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", codeOf(err))
	}
	// Reads still use the generous global limiter.
	if _, err := ic(t.Context(), nil, info(policy.OpGetProfile), okHandler); err != nil {
		t.Fatalf("read: unexpected error: %v", err)
	}
}

func TestRateLimitUnary_PerClient(t *testing.T) {
	clientIP, err := security.NewClientIP(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ic := RateLimitUnary(RateLimitConfig{
		PerClient: ratelimit.NewKeyed(0.001, 1),
		ClientIP:  clientIP,
	})
	from := func(ip string) context.Context {
		return peer.NewContext(t.Context(), &peer.Peer{
			Addr: &net.TCPAddr{IP: net.ParseIP(ip), Port: 1234},
		})
	}

	if _, err := ic(from("192.0.2.1"), nil, info("/svc/M"), okHandler); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := ic(from("192.0.2.1"), nil, info("/svc/M"), okHandler); codeOf(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", codeOf(err))
	}
	if _, err := ic(from("192.0.2.2"), nil, info("/svc/M"), okHandler); err != nil {
		t.Fatalf("other client: %v", err)
	}
}

func TestRateLimitUnary_NothingConfiguredAllows(t *testing.T) {
	ic := RateLimitUnary(RateLimitConfig{})
	for range 10 {
		if _, err := ic(t.Context(), nil, info("/svc/M"), okHandler); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
