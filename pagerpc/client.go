package pagerpc

import (
	"context"
	"time"

	"github.com/Keksclan/linkSquirrel/linkpage"
	"github.com/Keksclan/linkSquirrel/policy"
	"github.com/Keksclan/linkSquirrel/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// DefaultClientRetry retries idempotent calls that fail with Unavailable.
func DefaultClientRetry() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Jitter:      0.2,
		Retryable:   retry.Codes(codes.Unavailable),
	}
}

// Client calls linksquirrel.Pages. Reads and InvalidateTag are retried;
// writes are sent once.
type Client struct {
	conn  grpc.ClientConnInterface
	retry retry.Config
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithRetry replaces DefaultClientRetry.
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// NewClient returns a Client using conn.
func NewClient(conn grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{conn: conn, retry: DefaultClientRetry()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithToken returns ctx carrying token as the bearer credential of outgoing
// calls.
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any, retried bool) (*Resp, error) {
	call := func(ctx context.Context) (*Resp, error) {
		resp := new(Resp)
		if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
			return nil, err
		}
		return resp, nil
	}
	if !retried {
		return call(ctx)
	}
	return retry.Do(ctx, c.retry, call)
}

// GetProfile returns the profile of username, or nil when none exists.
func (c *Client) GetProfile(ctx context.Context, username string) (*linkpage.Profile, error) {
	resp, err := invoke[ProfileResponse](ctx, c, policy.OpGetProfile, &GetProfileRequest{Username: username}, true)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.Profile, nil
}

// GetAIPage returns the AI page at slug, or nil when none exists.
func (c *Client) GetAIPage(ctx context.Context, slug string) (*linkpage.AIPage, error) {
	resp, err := invoke[AIPageResponse](ctx, c, policy.OpGetAIPage, &GetAIPageRequest{Slug: slug}, true)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.Page, nil
}

// SaveProfile writes p and returns the stored record.
func (c *Client) SaveProfile(ctx context.Context, p *linkpage.Profile) (*linkpage.Profile, error) {
	resp, err := invoke[ProfileResponse](ctx, c, policy.OpSaveProfile, &SaveProfileRequest{Profile: p}, false)
	if err != nil {
		return nil, err
	}
	return resp.Profile, nil
}

// SaveAIPage writes p and returns the stored record.
func (c *Client) SaveAIPage(ctx context.Context, p *linkpage.AIPage) (*linkpage.AIPage, error) {
	resp, err := invoke[AIPageResponse](ctx, c, policy.OpSaveAIPage, &SaveAIPageRequest{Page: p}, false)
	if err != nil {
		return nil, err
	}
	return resp.Page, nil
}

// DeleteAIPage removes the AI page at slug.
func (c *Client) DeleteAIPage(ctx context.Context, slug string) error {
	_, err := invoke[Empty](ctx, c, policy.OpDeleteAIPage, &DeleteAIPageRequest{Slug: slug}, false)
	return err
}

// InvalidateTag expires every revalidating entry carrying tag.
func (c *Client) InvalidateTag(ctx context.Context, tag string) error {
	_, err := invoke[Empty](ctx, c, policy.OpInvalidateTag, &InvalidateTagRequest{Tag: tag}, true)
	return err
}
