package pagerpc

import (
	"context"
	"errors"

	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/errorreporting"
	"github.com/Keksclan/linkSquirrel/linkpage"
	"github.com/Keksclan/linkSquirrel/store"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Pages is the part of [linkpage.Service] the server calls.
type Pages interface {
	GetProfile(ctx context.Context, username string) (*linkpage.Profile, error)
	GetAIPage(ctx context.Context, slug string) (*linkpage.AIPage, error)
	SaveProfile(ctx context.Context, actor contextx.Actor, p *linkpage.Profile) error
	SaveAIPage(ctx context.Context, actor contextx.Actor, p *linkpage.AIPage) error
	DeleteAIPage(ctx context.Context, actor contextx.Actor, slug string) error
	InvalidateTag(ctx context.Context, tag string) error
}

// Server implements Handler on top of Pages. Absent records are reported
// with codes.NotFound.
type Server struct {
	pages  Pages
	logger *zap.Logger
}

// NewServer returns a Server backed by pages.
func NewServer(pages Pages, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pages: pages, logger: logger}
}

var _ Handler = (*Server)(nil)

func (s *Server) GetProfile(ctx context.Context, req *GetProfileRequest) (*ProfileResponse, error) {
	p, err := s.pages.GetProfile(ctx, req.Username)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if p == nil {
		return nil, status.Error(codes.NotFound, "profile not found")
	}
	return &ProfileResponse{Profile: p}, nil
}

func (s *Server) GetAIPage(ctx context.Context, req *GetAIPageRequest) (*AIPageResponse, error) {
	p, err := s.pages.GetAIPage(ctx, req.Slug)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if p == nil {
		return nil, status.Error(codes.NotFound, "ai page not found")
	}
	return &AIPageResponse{Page: p}, nil
}

func (s *Server) SaveProfile(ctx context.Context, req *SaveProfileRequest) (*ProfileResponse, error) {
	actor, _ := contextx.ActorFromContext(ctx)
	if err := s.pages.SaveProfile(ctx, actor, req.Profile); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ProfileResponse{Profile: req.Profile}, nil
}

func (s *Server) SaveAIPage(ctx context.Context, req *SaveAIPageRequest) (*AIPageResponse, error) {
	actor, _ := contextx.ActorFromContext(ctx)
	if err := s.pages.SaveAIPage(ctx, actor, req.Page); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &AIPageResponse{Page: req.Page}, nil
}

func (s *Server) DeleteAIPage(ctx context.Context, req *DeleteAIPageRequest) (*Empty, error) {
	actor, _ := contextx.ActorFromContext(ctx)
	if err := s.pages.DeleteAIPage(ctx, actor, req.Slug); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

func (s *Server) InvalidateTag(ctx context.Context, req *InvalidateTagRequest) (*Empty, error) {
	if err := s.pages.InvalidateTag(ctx, req.Tag); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &Empty{}, nil
}

// toStatus maps service errors onto gRPC codes. Unexpected failures are
// logged and reported; their text is not sent to the caller.
func (s *Server) toStatus(ctx context.Context, err error) error {
	code := Code(err)
	switch code {
	case codes.Internal, codes.Unavailable:
		s.logger.Error("pages call failed",
			zap.String("request_id", contextx.RequestIDFromContext(ctx)),
			zap.Error(err),
		)
		if code == codes.Internal {
			errorreporting.CaptureError(ctx, err)
		}
		return status.Error(code, "storage unavailable")
	default:
		return status.Error(code, err.Error())
	}
}

// Code classifies err. It is shared with the HTTP surface.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, linkpage.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, linkpage.ErrInvalidKey),
		errors.Is(err, linkpage.ErrInvalidRecord),
		errors.Is(err, linkpage.ErrUnknownTag):
		return codes.InvalidArgument
	case errors.Is(err, linkpage.ErrForbidden):
		return codes.PermissionDenied
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		store.Transient(err):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
