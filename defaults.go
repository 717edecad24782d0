package linksquirrel

import (
	"github.com/Keksclan/linkSquirrel/policy"
	"go.uber.org/zap"
)

// DefaultOptions returns the recommended set of options for production use:
// recovery, request IDs, request logging, request scopes and policy
// timeouts.
func DefaultOptions(logger *zap.Logger, policies *policy.Resolver) []Option {
	return []Option{
		WithLogger(logger),
		WithPolicies(policies),
		WithRecovery(),
		WithRequestID(),
		WithLogging(),
		WithRequestScope(),
		WithTimeouts(),
	}
}
