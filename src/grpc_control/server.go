package grpc_control

import (
	"quote-ticker/src/logger"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_ctxtags "github.com/grpc-ecosystem/go-grpc-middleware/tags"
	"google.golang.org/grpc"
)

// NewServer returns a grpc.Server with tagging, access logging and panic
// recovery, and the control service registered.
func NewServer(svc QuoteControlServer, log *logger.Logger) *grpc.Server {
	unaryInterceptors := grpc_middleware.WithUnaryServerChain(
		grpc_ctxtags.UnaryServerInterceptor(),
		grpc_zap.UnaryServerInterceptor(log.Zap()),
		grpc_recovery.UnaryServerInterceptor(),
	)
	srv := grpc.NewServer(unaryInterceptors)
	RegisterQuoteControlServer(srv, svc)
	return srv
}
