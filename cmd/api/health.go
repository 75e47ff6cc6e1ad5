package main

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// serviceName is the name reported by the gRPC health service in addition
// to the overall "" entry.
const serviceName = "finance.v1.API"

// newHealthServer returns a gRPC server exposing only the health service.
// Everything starts NOT_SERVING until the database has been checked.
func newHealthServer() (*grpc.Server, *health.Server) {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	setServing(hs, false)
	return gs, hs
}

func setServing(hs *health.Server, ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(serviceName, st)
}

// monitorHealth pings the database every interval and mirrors the result in
// hs until ctx ends. The first check runs immediately.
func monitorHealth(ctx context.Context, hs *health.Server, db Pinger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := -1 // unknown
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.Ping(pingCtx)
		cancel()

		ok := 0
		if err == nil {
			ok = 1
		}
		if ok != last {
			if err != nil && ctx.Err() == nil {
				logger.Get().Warn("database unreachable", zap.Error(err))
			}
			setServing(hs, err == nil)
			last = ok
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
