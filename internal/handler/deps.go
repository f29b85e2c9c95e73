package handler

import (
	"golang.org/x/time/rate"

	"voicerelay/internal/app/voice"
	"voicerelay/internal/configs"
	"voicerelay/internal/pkg/limiter"
)

type AppDeps struct {
	Manager *voice.Manager
	Config  *configs.AppConfig

	// JoinLimiter guards WebSocket upgrades, APILimiter the /api routes.
	JoinLimiter *limiter.IPRateLimiter
	APILimiter  *limiter.IPRateLimiter
}

// NewAppDeps builds the handler dependencies and starts the per-IP limiters. Call Close once
// the HTTP server has stopped.
func NewAppDeps(manager *voice.Manager, cfg *configs.AppConfig) *AppDeps {
	return &AppDeps{
		Manager:     manager,
		Config:      cfg,
		JoinLimiter: limiter.NewIPRateLimiter(rate.Limit(cfg.JoinRate), cfg.JoinBurst, limiter.DefaultCleanupInterval),
		APILimiter:  limiter.NewIPRateLimiter(rate.Limit(cfg.APIRate), cfg.APIBurst, limiter.DefaultCleanupInterval),
	}
}

// Close stops the limiters' sweeper goroutines.
func (d *AppDeps) Close() {
	d.JoinLimiter.Stop()
	d.APILimiter.Stop()
}
