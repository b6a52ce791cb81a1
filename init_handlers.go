package main

import (
	"github.com/nexushq/nexus/config"
	"github.com/nexushq/nexus/handlers"
	"github.com/nexushq/nexus/middleware"
	"github.com/nexushq/nexus/pkg/ratelimit"
)

// handlerContainer, HTTP handler instance'larını bir arada tutar.
type handlerContainer struct {
	auth    *handlers.AuthHandler
	avatar  *handlers.AvatarHandler
	webhook *handlers.WebhookHandler
	og      *handlers.OGHandler
	gif     *handlers.GifHandler

	authMW *middleware.AuthMiddleware
}

func newHandlers(cfg *config.Config, svcs *serviceContainer, repos *repositories, limiter *ratelimit.Limiter) *handlerContainer {
	return &handlerContainer{
		auth:    handlers.NewAuthHandler(svcs.auth, limiter),
		avatar:  handlers.NewAvatarHandler(svcs.auth, svcs.servers, cfg.Upload.MaxBytes),
		webhook: handlers.NewWebhookHandler(svcs.webhooks, limiter),
		og:      handlers.NewOGHandler(svcs.og),
		gif:     handlers.NewGifHandler(svcs.gifs),
		authMW:  middleware.NewAuthMiddleware(svcs.auth, repos.users),
	}
}
