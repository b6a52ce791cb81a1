package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/nexushq/nexus/handlers"
	"github.com/nexushq/nexus/ws"
)

// newRouter, HTTP yüzeyini kurar.
//
// Yüzey bilinçli olarak dardır: auth + webhook ingest + upload +
// yardımcı proxy'ler. Gerçek zamanlı operasyonların tamamı /ws
// üzerinden dispatcher'a akar.
func newRouter(h *handlerContainer, wsHandler *ws.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", wsHandler.HandleConnection)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/health", handlers.Health)

	// Auth uçları — token henüz yokken çalışır.
	mux.HandleFunc("POST /api/auth/register", h.auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.auth.Refresh)
	mux.HandleFunc("POST /api/auth/logout", h.auth.Logout)

	// Webhook ingest — kendi (id, token) çiftiyle doğrulanır, Bearer yok.
	mux.HandleFunc("POST /api/webhooks/{id}/{token}", h.webhook.Execute)

	// Bearer token arkasındaki uçlar.
	authed := func(fn http.HandlerFunc) http.Handler {
		return h.authMW.Require(fn)
	}
	mux.Handle("DELETE /api/user", authed(h.auth.DeleteAccount))
	mux.Handle("PATCH /api/user/profile", authed(h.auth.UpdateProfile))
	mux.Handle("POST /api/user/avatar", authed(h.avatar.SetUserAvatar))
	mux.Handle("POST /api/servers/{id}/icon", authed(h.avatar.SetServerIcon))
	mux.Handle("GET /api/og", authed(h.og.Preview))
	mux.Handle("GET /api/gifs/search", authed(h.gif.Search))
	mux.Handle("GET /api/gifs/trending", authed(h.gif.Trending))

	// Origin kontrolü burada yapılır; ws upgrade'i CheckOrigin'i bu
	// katmana bırakır.
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(mux)
}
