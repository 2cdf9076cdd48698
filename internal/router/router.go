package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/handler"
	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/model"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterAuth registers register/login/refresh/logout under /v1/auth and
// the protected /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout works with either a bearer token or a refresh token, so no JWTAuth here
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the read-only space endpoints. cache wraps the
// space reads and reviewCache the review list; availability and
// reservations depend on live bookings and are always read through.
func RegisterPublic(e *echo.Echo, s *handler.SpaceHandler, r *handler.ReviewHandler, cache, reviewCache echo.MiddlewareFunc) {
	cache, reviewCache = orPass(cache), orPass(reviewCache)
	e.GET("/v1/venues/:id/spaces", s.ListVenueSpaces, cache)
	e.GET("/v1/spaces/:id", s.GetSpace, cache)
	e.GET("/v1/spaces/:id/reviews", r.ListForSpace, reviewCache)
	e.GET("/v1/spaces/:id/reservations", s.Reservations)
	e.GET("/v1/spaces/:id/availability", s.Availability)
}

// RegisterBookings registers renter endpoints. Hosts may book other hosts'
// spaces too, so both roles are accepted. limiter guards the mutations.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, r *handler.ReviewHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	limiter = orPass(limiter)
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleRenter, model.RoleHost),
	)
	g.POST("/spaces/:id/bookings", b.Confirm, limiter)
	g.GET("/my-bookings", b.ListMine)
	g.GET("/bookings/:id", b.Get)
	g.POST("/bookings/:id/cancel", b.Cancel, limiter)
	g.PUT("/bookings/:id/dates", b.Reschedule, limiter)
	g.POST("/bookings/:id/review", r.Create, limiter)
}

// RegisterHost registers the HOST-only endpoints: venue and space
// inventory plus the bookings of the caller's own spaces.
func RegisterHost(e *echo.Echo, h *handler.HostHandler, inv *handler.InventoryHandler, jwtSecret string) {
	g := e.Group(
		"/v1/host",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleHost),
	)
	g.GET("/spaces/:id/bookings", h.ListSpaceBookings)
	g.POST("/bookings/:id/accept", h.Accept)
	g.POST("/bookings/:id/reject", h.Reject)

	g.GET("/venues", inv.ListVenues)
	g.POST("/venues", inv.CreateVenue)
	g.PUT("/venues/:id", inv.UpdateVenue)
	g.DELETE("/venues/:id", inv.DeleteVenue)
	g.GET("/venues/:id/spaces", inv.ListSpaces)
	g.POST("/venues/:id/spaces", inv.CreateSpace)
	g.PUT("/spaces/:id", inv.UpdateSpace)
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m != nil {
		return m
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
}
