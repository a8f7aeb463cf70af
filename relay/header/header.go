// Package header holds the response header policy of the relay endpoint.
//
// Browser clients call the relay cross-origin, so every response on the
// generation route carries CORS headers, and streamed responses carry the
// headers that keep intermediaries from buffering or caching the event stream.
package header

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// RequestIDHeader carries the id the relay assigns to each generation.
const RequestIDHeader = "X-Request-Id"

const (
	allowMethods = "POST, OPTIONS"
	allowHeaders = "Content-Type, Authorization"

	// preflightMaxAge is one day, in seconds.
	preflightMaxAge = 86400
)

// Handler applies the header policy for a configured origin.
type Handler struct {
	allowOrigin string
}

// NewHandler creates a Handler. An empty origin allows any origin.
func NewHandler(allowOrigin string) *Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return &Handler{allowOrigin: allowOrigin}
}

// AllowOrigin returns the configured Access-Control-Allow-Origin value.
func (h *Handler) AllowOrigin() string {
	return h.allowOrigin
}

// SetCORSHeaders sets the headers every response on the route carries.
func (h *Handler) SetCORSHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, h.allowOrigin)
	c.Set(fiber.HeaderAccessControlAllowMethods, allowMethods)
	c.Set(fiber.HeaderAccessControlAllowHeaders, allowHeaders)
}

// SetPreflightHeaders sets the CORS headers of an OPTIONS response, including
// how long the browser may cache the preflight result.
func (h *Handler) SetPreflightHeaders(c *fiber.Ctx) {
	h.SetCORSHeaders(c)
	c.Set(fiber.HeaderAccessControlMaxAge, strconv.Itoa(preflightMaxAge))
}

// SetStreamHeaders sets the headers of a server-sent event response.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx, requestID string) {
	h.SetCORSHeaders(c)
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
	if requestID != "" {
		c.Set(RequestIDHeader, requestID)
	}
}
