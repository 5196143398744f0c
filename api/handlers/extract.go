package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coastline/webextract/pkg/engine"
	"github.com/coastline/webextract/pkg/models"
)

// ExtractHandler serves the extract/preview HTTP surface over pkg/engine.
type ExtractHandler struct {
	engine *engine.Engine
}

func NewExtractHandler(e *engine.Engine) *ExtractHandler {
	return &ExtractHandler{engine: e}
}

type extractRequest struct {
	URL              string            `json:"url"`
	TimeoutMs        int64             `json:"timeoutMs,omitempty"`
	MinContentLength int               `json:"minContentLength,omitempty"`
	ForceStrategy    string            `json:"forceStrategy,omitempty"`
	SkipStrategies   []string          `json:"skipStrategies,omitempty"`
	AllowBrowser     *bool             `json:"allowBrowser,omitempty"`
	MaxLatencyMs     int64             `json:"maxLatencyMs,omitempty"`
	MaxCostTier      string            `json:"maxCostTier,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	UserAgent        string            `json:"userAgent,omitempty"`
	Tenant           string            `json:"tenant,omitempty"`
}

func (r extractRequest) toOptions() models.ExtractOptions {
	opts := models.NewExtractOptions()
	if r.TimeoutMs > 0 {
		opts.TimeoutMs = r.TimeoutMs
	}
	opts.MinContentLength = r.MinContentLength
	opts.ForceStrategy = r.ForceStrategy
	opts.SkipStrategies = r.SkipStrategies
	if r.AllowBrowser != nil {
		opts.AllowBrowser = *r.AllowBrowser
	}
	opts.MaxLatencyMs = r.MaxLatencyMs
	opts.MaxCostTier = models.CostTier(r.MaxCostTier)
	opts.Headers = r.Headers
	opts.UserAgent = r.UserAgent
	opts.Tenant = r.Tenant
	return opts
}

// Extract handles POST /api/v1/extract.
func (h *ExtractHandler) Extract(c *fiber.Ctx) error {
	var req extractRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "url is required")
	}

	result, err := h.engine.Extract(c.Context(), req.URL, req.toOptions())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(result)
}

// Preview handles POST /api/v1/preview.
func (h *ExtractHandler) Preview(c *fiber.Ctx) error {
	var req extractRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "url is required")
	}

	plan, err := h.engine.Preview(c.Context(), req.URL, req.toOptions())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(plan)
}
