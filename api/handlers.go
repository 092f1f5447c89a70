package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/vellum/pkg/document"
	"github.com/papercomputeco/vellum/pkg/ingest"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IngestRequest is the body of POST /v1/ingest.
type IngestRequest struct {
	Documents []document.Document `json:"documents"`
}

// IngestResponse reports the outcome of an ingestion run.
type IngestResponse struct {
	ingest.Report
	Collection string `json:"collection,omitempty"`
	Partial    bool   `json:"partial"`
}

// CollectionResponse describes the collection.
type CollectionResponse struct {
	Name       string `json:"name"`
	Dimensions uint   `json:"dimensions"`
	Count      int    `json:"count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIngest handles POST /v1/ingest requests.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	if s.config.Ingester == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "ingestion is not configured",
		})
	}

	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body",
		})
	}
	if len(req.Documents) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "documents are required",
		})
	}

	report, err := s.config.Ingester.Ingest(c.UserContext(), req.Documents)
	if err != nil {
		s.logger.Error("ingestion failed", "error", err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	resp := IngestResponse{Report: report, Partial: report.Partial()}
	if s.config.Collection != nil {
		resp.Collection = s.config.Collection.Config().Collection
	}
	return c.JSON(resp)
}

// handleGetCollection handles GET /v1/collection requests.
func (s *Server) handleGetCollection(c *fiber.Ctx) error {
	if s.config.Collection == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "collection is not configured",
		})
	}

	count, err := s.config.Collection.Count(c.UserContext())
	if err != nil {
		s.logger.Error("counting collection failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "failed to count collection",
		})
	}

	cfg := s.config.Collection.Config()
	return c.JSON(CollectionResponse{
		Name:       cfg.Collection,
		Dimensions: cfg.Dimensions,
		Count:      count,
	})
}

// handleClearCollection handles DELETE /v1/collection requests.
func (s *Server) handleClearCollection(c *fiber.Ctx) error {
	if s.config.Collection == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "collection is not configured",
		})
	}

	if err := s.config.Collection.Clear(c.UserContext()); err != nil {
		s.logger.Error("clearing collection failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "failed to clear collection",
		})
	}

	cfg := s.config.Collection.Config()
	return c.JSON(CollectionResponse{
		Name:       cfg.Collection,
		Dimensions: cfg.Dimensions,
	})
}
