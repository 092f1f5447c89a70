package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apisearch "github.com/papercomputeco/vellum/api/search"
)

// handleSearchEndpoint handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional, default from config): number of results to return, capped at search.MaxTopK
//   - min_authority (optional): lowest source authority tier to return
func (s *Server) handleSearchEndpoint(c *fiber.Ctx) error {
	if s.config.Retriever == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "search is not configured: vector store and embedder are required",
		})
	}

	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	input := apisearch.SearchInput{Query: query}

	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		input.TopK = parsed
	}

	if floorStr := c.Query("min_authority"); floorStr != "" {
		parsed, err := strconv.Atoi(floorStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "min_authority must be an integer",
			})
		}
		input.MinAuthority = &parsed
	}

	output, err := apisearch.Search(c.UserContext(), s.config.Retriever, input, s.logger)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(output)
}
