package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetTags handles GET /api/tags
func (s *Server) GetTags(c *fiber.Ctx) error {
	page, err := s.tagService.List(c.UserContext(), requesterFrom(c), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// CreateTag handles POST /api/tags
func (s *Server) CreateTag(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	tag, err := s.tagService.Create(c.UserContext(), requesterFrom(c), req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}

// GetTag handles GET /api/tags/:slug
func (s *Server) GetTag(c *fiber.Ctx) error {
	tag, err := s.tagService.Retrieve(c.UserContext(), requesterFrom(c), c.Params("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tag)
}

// GetTagPosts handles GET /api/tags/:slug/posts
func (s *Server) GetTagPosts(c *fiber.Ctx) error {
	page, err := s.tagService.Posts(c.UserContext(), requesterFrom(c), c.Params("slug"), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetFeed handles GET /api/feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, err := s.feedService.Feed(c.UserContext(), requesterFrom(c), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// Search handles GET /api/search?query=&type=
func (s *Server) Search(c *fiber.Ctx) error {
	result, err := s.searchService.Search(c.UserContext(), requesterFrom(c),
		c.Query("query"), c.Query("type"), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
