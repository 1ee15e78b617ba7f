package server

import (
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	page, err := s.commentService.List(c.UserContext(), requesterFrom(c), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// CreateComment handles POST /api/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req struct {
		Post   uint   `json:"post"`
		Parent *uint  `json:"parent"`
		Body   string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	comment, err := s.commentService.Create(c.UserContext(), requesterFrom(c), service.CreateCommentInput{
		PostID:   req.Post,
		ParentID: req.Parent,
		Body:     req.Body,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComment handles GET /api/comments/:id
func (s *Server) GetComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	comment, err := s.commentService.Retrieve(c.UserContext(), requesterFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comment)
}

// UpdateComment handles PUT and PATCH on /api/comments/:id
func (s *Server) UpdateComment(partial bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		var req struct {
			Body *string `json:"body"`
		}
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}

		comment, err := s.commentService.Update(c.UserContext(), requesterFrom(c), id, req.Body, partial)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(comment)
	}
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.commentService.Destroy(c.UserContext(), requesterFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikeComment handles POST /api/comments/:id/like
func (s *Server) LikeComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	res, err := s.engagementService.LikeComment(c.UserContext(), requesterFrom(c), id)
	return toggleResponse(c, res, err)
}

// GetCommentLikes handles GET /api/comments/:id/likes
func (s *Server) GetCommentLikes(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	page, err := s.commentService.Likes(c.UserContext(), requesterFrom(c), id, s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetCommentReplies handles GET /api/comments/:id/replies
func (s *Server) GetCommentReplies(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	page, err := s.commentService.Replies(c.UserContext(), requesterFrom(c), id, s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}
