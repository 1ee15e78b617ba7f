package server

import (
	"bytes"
	"fmt"

	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := s.postService.List(c.UserContext(), requesterFrom(c), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Title string   `json:"title"`
		Body  string   `json:"body"`
		Tags  []string `json:"tags"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	post, err := s.postService.Create(c.UserContext(), requesterFrom(c), service.CreatePostInput{
		Title: req.Title,
		Body:  req.Body,
		Tags:  req.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:slug
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.Retrieve(c.UserContext(), requesterFrom(c), c.Params("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT (full) and PATCH (partial) on /api/posts/:slug.
// An omitted tags field leaves the tags alone; an empty list clears them.
func (s *Server) UpdatePost(partial bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Title *string   `json:"title"`
			Body  *string   `json:"body"`
			Tags  *[]string `json:"tags"`
		}
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}

		in := service.UpdatePostInput{Title: req.Title, Body: req.Body}
		if req.Tags != nil {
			in.Tags = *req.Tags
			in.HasTags = true
		}

		post, err := s.postService.Update(c.UserContext(), requesterFrom(c), c.Params("slug"), in, partial)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(post)
	}
}

// DeletePost handles DELETE /api/posts/:slug
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.Destroy(c.UserContext(), requesterFrom(c), c.Params("slug")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteAllPosts handles DELETE /api/posts/delete-all
func (s *Server) DeleteAllPosts(c *fiber.Ctx) error {
	n, err := s.postService.DeleteAll(c.UserContext(), requesterFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("%d posts deleted successfully", n),
		"deleted": n,
	})
}

// LikePost handles POST /api/posts/:slug/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	res, err := s.engagementService.LikePost(c.UserContext(), requesterFrom(c), c.Params("slug"))
	return toggleResponse(c, res, err)
}

// FavoritePost handles POST /api/posts/:slug/favorite
func (s *Server) FavoritePost(c *fiber.Ctx) error {
	res, err := s.engagementService.FavoritePost(c.UserContext(), requesterFrom(c), c.Params("slug"))
	return toggleResponse(c, res, err)
}

// FeaturePost handles POST /api/posts/:slug/feature
func (s *Server) FeaturePost(c *fiber.Ctx) error {
	res, err := s.engagementService.FeaturePost(c.UserContext(), requesterFrom(c), c.Params("slug"))
	return toggleResponse(c, res, err)
}

// PublishPost handles POST /api/posts/:slug/publish
func (s *Server) PublishPost(c *fiber.Ctx) error {
	res, err := s.engagementService.PublishPost(c.UserContext(), requesterFrom(c), c.Params("slug"))
	return toggleResponse(c, res, err)
}

// GetPostLikes handles GET /api/posts/:slug/likes
func (s *Server) GetPostLikes(c *fiber.Ctx) error {
	page, err := s.postService.Likes(c.UserContext(), requesterFrom(c), c.Params("slug"), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetFavoritedPosts handles GET /api/posts/favorited
func (s *Server) GetFavoritedPosts(c *fiber.Ctx) error {
	page, err := s.postService.Favorited(c.UserContext(), requesterFrom(c), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetPostTags handles GET /api/posts/:slug/tags
func (s *Server) GetPostTags(c *fiber.Ctx) error {
	tags, err := s.postService.Tags(c.UserContext(), requesterFrom(c), c.Params("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tags)
}

// GetPostComments handles GET /api/posts/:slug/comments
func (s *Server) GetPostComments(c *fiber.Ctx) error {
	page, err := s.commentService.ForPost(c.UserContext(), requesterFrom(c), c.Params("slug"), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// UploadPostImages handles POST /api/posts/:slug/images (multipart field "images")
func (s *Server) UploadPostImages(c *fiber.Ctx) error {
	files, err := s.readUploads(c, "images")
	if err != nil {
		return respondError(c, err)
	}
	images, err := s.postService.UploadImages(c.UserContext(), requesterFrom(c), c.Params("slug"), files)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(images)
}

// DownloadPostImages handles GET /api/posts/:slug/download. The archive is
// built in memory so a failure still produces a JSON error.
func (s *Server) DownloadPostImages(c *fiber.Ctx) error {
	slug := c.Params("slug")
	var buf bytes.Buffer
	if err := s.postService.Download(c.UserContext(), requesterFrom(c), slug, &buf); err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Attachment(slug + ".zip")
	return c.Send(buf.Bytes())
}
