package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListProfiles handles GET /api/profiles
func (s *Server) ListProfiles(c *fiber.Ctx) error {
	page, err := s.profileService.List(c.UserContext(), requesterFrom(c), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetProfile handles GET /api/profiles/:username. The owner gets the
// extended view with stats, favorites and follows.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	view, err := s.profileService.Retrieve(c.UserContext(), requesterFrom(c), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// UpdateProfile handles PUT and PATCH on /api/profiles/:username
func (s *Server) UpdateProfile(partial bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			DisplayName *string `json:"display_name"`
			Bio         *string `json:"bio"`
		}
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}

		view, err := s.profileService.Update(c.UserContext(), requesterFrom(c), c.Params("username"),
			service.UpdateProfileInput{DisplayName: req.DisplayName, Bio: req.Bio}, partial)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	}
}

// DeleteProfile handles DELETE /api/profiles/:username. The owning account
// goes with it.
func (s *Server) DeleteProfile(c *fiber.Ctx) error {
	if err := s.profileService.Destroy(c.UserContext(), requesterFrom(c), c.Params("username")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadProfilePicture handles POST /api/profiles/:username/picture (multipart field "picture")
func (s *Server) UploadProfilePicture(c *fiber.Ctx) error {
	fh, err := c.FormFile("picture")
	if err != nil {
		return respondError(c, models.NewValidationError("No image was uploaded."))
	}
	upload, err := s.readUpload(fh)
	if err != nil {
		return respondError(c, err)
	}

	view, err := s.profileService.UploadPicture(c.UserContext(), requesterFrom(c), c.Params("username"), upload)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// DeleteProfilePicture handles DELETE /api/profiles/:username/picture
func (s *Server) DeleteProfilePicture(c *fiber.Ctx) error {
	if err := s.profileService.DeletePicture(c.UserContext(), requesterFrom(c), c.Params("username")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetProfilePosts handles GET /api/profiles/:username/posts
func (s *Server) GetProfilePosts(c *fiber.Ctx) error {
	page, err := s.profileService.Posts(c.UserContext(), requesterFrom(c), c.Params("username"), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// ToggleFollow handles POST /api/profiles/:username/follow
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	res, err := s.engagementService.ToggleFollow(c.UserContext(), requesterFrom(c), c.Params("username"))
	return toggleResponse(c, res, err)
}

// GetFollowing handles GET /api/profiles/:username/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	page, err := s.followService.Following(c.UserContext(), requesterFrom(c), c.Params("username"), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetFollowers handles GET /api/profiles/:username/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	page, err := s.followService.Followers(c.UserContext(), requesterFrom(c), c.Params("username"), s.parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// IsFollowing handles GET /api/profiles/:username/is-following
func (s *Server) IsFollowing(c *fiber.Ctx) error {
	following, err := s.followService.IsFollowing(c.UserContext(), requesterFrom(c), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"is_following": following})
}
