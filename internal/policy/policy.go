// Package policy decides who may perform which action on posts, comments,
// profiles, tags and accounts.
//
// Every action maps to one capability class and a denial reason through a
// static table indexed by Action. The table is built once at package
// initialization and never consulted by name.
package policy

import (
	"fmt"

	"inkwell/internal/models"
)

// Requester is the resolved identity of the caller. The zero value is anonymous.
type Requester struct {
	AccountID uint
	ProfileID uint
	Username  string
	IsAdmin   bool
}

// Anonymous is the unauthenticated requester.
var Anonymous = Requester{}

// Authenticated reports whether the requester carries a session.
func (r Requester) Authenticated() bool {
	return r.AccountID != 0
}

// Owns reports whether the requester's profile is ownerProfileID.
func (r Requester) Owns(ownerProfileID uint) bool {
	return r.ProfileID != 0 && r.ProfileID == ownerProfileID
}

// Capability is the class of requester an action admits.
type Capability int

const (
	Public Capability = iota
	Authenticated
	OwnerOrAdmin
	AdminOnly
)

func (c Capability) String() string {
	switch c {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case OwnerOrAdmin:
		return "owner_or_admin"
	case AdminOnly:
		return "admin_only"
	default:
		return "unknown"
	}
}

// Action enumerates every operation exposed over the API.
type Action int

const (
	PostList Action = iota
	PostRetrieve
	PostCreate
	PostUpdate
	PostPartialUpdate
	PostDestroy
	PostDeleteAll
	PostLike
	PostLikes
	PostFavorite
	PostFavorited
	PostFeature
	PostPublish
	PostTags
	PostComments
	PostUploadImages
	PostDownload

	CommentList
	CommentRetrieve
	CommentCreate
	CommentUpdate
	CommentPartialUpdate
	CommentDestroy
	CommentLike
	CommentLikes
	CommentReplies

	ProfileList
	ProfileRetrieve
	ProfileUpdate
	ProfilePartialUpdate
	ProfileDestroy
	ProfileUploadPicture
	ProfileDeletePicture
	ProfilePosts
	ProfileFollow
	ProfileFollowing
	ProfileFollowers
	ProfileIsFollowing

	TagList
	TagRetrieve
	TagCreate
	TagPosts

	AccountList
	AccountMe
	AccountDestroy

	Feed
	Search

	actionCount
)

const notAuthenticated = "You are not authenticated."

type rule struct {
	name       string
	capability Capability
	denial     string
}

var rules = [actionCount]rule{
	PostList:          {"post.list", Public, ""},
	PostRetrieve:      {"post.retrieve", Public, ""},
	PostCreate:        {"post.create", Authenticated, notAuthenticated},
	PostUpdate:        {"post.update", OwnerOrAdmin, "You are not allowed to update this post."},
	PostPartialUpdate: {"post.partial_update", OwnerOrAdmin, "You are not allowed to update this post."},
	PostDestroy:       {"post.destroy", OwnerOrAdmin, "You are not allowed to delete this post."},
	PostDeleteAll:     {"post.delete_all_posts", Authenticated, notAuthenticated},
	PostLike:          {"post.like", Authenticated, notAuthenticated},
	PostLikes:         {"post.likes", Public, ""},
	PostFavorite:      {"post.favorite", Authenticated, notAuthenticated},
	PostFavorited:     {"post.favorited", Authenticated, notAuthenticated},
	PostFeature:       {"post.feature", OwnerOrAdmin, "You are not allowed to feature this post."},
	PostPublish:       {"post.publish", OwnerOrAdmin, "You are not allowed to publish this post."},
	PostTags:          {"post.tags", Public, ""},
	PostComments:      {"post.comments", Public, ""},
	PostUploadImages:  {"post.upload_images", OwnerOrAdmin, "You are not allowed to update this post."},
	PostDownload:      {"post.download", Public, ""},

	CommentList:          {"comment.list", Public, ""},
	CommentRetrieve:      {"comment.retrieve", Public, ""},
	CommentCreate:        {"comment.create", Authenticated, notAuthenticated},
	CommentUpdate:        {"comment.update", OwnerOrAdmin, "You are not allowed to update this comment."},
	CommentPartialUpdate: {"comment.partial_update", OwnerOrAdmin, "You are not allowed to partially update this comment."},
	CommentDestroy:       {"comment.destroy", OwnerOrAdmin, "You are not allowed to delete this comment."},
	CommentLike:          {"comment.like", Authenticated, notAuthenticated},
	CommentLikes:         {"comment.likes", Authenticated, notAuthenticated},
	CommentReplies:       {"comment.comment", Public, ""},

	ProfileList:          {"profile.list", AdminOnly, "You are not allowed to list profiles."},
	ProfileRetrieve:      {"profile.retrieve", Authenticated, notAuthenticated},
	ProfileUpdate:        {"profile.update", OwnerOrAdmin, "You are not allowed to update this profile."},
	ProfilePartialUpdate: {"profile.partial_update", OwnerOrAdmin, "You are not allowed to partially update this profile."},
	ProfileDestroy:       {"profile.destroy", OwnerOrAdmin, "You are not allowed to delete this profile."},
	ProfileUploadPicture: {"profile.upload_picture", OwnerOrAdmin, "You are not allowed to update this profile."},
	ProfileDeletePicture: {"profile.delete_profile_pic", OwnerOrAdmin, "You are not allowed to update this profile."},
	ProfilePosts:         {"profile.posts", Authenticated, notAuthenticated},
	ProfileFollow:        {"profile.follow", Authenticated, notAuthenticated},
	ProfileFollowing:     {"profile.following", Authenticated, notAuthenticated},
	ProfileFollowers:     {"profile.followers", Authenticated, notAuthenticated},
	ProfileIsFollowing:   {"profile.isFollowing", Authenticated, notAuthenticated},

	TagList:     {"tag.list", Public, ""},
	TagRetrieve: {"tag.retrieve", Public, ""},
	TagCreate:   {"tag.create", Authenticated, notAuthenticated},
	TagPosts:    {"tag.posts", Public, ""},

	AccountList:    {"account.list", AdminOnly, "You are not allowed to list users."},
	AccountMe:      {"account.me", Authenticated, notAuthenticated},
	AccountDestroy: {"account.destroy", OwnerOrAdmin, "You are not allowed to delete this user."},

	Feed:   {"feed", Authenticated, notAuthenticated},
	Search: {"search", Authenticated, notAuthenticated},
}

func init() {
	for a := Action(0); a < actionCount; a++ {
		if rules[a].name == "" {
			panic(fmt.Sprintf("policy: action %d has no rule", a))
		}
	}
}

func (a Action) String() string {
	if a < 0 || a >= actionCount {
		return "unknown"
	}
	return rules[a].name
}

// Capability returns the capability class required by a.
func (a Action) Capability() Capability {
	return rules[a].capability
}

// Authorize gates action a for requester r against the profile owning the
// target. ownerProfileID is ignored for capabilities that do not depend on
// ownership. Anonymous callers of a non-public action get Unauthenticated;
// authenticated callers lacking the capability get Forbidden with the
// action's denial reason.
func Authorize(r Requester, a Action, ownerProfileID uint) error {
	rl := rules[a]
	if rl.capability == Public {
		return nil
	}
	if !r.Authenticated() {
		return models.NewUnauthorizedError(notAuthenticated)
	}

	switch rl.capability {
	case Authenticated:
		return nil
	case OwnerOrAdmin:
		if r.IsAdmin || r.Owns(ownerProfileID) {
			return nil
		}
	case AdminOnly:
		if r.IsAdmin {
			return nil
		}
	}
	return models.NewForbiddenError(rl.denial)
}

// CanViewPost reports whether r may see post. Private posts are visible only
// to their owner and to admins.
func CanViewPost(r Requester, post *models.Post) bool {
	if post == nil {
		return false
	}
	return !post.IsPrivate || r.IsAdmin || r.Owns(post.ProfileID)
}

// SeesOwnerView reports whether r gets the full owner view of profile.
func SeesOwnerView(r Requester, profile *models.Profile) bool {
	return profile != nil && r.Owns(profile.ID)
}

// Scope is the visibility filter applied to post queries on behalf of a requester.
type Scope struct {
	ViewerProfileID uint
	SeesAllPrivate  bool
}

// PostScope returns the post visibility scope for r.
func PostScope(r Requester) Scope {
	return Scope{ViewerProfileID: r.ProfileID, SeesAllPrivate: r.IsAdmin}
}

// PublicOnly is the scope that admits only non-private posts, whoever asks.
var PublicOnly = Scope{}
