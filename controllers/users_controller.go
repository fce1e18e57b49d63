package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/davrell/trekbackend/apperr"
	"github.com/davrell/trekbackend/dto"
	"github.com/davrell/trekbackend/middleware"
	"github.com/davrell/trekbackend/models"
	"github.com/davrell/trekbackend/repository"
	"github.com/davrell/trekbackend/storage"
)

// Users handles the self-service profile routes. Admin CRUD over users
// goes through the handler factory instead.
type Users struct {
	Store  repository.UserStore
	Photos *storage.PhotoStore // nil when no bucket is configured
}

func (u *Users) GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			respondError(c, apperr.Authentication("you are not logged in"))
			return
		}
		respondData(c, http.StatusOK, gin.H{"data": user})
	}
}

// UpdateMe patches the caller's own profile: name, email, photo. Password
// fields are rejected here; the password routes own those transitions.
func (u *Users) UpdateMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			respondError(c, apperr.Authentication("you are not logged in"))
			return
		}

		patch, err := u.buildProfilePatch(c, user)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(patch) == 0 {
			respondData(c, http.StatusOK, gin.H{"data": user})
			return
		}

		updated, err := u.Store.UpdateProfile(c.Request.Context(), user.ID.Hex(), patch)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, gin.H{"data": updated})
	}
}

// DeleteMe is the soft delete: the account is marked inactive and drops
// out of default queries, but the record is kept.
func (u *Users) DeleteMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			respondError(c, apperr.Authentication("you are not logged in"))
			return
		}
		if err := u.Store.Deactivate(c.Request.Context(), user.ID.Hex()); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (u *Users) buildProfilePatch(c *gin.Context, user models.User) (bson.M, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return u.multipartPatch(c, user)
	}
	return jsonPatch(c)
}

func (u *Users) multipartPatch(c *gin.Context, user models.User) (bson.M, error) {
	if c.PostForm("password") != "" || c.PostForm("passwordConfirm") != "" {
		return nil, errNotForPasswords()
	}

	patch := bson.M{}
	if name := strings.TrimSpace(c.PostForm("name")); name != "" {
		patch["name"] = name
	}
	if email := strings.TrimSpace(c.PostForm("email")); email != "" {
		if !strings.Contains(email, "@") {
			return nil, apperr.Validation("please provide a valid email address")
		}
		patch["email"] = repository.CanonicalEmail(email)
	}

	if fh, err := c.FormFile("photo"); err == nil {
		if u.Photos == nil {
			return nil, apperr.Validation("photo uploads are not enabled")
		}
		url, err := u.Photos.UploadUserPhoto(c.Request.Context(), user.ID.Hex(), fh)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		patch["photo"] = url
	}
	return patch, nil
}

func jsonPatch(c *gin.Context) (bson.M, error) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if _, ok := raw["password"]; ok {
		return nil, errNotForPasswords()
	}
	if _, ok := raw["passwordConfirm"]; ok {
		return nil, errNotForPasswords()
	}

	var body dto.UpdateMeDTO
	buf, _ := json.Marshal(raw)
	if err := json.Unmarshal(buf, &body); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	patch := bson.M{}
	if body.Name != nil && strings.TrimSpace(*body.Name) != "" {
		patch["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Email != nil {
		email := strings.TrimSpace(*body.Email)
		if !strings.Contains(email, "@") {
			return nil, apperr.Validation("please provide a valid email address")
		}
		patch["email"] = repository.CanonicalEmail(email)
	}
	return patch, nil
}

func errNotForPasswords() error {
	return apperr.Validation("this route is not for password updates, please use /updateMyPassword")
}

// AdminUpdateUserPatch builds the update document for the admin PATCH
// route, validating the role against the enum.
func AdminUpdateUserPatch(c *gin.Context) (bson.M, error) {
	var body dto.AdminUpdateUserDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	patch := bson.M{}
	if body.Name != nil {
		patch["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Email != nil {
		patch["email"] = repository.CanonicalEmail(*body.Email)
	}
	if body.Role != nil {
		role := models.Role(*body.Role)
		if !models.ValidRole(role) {
			return nil, apperr.Validation("invalid role")
		}
		patch["role"] = role
	}
	if body.Active != nil {
		patch["active"] = *body.Active
	}
	if len(patch) == 0 {
		return nil, apperr.Validation("nothing to update")
	}
	return patch, nil
}
