package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/quedadas/community-core/pkg/communitycore"
)

// Handler exposes the community-core Service over HTTP. It only translates
// between transport and the service contracts; all rules live in the service.
type Handler struct {
	service communitycore.Service
	log     *slog.Logger
}

// NewHandler creates a new HTTP handler over the service
func NewHandler(service communitycore.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{service: service, log: log}
}

// Routes returns the routes for the community API
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Get("/{username}", h.GetUser)
		r.Patch("/{username}", h.UpdateUserProfile)
		r.Delete("/{username}", h.DeleteUser)
		r.Post("/{username}/rename", h.RenameUser)
		r.Put("/{username}/media", h.PutUserMedia)
		r.Get("/{username}/notifications", h.ListNotifications)
	})

	r.Route("/communities", func(r chi.Router) {
		r.Post("/", h.CreateCommunity)
		r.Get("/{url}", h.GetCommunity)
		r.Patch("/{url}", h.UpdateCommunity)
		r.Delete("/{url}", h.DeleteCommunity)
		r.Post("/{url}/rename", h.RenameCommunity)
		r.Get("/{url}/activities", h.ListCommunityActivities)
		r.Post("/{url}/join", h.JoinCommunity)
		r.Post("/{url}/leave", h.LeaveCommunity)
		r.Get("/{url}/members/count", h.CommunityMemberCount)
		r.Get("/{url}/members/{username}", h.IsCommunityMember)
		r.Put("/{url}/media", h.PutCommunityMedia)
		r.Put("/{url}/carousel", h.PutCommunityCarousel)
	})

	r.Route("/activities", func(r chi.Router) {
		r.Post("/", h.CreateActivity)
		r.Get("/{id}", h.GetActivity)
		r.Patch("/{id}", h.UpdateActivity)
		r.Delete("/{id}", h.DeleteActivity)
		r.Post("/{id}/join", h.JoinActivity)
		r.Post("/{id}/leave", h.LeaveActivity)
		r.Get("/{id}/participants/count", h.ActivityParticipantCount)
	})

	r.Post("/notifications/{id}/read", h.MarkNotificationRead)
	r.Get("/media/{id}", h.DownloadMedia)

	return r
}

// ErrorResponse is the JSON body for failed requests
type ErrorResponse struct {
	Error            string   `json:"error"`
	StaleCollections []string `json:"stale_collections,omitempty"`
	OldKey           string   `json:"old_key,omitempty"`
	NewKey           string   `json:"new_key,omitempty"`
}

// writeError maps service errors onto transport status codes: not-found to
// 404, conflict to 409, forbidden to 403. A CascadeError becomes a 500 with
// the machine-readable stale collection list so an operator can re-run the
// idempotent cascade.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var cascadeErr *communitycore.CascadeError
	if errors.As(err, &cascadeErr) {
		h.log.Error("cascade left stale collections",
			"entity", cascadeErr.Entity,
			"old_key", cascadeErr.OldKey,
			"stale", cascadeErr.Stale,
			"error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Error:            cascadeErr.Error(),
			StaleCollections: cascadeErr.Stale,
			OldKey:           cascadeErr.OldKey,
			NewKey:           cascadeErr.NewKey,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case communitycore.IsNotFound(err):
		status = http.StatusNotFound
	case communitycore.IsConflict(err):
		status = http.StatusConflict
	case communitycore.IsForbidden(err):
		status = http.StatusForbidden
	default:
		h.log.Error("request failed", "path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// User handlers

// CreateUserRequest is the request body for creating a user
type CreateUserRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	Premium     bool   `json:"premium"`
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user, err := h.service.CreateUser(r.Context(), communitycore.CreateUserRequest{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Premium:     req.Premium,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, user)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, user)
}

// UpdateUserProfileRequest is the request body for a profile update; absent
// fields are left unchanged
type UpdateUserProfileRequest struct {
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	Premium     *bool   `json:"premium"`
}

func (h *Handler) UpdateUserProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserProfileRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user, err := h.service.UpdateUserProfile(r.Context(), communitycore.UpdateUserProfileRequest{
		Username:    chi.URLParam(r, "username"),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Premium:     req.Premium,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, user)
}

// RenameRequest is the request body for a rename operation
type RenameRequest struct {
	NewUsername string `json:"new_username,omitempty"`
	NewURL      string `json:"new_url,omitempty"`
}

func (h *Handler) RenameUser(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user, err := h.service.RenameUser(r.Context(), chi.URLParam(r, "username"), req.NewUsername)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "username")); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) PutUserMedia(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	user, err := h.service.UpdateUserProfile(r.Context(), communitycore.UpdateUserProfileRequest{
		Username: chi.URLParam(r, "username"),
		ProfileMedia: &communitycore.MediaUpload{
			Reader:      r.Body,
			ContentType: r.Header.Get("Content-Type"),
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, user)
}

// Community handlers

// CreateCommunityRequest is the request body for creating a community
type CreateCommunityRequest struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Interests   []string `json:"interests"`
	Creator     string   `json:"creator"`
	Private     bool     `json:"private"`
	JoinCode    string   `json:"join_code"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
}

func (h *Handler) CreateCommunity(w http.ResponseWriter, r *http.Request) {
	var req CreateCommunityRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	community, err := h.service.CreateCommunity(r.Context(), communitycore.CreateCommunityRequest{
		URL:         req.URL,
		Name:        req.Name,
		Description: req.Description,
		Interests:   req.Interests,
		Creator:     req.Creator,
		Private:     req.Private,
		JoinCode:    req.JoinCode,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, community)
}

func (h *Handler) GetCommunity(w http.ResponseWriter, r *http.Request) {
	community, err := h.service.GetCommunity(r.Context(), chi.URLParam(r, "url"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, community)
}

// UpdateCommunityRequest is the request body for a community update; absent
// fields are left unchanged
type UpdateCommunityRequest struct {
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	Interests      []string `json:"interests"`
	Administrators []string `json:"administrators"`
	Private        *bool    `json:"private"`
	JoinCode       *string  `json:"join_code"`
}

func (h *Handler) UpdateCommunity(w http.ResponseWriter, r *http.Request) {
	var req UpdateCommunityRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	community, err := h.service.UpdateCommunity(r.Context(), communitycore.UpdateCommunityRequest{
		URL:            chi.URLParam(r, "url"),
		Name:           req.Name,
		Description:    req.Description,
		Interests:      req.Interests,
		Administrators: req.Administrators,
		Private:        req.Private,
		JoinCode:       req.JoinCode,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, community)
}

func (h *Handler) RenameCommunity(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	community, err := h.service.RenameCommunity(r.Context(), chi.URLParam(r, "url"), req.NewURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, community)
}

func (h *Handler) DeleteCommunity(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCommunity(r.Context(), chi.URLParam(r, "url")); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) ListCommunityActivities(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListCommunityActivities(r.Context(), chi.URLParam(r, "url"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, entries)
}

func (h *Handler) PutCommunityMedia(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	community, err := h.service.UpdateCommunity(r.Context(), communitycore.UpdateCommunityRequest{
		URL: chi.URLParam(r, "url"),
		ProfileMedia: &communitycore.MediaUpload{
			Reader:      r.Body,
			ContentType: r.Header.Get("Content-Type"),
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, community)
}

// PutCommunityCarousel replaces the community carousel from a multipart
// body. Parts are consumed in order, and that order becomes the display
// order: an "existing" field keeps the blob id it carries, an "upload" file
// part stores new content. Upload parts are buffered because the service
// reads them after the multipart stream has advanced.
func (h *Handler) PutCommunityCarousel(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "multipart body required", http.StatusBadRequest)
		return
	}

	var items []communitycore.CarouselItem
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch part.FormName() {
		case "existing":
			data, err := io.ReadAll(part)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			items = append(items, communitycore.CarouselItem{
				ExistingID: strings.TrimSpace(string(data)),
			})
		case "upload":
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, part); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			items = append(items, communitycore.CarouselItem{
				Upload: &communitycore.MediaUpload{
					Reader:      &buf,
					ContentType: part.Header.Get("Content-Type"),
				},
			})
		default:
			http.Error(w, "unexpected part "+part.FormName(), http.StatusBadRequest)
			return
		}
	}
	if items == nil {
		items = []communitycore.CarouselItem{}
	}

	community, err := h.service.UpdateCommunity(r.Context(), communitycore.UpdateCommunityRequest{
		URL:      chi.URLParam(r, "url"),
		Carousel: items,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, community)
}

// Membership handlers

// MembershipRequest is the request body for join/leave operations
type MembershipRequest struct {
	Username string `json:"username"`
	JoinCode string `json:"join_code,omitempty"`
}

func (h *Handler) JoinCommunity(w http.ResponseWriter, r *http.Request) {
	var req MembershipRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	edge, err := h.service.JoinCommunity(r.Context(), communitycore.JoinCommunityRequest{
		Username:     req.Username,
		CommunityURL: chi.URLParam(r, "url"),
		JoinCode:     req.JoinCode,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, edge)
}

func (h *Handler) LeaveCommunity(w http.ResponseWriter, r *http.Request) {
	var req MembershipRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.LeaveCommunity(r.Context(), req.Username, chi.URLParam(r, "url")); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) CommunityMemberCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CommunityMemberCount(r.Context(), chi.URLParam(r, "url"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]int{"count": count})
}

func (h *Handler) IsCommunityMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.IsCommunityMember(r.Context(),
		chi.URLParam(r, "username"), chi.URLParam(r, "url"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"member": member})
}

// Activity handlers

// CreateActivityRequest is the request body for creating an activity
type CreateActivityRequest struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	Creator      string    `json:"creator"`
	CommunityURL string    `json:"community_url"`
	Private      bool      `json:"private"`
	Location     string    `json:"location"`
}

func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var req CreateActivityRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	activity, err := h.service.CreateActivity(r.Context(), communitycore.CreateActivityRequest{
		Name:         req.Name,
		Description:  req.Description,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		Creator:      req.Creator,
		CommunityURL: req.CommunityURL,
		Private:      req.Private,
		Location:     req.Location,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, activity)
}

func (h *Handler) activityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid activity id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activityID(w, r)
	if !ok {
		return
	}
	activity, err := h.service.GetActivity(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, activity)
}

// UpdateActivityRequest is the request body for an activity update; absent
// fields are left unchanged
type UpdateActivityRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Private     *bool      `json:"private"`
	Location    *string    `json:"location"`
}

func (h *Handler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activityID(w, r)
	if !ok {
		return
	}
	var req UpdateActivityRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	activity, err := h.service.UpdateActivity(r.Context(), communitycore.UpdateActivityRequest{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Private:     req.Private,
		Location:    req.Location,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, activity)
}

func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activityID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteActivity(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) JoinActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activityID(w, r)
	if !ok {
		return
	}
	var req MembershipRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	edge, err := h.service.JoinActivity(r.Context(), req.Username, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, edge)
}

func (h *Handler) LeaveActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activityID(w, r)
	if !ok {
		return
	}
	var req MembershipRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.LeaveActivity(r.Context(), req.Username, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *Handler) ActivityParticipantCount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activityID(w, r)
	if !ok {
		return
	}
	count, err := h.service.ActivityParticipantCount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]int{"count": count})
}

// Notification handlers

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.service.ListNotifications(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, notifications)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid notification id", http.StatusBadRequest)
		return
	}
	n, err := h.service.MarkNotificationRead(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, n)
}

// Media handlers

func (h *Handler) DownloadMedia(w http.ResponseWriter, r *http.Request) {
	rc, meta, err := h.service.DownloadMedia(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn("media stream interrupted", "blob_id", meta.ID, "error", err)
	}
}
