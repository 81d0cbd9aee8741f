package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/contesthub/contesthub-gobackend/internal/httputil"
	"github.com/contesthub/contesthub-gobackend/internal/models"
	"github.com/contesthub/contesthub-gobackend/internal/services"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type upsertResponse struct {
	Inserted bool         `json:"inserted"`
	User     *models.User `json:"user"`
}

// CreateUser registers the user on first sign-in and returns the stored
// document on later calls.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := httputil.DecodeJSON(r, &user); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	u, inserted, err := h.service.Upsert(r.Context(), user)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, r, status, upsertResponse{Inserted: inserted, User: u})
}

func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetByEmail(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, u)
}

func (h *UserHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.Role(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, map[string]models.Role{"role": role})
}

// UpdateProfile edits the caller's own name and photo.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	email, err := principalEmail(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var p models.ProfileUpdate
	if err := httputil.DecodeJSON(r, &p); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	res, err := h.service.UpdateProfile(r.Context(), email, p)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, res)
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var body models.RoleUpdate
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	res, err := h.service.UpdateRole(r.Context(), mux.Vars(r)["id"], body.Role)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, res)
}
