package user

import (
	"net/http"
	"path"

	"github.com/gorilla/mux"
	"github.com/rentwise/rentwise/internal/identity"
	"github.com/rentwise/rentwise/internal/response"
)

// SetupRoutes initializes user routes.
func SetupRoutes(r *mux.Router, svc *Service, authn *identity.Middleware) {
	r.Handle("/users", createUserHandler{svc}).Methods(http.MethodPost)

	s := r.PathPrefix("/user").Subrouter()
	s.Use(authn.BearerAuthenticated)
	s.HandleFunc("", profileHandler{svc}.get).Methods(http.MethodGet)
	s.HandleFunc("/profile", profileHandler{svc}.update).Methods(http.MethodPatch)
}

type createUserHandler struct {
	svc *Service
}

func (h createUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var request CreateUserRequest
	if err := response.Decode(r, &request); err != nil {
		response.Error(w, r, err)
		return
	}

	id, err := h.svc.Register(r.Context(), request)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	w.Header().Set("Location", path.Join("/users", id))
	w.WriteHeader(http.StatusCreated)
}

type profileHandler struct {
	svc *Service
}

func (h profileHandler) get(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetProfile(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

func (h profileHandler) update(w http.ResponseWriter, r *http.Request) {
	var update ProfileUpdate
	if err := response.Decode(r, &update); err != nil {
		response.Error(w, r, err)
		return
	}

	id, err := h.svc.UpdateProfile(r.Context(), update)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"id": id})
}
