package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rentwise/rentwise/internal/identity"
	"github.com/rentwise/rentwise/internal/model"
	"github.com/rentwise/rentwise/internal/response"
	"github.com/rentwise/rentwise/internal/tenancy"
)

// Backfiller runs the tenancy backfill.
type Backfiller interface {
	Run(ctx context.Context, opts tenancy.Options) (tenancy.Result, error)
}

// SetupRoutes configures admin API endpoints.
func SetupRoutes(r *mux.Router, authn *identity.Middleware, backfiller Backfiller) {
	s := r.PathPrefix("/api/admin").Subrouter()
	s.Use(authn.BearerAuthenticated)
	s.Use(identity.RequireRole(model.RoleAdmin))

	h := backfillHandler{backfiller}
	s.HandleFunc("/tenancies/backfill", h.ServeHTTP).Methods(http.MethodPost)
}

type backfillHandler struct {
	backfiller Backfiller
}

func (h backfillHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	result, err := h.backfiller.Run(r.Context(), opts)
	if err != nil {
		response.Error(w, r, model.ErrInternal(err))
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func parseOptions(r *http.Request) (tenancy.Options, error) {
	var opts tenancy.Options
	query := r.URL.Query()
	for name, dst := range map[string]*bool{
		"resume": &opts.Resume,
		"dryRun": &opts.DryRun,
	} {
		v := query.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, model.ErrInvalidField(name, "bool")
		}
		*dst = b
	}
	return opts, nil
}
