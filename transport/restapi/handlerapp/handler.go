package handlerapp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
	"github.com/yusufsyaifudin/katalog/internal/svc/appsvc"
	"github.com/yusufsyaifudin/katalog/pkg/errtrack"
	"github.com/yusufsyaifudin/katalog/pkg/metric"
	"github.com/yusufsyaifudin/katalog/pkg/respbuilder"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httpkit"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
)

const MsgApprovedNotBool = "approved must be a boolean"

type HandlerConfig struct {
	AppService appsvc.Service    `validate:"required"`
	Metrics    *metric.Metrics   `validate:"required"`
	ErrTracker *errtrack.Tracker `validate:"-"`
}

type Handler struct {
	Config HandlerConfig

	queryDecoder *schema.Decoder
}

func NewHandler(conf HandlerConfig) (*Handler, error) {
	err := validator.Validate(conf)
	if err != nil {
		return nil, err
	}

	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)

	return &Handler{Config: conf, queryDecoder: dec}, nil
}

// ListApproved returns the public listing, newest first.
// Path     : GET /api/apps?category=&search=
// Response : []httptyped.App
func (h *Handler) ListApproved() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var query httptyped.AppListQuery
		if err := h.queryDecoder.Decode(&query, r.URL.Query()); err != nil {
			resp := respbuilder.Error(respbuilder.ErrValidation, fmt.Errorf("invalid query: %w", err))
			respbuilder.WriteError(w, r, resp)
			return
		}

		out, err := h.Config.AppService.ListApproved(ctx, appsvc.InputListApproved{
			Category: strings.TrimSpace(query.Category),
			Search:   strings.TrimSpace(query.Search),
		})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to fetch apps")
			return
		}

		respbuilder.WriteJSON(http.StatusOK, w, r, httptyped.AppsFromSvc(out.Apps))
	}
}

// ListAll returns every app including the pending ones.
// Path     : GET /api/apps/all
// Response : []httptyped.App
func (h *Handler) ListAll() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.Config.AppService.ListAll(r.Context())
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to fetch apps")
			return
		}

		respbuilder.WriteJSON(http.StatusOK, w, r, httptyped.AppsFromSvc(out.Apps))
	}
}

// Create submits a listing for review.
// Path         : POST /api/apps
// Request Body : httptyped.AppCreateReq
// Response     : httptyped.App
func (h *Handler) Create() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqBody httptyped.AppCreateReq
		if err := httpkit.Decode(r, &reqBody); err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to create app")
			return
		}

		out, err := h.Config.AppService.Create(r.Context(), appsvc.InputCreate{
			Name:        reqBody.Name,
			Description: reqBody.Description,
			URL:         reqBody.URL,
			Category:    reqBody.Category,
		})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to create app")
			return
		}

		h.Config.Metrics.AppSubmitted()
		respbuilder.WriteJSON(http.StatusCreated, w, r, httptyped.AppFromSvc(out.App))
	}
}

// AdminCreate adds a listing that may already be approved and featured.
// Path         : POST /api/admin/apps
// Request Body : httptyped.AppAdminCreateReq
// Response     : httptyped.App
func (h *Handler) AdminCreate() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqBody httptyped.AppAdminCreateReq
		if err := httpkit.Decode(r, &reqBody); err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to create app")
			return
		}

		out, err := h.Config.AppService.AdminCreate(r.Context(), appsvc.InputAdminCreate{
			Name:        reqBody.Name,
			Description: reqBody.Description,
			URL:         reqBody.URL,
			Category:    reqBody.Category,
			Tags:        reqBody.Tags,
			Featured:    reqBody.Featured,
			Approved:    reqBody.Approved,
		})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to create app")
			return
		}

		respbuilder.WriteJSON(http.StatusCreated, w, r, httptyped.AppFromSvc(out.App))
	}
}

// Update applies a sparse patch.
// Path         : PUT /api/apps/{id}
// Request Body : httptyped.AppUpdateReq
// Response     : httptyped.App
func (h *Handler) Update() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqBody httptyped.AppUpdateReq
		if err := httpkit.Decode(r, &reqBody); err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to update app")
			return
		}

		out, err := h.Config.AppService.Update(r.Context(), appsvc.InputUpdate{
			ID:          pathID(r),
			Name:        reqBody.Name,
			Description: reqBody.Description,
			URL:         reqBody.URL,
			Category:    reqBody.Category,
			Tags:        reqBody.Tags,
			Featured:    reqBody.Featured,
			Approved:    reqBody.Approved,
		})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to update app")
			return
		}

		respbuilder.WriteJSON(http.StatusOK, w, r, httptyped.AppFromSvc(out.App))
	}
}

// Delete removes an app and its reports.
// Path     : DELETE /api/apps/{id}
// Response : 204
func (h *Handler) Delete() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := h.Config.AppService.Delete(r.Context(), appsvc.InputDelete{ID: pathID(r)})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to delete app")
			return
		}

		respbuilder.NoContent(w, r)
	}
}

// IncrementClicks records one outbound click.
// Path     : PATCH /api/apps/{id}/clicks
// Response : httptyped.ClicksResp
func (h *Handler) IncrementClicks() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.Config.AppService.IncrementClicks(r.Context(), appsvc.InputIncrementClicks{ID: pathID(r)})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to update clicks")
			return
		}

		h.Config.Metrics.AppClicked()
		respbuilder.WriteJSON(http.StatusOK, w, r, httptyped.ClicksResp{Clicks: out.Clicks})
	}
}

// SetApproval approves or un-approves a listing.
// Path         : PATCH /api/apps/{id}/approve
// Request Body : httptyped.AppApproveReq
// Response     : httptyped.App
func (h *Handler) SetApproval() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqBody httptyped.AppApproveReq
		if err := httpkit.Decode(r, &reqBody); err != nil {
			respbuilder.WriteError(w, r, respbuilder.Error(respbuilder.ErrValidation, errors.New(MsgApprovedNotBool)))
			return
		}

		approved, ok := reqBody.Approved.(bool)
		if !ok {
			respbuilder.WriteError(w, r, respbuilder.Error(respbuilder.ErrValidation, errors.New(MsgApprovedNotBool)))
			return
		}

		out, err := h.Config.AppService.SetApproval(r.Context(), appsvc.InputSetApproval{
			ID:       pathID(r),
			Approved: approved,
		})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to update approval status")
			return
		}

		respbuilder.WriteJSON(http.StatusOK, w, r, httptyped.AppFromSvc(out.App))
	}
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}
