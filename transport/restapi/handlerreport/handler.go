package handlerreport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yusufsyaifudin/katalog/internal/svc/reportsvc"
	"github.com/yusufsyaifudin/katalog/pkg/errtrack"
	"github.com/yusufsyaifudin/katalog/pkg/metric"
	"github.com/yusufsyaifudin/katalog/pkg/respbuilder"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httpkit"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
)

type HandlerConfig struct {
	ReportService reportsvc.Service `validate:"required"`
	Metrics       *metric.Metrics   `validate:"required"`
	ErrTracker    *errtrack.Tracker `validate:"-"`
}

type Handler struct {
	Config HandlerConfig
}

func NewHandler(conf HandlerConfig) (*Handler, error) {
	err := validator.Validate(conf)
	if err != nil {
		return nil, err
	}

	return &Handler{Config: conf}, nil
}

// List returns every report, newest first.
// Path     : GET /api/reports
// Response : []httptyped.Report
func (h *Handler) List() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.Config.ReportService.List(r.Context())
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to fetch reports")
			return
		}

		respbuilder.WriteJSON(http.StatusOK, w, r, httptyped.ReportsFromSvc(out.Reports))
	}
}

// Create files an abuse report.
// Path         : POST /api/reports
// Request Body : httptyped.ReportCreateReq
// Response     : httptyped.Report
func (h *Handler) Create() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqBody httptyped.ReportCreateReq
		if err := httpkit.Decode(r, &reqBody); err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to create report")
			return
		}

		out, err := h.Config.ReportService.Create(r.Context(), reportsvc.InputCreate{
			AppID:   strings.TrimSpace(reqBody.AppID),
			AppName: reqBody.AppName,
			Reasons: reqBody.Reasons,
		})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to create report")
			return
		}

		h.Config.Metrics.ReportFiled()
		respbuilder.WriteJSON(http.StatusCreated, w, r, httptyped.ReportFromSvc(out.Report))
	}
}

// Delete dismisses one report.
// Path     : DELETE /api/reports/{id}
// Response : 204
func (h *Handler) Delete() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := h.Config.ReportService.Delete(r.Context(), reportsvc.InputDelete{
			ID: strings.TrimSpace(chi.URLParam(r, "id")),
		})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to delete report")
			return
		}

		respbuilder.NoContent(w, r)
	}
}

// DeleteByApp removes all reports of an app. Zero matches is not an error.
// Path     : DELETE /api/reports/app/{appId}
// Response : 204 No Content
func (h *Handler) DeleteByApp() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := h.Config.ReportService.DeleteByApp(r.Context(), reportsvc.InputDeleteByApp{
			AppID: strings.TrimSpace(chi.URLParam(r, "appId")),
		})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to delete reports")
			return
		}

		respbuilder.NoContent(w, r)
	}
}
