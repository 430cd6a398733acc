package handlerauth

import (
	"context"
	"net/http"
	"strings"

	"github.com/yusufsyaifudin/katalog/internal/svc/authsvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/svcerr"
	"github.com/yusufsyaifudin/katalog/pkg/errtrack"
	"github.com/yusufsyaifudin/katalog/pkg/respbuilder"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httpkit"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
	"github.com/yusufsyaifudin/ylog"
)

type subjectCtxKey struct{}

type HandlerConfig struct {
	AuthService authsvc.Service   `validate:"required"`
	ErrTracker  *errtrack.Tracker `validate:"-"`
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

// Session exchanges the admin password for a bearer token.
// Path         : POST /api/admin/session
// Request Body : httptyped.SessionReq
// Response     : httptyped.SessionResp
func (h *Handler) Session() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqBody httptyped.SessionReq
		if err := httpkit.Decode(r, &reqBody); err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to create session")
			return
		}

		out, err := h.Config.AuthService.Login(r.Context(), authsvc.InputLogin{Password: reqBody.Password})
		if err != nil {
			httpkit.WriteErr(w, r, h.Config.ErrTracker, err, "Failed to create session")
			return
		}

		respbuilder.WriteJSON(http.StatusOK, w, r, httptyped.SessionResp{
			Token:     out.Token,
			ExpiresAt: out.ExpiresAt.UnixMilli(),
		})
	}
}

// RequireAdmin rejects requests without a valid admin bearer token.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			ylog.Debug(ctx, "admin route without bearer token", ylog.KV("path", r.URL.Path))
			respbuilder.WriteError(w, r, respbuilder.Error(respbuilder.ErrUnauthorized, nil))
			return
		}

		out, err := h.Config.AuthService.Verify(ctx, authsvc.InputVerify{Token: token})
		if err != nil {
			resp := respbuilder.Error(respbuilder.ErrUnauthorized, nil)
			resp.Message = svcerr.Message(err, authsvc.MsgUnauthorized)
			respbuilder.WriteError(w, r, resp)
			return
		}

		ctx = context.WithValue(ctx, subjectCtxKey{}, out.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Subject returns the authenticated admin subject, empty on public routes.
func Subject(ctx context.Context) string {
	sub, _ := ctx.Value(subjectCtxKey{}).(string)
	return sub
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
