package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	service "github.com/okian/bareme/internal/app"
	"github.com/okian/bareme/internal/domain/model"
	"github.com/okian/bareme/internal/domain/types"
	"github.com/okian/bareme/pkg/logger"
)

// reportQuery binds the /cc query string. Field order is the order
// missing names are reported in.
type reportQuery struct {
	Jeton string `query:"jeton" validate:"required"`
	Login string `query:"login" validate:"required"`
	URL   string `query:"url" validate:"required"`
}

func (q reportQuery) credentials() model.Credentials {
	return model.Credentials{Jeton: q.Jeton, Login: q.Login, URL: q.URL}
}

func newQueryValidator() *validator.Validate {
	v := validator.New()
	// Report query parameter names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ReportHandler handles the report endpoint.
type ReportHandler struct {
	deps     Dependencies
	validate *validator.Validate
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps Dependencies) *ReportHandler {
	return &ReportHandler{deps: deps, validate: newQueryValidator()}
}

// HandleReport handles GET /cc requests.
func (h *ReportHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	values := r.URL.Query()
	q := reportQuery{
		Jeton: values.Get("jeton"),
		Login: values.Get("login"),
		URL:   values.Get("url"),
	}

	if missing := h.missing(q); len(missing) > 0 {
		_ = writeJSON(w, http.StatusBadRequest, types.MissingParamsResponse{
			Error:   msgMissingParams,
			Missing: strings.Join(missing, ", "),
		})
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx, logger.Nop()).Named(logComponent)

	report, err := h.deps.Report(ctx, q.credentials())
	switch {
	case err == nil:
		if err := writeJSON(w, http.StatusOK, report); err != nil {
			log.Error(ctx, "report could not be encoded", logger.String("login", q.Login), logger.Error(err))
		}
	case errors.Is(err, service.ErrNoPeriods):
		_ = writeJSON(w, http.StatusNotFound, types.NotFoundResponse{Message: msgNoPeriods})
	default:
		log.Error(ctx, "report failed", logger.String("login", q.Login), logger.Error(err))
		_ = writeJSON(w, http.StatusInternalServerError, types.FailureResponse{
			Error:   msgFailure,
			Details: err.Error(),
		})
	}
}

// missing returns the names of the absent parameters, in declaration order.
func (h *ReportHandler) missing(q reportQuery) []string {
	err := h.validate.Struct(q)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Field())
	}
	return names
}
