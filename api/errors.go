package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/reports"
	"github.com/Abhinavmohindersingh/bigslick-admin/storage"
	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

var errRecordNotFound = errors.New("record not found")

// requestError is a malformed request. Its message is returned verbatim.
type requestError struct {
	msg string
}

func (e requestError) Error() string { return e.msg }

func badRequest(msg string) error { return requestError{msg: msg} }

type errorResponse struct {
	Error string `json:"error"`
}

var validationErrors = []error{
	domain.ErrTitleRequired,
	domain.ErrInvalidPriority,
	domain.ErrInvalidStatus,
	domain.ErrIndexOutOfRange,
	domain.ErrTaskMismatch,
	reports.ErrUsernameRequired,
	reports.ErrEmailRequired,
	reports.ErrUserRequired,
	reports.ErrInvalidAmount,
	reports.ErrMemberName,
	reports.ErrInvalidMember,
	reports.ErrCampaignName,
}

// classify maps an error to a response status and the metrics error stage.
// Unclassified errors get fallback.
func classify(err error, fallback int) (int, string) {
	var reqErr requestError
	var unknown tables.UnknownTableError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, "request"
	case errors.As(err, &unknown):
		return http.StatusNotFound, "unknown_table"
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, errRecordNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConfirmationRequired):
		return http.StatusConflict, "confirmation"
	case errors.Is(err, domain.ErrDuplicateTaskID), errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "duplicate"
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusBadRequest, "validation"
		}
	}
	return fallback, "upstream"
}

// respond writes err as a JSON error body.
func (s *Server) respond(c echo.Context, err error, fallback int) error {
	status, stage := classify(err, fallback)
	metricsFrom(c).SetErrorStage(stage)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("route", c.Path()).Error("request failed")
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}
