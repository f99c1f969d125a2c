package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/jobtracker/internal/common"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its status and the {error, code} body. Server-side failures
// are logged with the request id; their causes never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := common.HTTPStatus(err)
	body := errorBody{Error: common.MessageOf(err), Code: common.CodeOf(err)}
	if status >= http.StatusInternalServerError {
		logger.Error("http.request.failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", common.RequestIDFromContext(r.Context()),
			"account_id", common.AccountIDFromContext(r.Context()),
			"code", body.Code,
			"error", err,
		)
		var appErr *common.AppError
		if !errors.As(err, &appErr) {
			body.Error = "internal server error"
		}
	}
	writeJSON(w, status, body)
}

// readBody returns the request body, capped at maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, common.ValidationErrorf(common.CodeValidation, "request body could not be read: %v", err)
	}
	return b, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	b, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return common.ValidationErrorf(common.CodeValidation, "invalid JSON body: %v", err)
	}
	return nil
}
