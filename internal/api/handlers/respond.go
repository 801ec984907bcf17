package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhall/engine/internal/api/middleware"
	"github.com/taskhall/engine/internal/api/types"
	"github.com/taskhall/engine/internal/services"
	appErr "github.com/taskhall/engine/pkg/errors"
	"github.com/taskhall/engine/pkg/logger"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status its code maps to. Failures that map
// to 500 are logged with their cause; the body stays generic.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := types.FromAppError(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return appErr.Wrap(err, appErr.CodeInvalid, "malformed JSON body")
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, appErr.Invalid("invalid id", map[string]string{name: "must be a valid UUID"})
	}
	return id, nil
}

// query collects typed query parameters and remembers which ones failed to
// parse.
type query struct {
	r      *http.Request
	fields map[string]string
}

func newQuery(r *http.Request) *query {
	return &query{r: r, fields: map[string]string{}}
}

func (q *query) str(name string) string {
	return strings.TrimSpace(q.r.URL.Query().Get(name))
}

func (q *query) intVal(name string) int {
	raw := q.str(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.fields[name] = "must be an integer"
		return 0
	}
	return n
}

func (q *query) boolVal(name string) bool {
	raw := q.str(name)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fields[name] = "must be a boolean"
	}
	return b
}

func (q *query) pagination() services.Pagination {
	return services.Pagination{Page: q.intVal("page"), PageSize: q.intVal("page_size")}
}

func (q *query) err() error {
	if len(q.fields) == 0 {
		return nil
	}
	return appErr.Invalid("invalid query parameters", q.fields)
}
