package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/taskhall/engine/internal/api/types"
	appErr "github.com/taskhall/engine/pkg/errors"
)

func reject(w http.ResponseWriter, status int, code appErr.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.NewError(code, message))
}
