package handler

import (
	"net/http"
	"strconv"

	"github.com/openspot/openspot/internal/httpx"
)

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.BadRequest("invalid_id", "invalid id")
	}
	return id, nil
}
