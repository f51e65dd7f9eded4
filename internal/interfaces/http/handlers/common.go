package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DiscourseLens/internal/interfaces/http/middleware"
	"github.com/turtacn/DiscourseLens/pkg/errors"
	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

// respond writes data in the standard success envelope.
func respond[T any](c *gin.Context, status int, data T) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = middleware.GetRequestID(c)
	c.JSON(status, resp)
}

// respondError maps err to its HTTP status and writes the error envelope.
// Internal failures are masked.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := code.HTTPStatus()
	message := err.Error()
	if status >= http.StatusInternalServerError && code != errors.ErrCodeServiceUnavailable {
		message = code.DefaultMessage()
	}
	_ = c.Error(err)

	resp := common.NewErrorResponse(string(code), message)
	resp.RequestID = middleware.GetRequestID(c)
	c.AbortWithStatusJSON(status, resp)
}

// parsePositions parses a comma-separated list of element positions such
// as "0,2".  Empty input yields nil.
func parsePositions(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, errors.InvalidParam("local must be a comma-separated list of non-negative positions").
				WithDetail(p)
		}
		out = append(out, n)
	}
	return out, nil
}
