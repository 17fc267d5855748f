package conversion

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler provides the REST endpoints for unit conversion.
type Handler struct {
	svc        *Service
	middleware []echo.MiddlewareFunc
}

// NewHandler creates a new conversion handler. The given middleware wraps
// the conversion routes only.
func NewHandler(svc *Service, middleware ...echo.MiddlewareFunc) *Handler {
	return &Handler{svc: svc, middleware: middleware}
}

// RegisterRoutes registers the conversion routes on every given group, so
// the same endpoints answer at / and /api/v1.
func (h *Handler) RegisterRoutes(groups ...*echo.Group) {
	for _, g := range groups {
		g.POST("/conversions", h.Convert, h.middleware...)
		g.GET("/conversions", h.ConvertQuery, h.middleware...)
	}
}

// Convert handles POST /conversions. The body is a single request object or
// an array of them; the response mirrors the shape.
func (h *Handler) Convert(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return echo.NewHTTPError(http.StatusBadRequest, "request body is required")
	}

	ctx := WithRequestID(c.Request().Context(), requestID(c))

	switch body[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(body, &entries); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
		}
		if len(entries) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "request body is required")
		}
		reqs := make([]Request, len(entries))
		for i, raw := range entries {
			reqs[i] = decodeRequest(raw)
		}
		out, failed := h.svc.ResolveBatch(ctx, reqs)
		return c.JSON(status(failed), out)
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
		}
		if len(fields) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "request body is required")
		}
		out := h.svc.Convert(ctx, decodeRequest(body))
		return c.JSON(status(out.Failed()), out)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "request body must be an object or an array")
}

// ConvertQuery handles GET /conversions?loinc=...&unit=...&value=...
func (h *Handler) ConvertQuery(c echo.Context) error {
	req := Request{
		Loinc: c.QueryParam("loinc"),
		Unit:  c.QueryParam("unit"),
	}
	if req.Loinc == "" && req.Unit == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameters 'loinc' and 'unit' are required")
	}
	if v := c.QueryParam("value"); v != "" {
		req.Value = v
	}
	ctx := WithRequestID(c.Request().Context(), requestID(c))
	out := h.svc.Convert(ctx, req)
	return c.JSON(status(out.Failed()), out)
}

func status(failed bool) int {
	if failed {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
