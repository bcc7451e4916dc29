package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/mkazymov/imgcache/internal/domain"
	"github.com/mkazymov/imgcache/internal/dto"
)

const usageMessage = "specify your image using /api/images?filename=name&width=number&height=number"

type ImageHandler struct {
	service domain.ImageService
}

func NewImageHandler(service domain.ImageService) *ImageHandler {
	return &ImageHandler{service: service}
}

func (h *ImageHandler) RegisterRoutes(engine *ginext.Engine) {
	engine.GET("/api/images", h.GetImage)
}

// GetImage GET /api/images?filename=name&width=number&height=number
func (h *ImageHandler) GetImage(c *ginext.Context) {
	// No query at all is a usage question, not a bad request.
	if len(c.Request.URL.Query()) == 0 {
		c.JSON(http.StatusOK, dto.InfoResponse{Message: usageMessage})
		return
	}

	filename := c.Query("filename")
	if filename == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "filename is required",
		})
		return
	}

	query := domain.Query{
		Width:  parseAxis(c.Query("width")),
		Height: parseAxis(c.Query("height")),
	}

	served, err := h.service.Serve(c.Request.Context(), filename, query)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrImageNotFound):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "not_found",
				Message: "Sorry, we cannot find that!",
			})
		case errors.Is(err, domain.ErrInvalidDimensions):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "invalid_dimensions",
				Message: err.Error(),
			})
		default:
			zlog.Logger.Error().Err(err).Str("filename", filename).Msg("failed to serve image")
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:   "server_error",
				Message: "Something went wrong...",
			})
		}
		return
	}

	c.Header("Image-Type", string(served.Origin))
	c.Header("Image-Width", strconv.Itoa(served.Width))
	c.Header("Image-Height", strconv.Itoa(served.Height))
	c.Data(http.StatusOK, "image/jpeg", served.Data)
}

// parseAxis turns a query value into an optional axis. Empty or non-numeric
// strings mean the axis was not requested; anything that parses (including
// "NaN" and fractions) is handed to validation as-is.
func parseAxis(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
