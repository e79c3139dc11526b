package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/scoring"
	"golang-backtest/internal/service"
)

func (h *HttpAPIHandler) SetupStrategies(base *echo.Group) {
	strategyGroup := base.Group("/strategies")
	strategyGroup.POST("", h.createStrategy)
	strategyGroup.GET("", h.listStrategies)
	strategyGroup.GET("/:id", h.getStrategy)
	strategyGroup.PUT("/:id", h.updateStrategy)
	strategyGroup.DELETE("/:id", h.deleteStrategy)
}

func (h *HttpAPIHandler) createStrategy(c echo.Context) error {
	ctx := c.Request().Context()

	cfg := new(dto.StrategyConfig)
	if err := c.Bind(cfg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	created, err := h.service.StrategyService.Create(ctx, *cfg)
	if err != nil {
		if errors.Is(err, scoring.ErrValidation) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create strategy"})
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *HttpAPIHandler) listStrategies(c echo.Context) error {
	strategies, err := h.service.StrategyService.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list strategies"})
	}
	return c.JSON(http.StatusOK, strategies)
}

func (h *HttpAPIHandler) getStrategy(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid strategy id"})
	}

	cfg, err := h.service.StrategyService.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrStrategyNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get strategy"})
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *HttpAPIHandler) updateStrategy(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid strategy id"})
	}

	cfg := new(dto.StrategyConfig)
	if err := c.Bind(cfg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	updated, err := h.service.StrategyService.Update(c.Request().Context(), id, *cfg)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStrategyNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, scoring.ErrValidation):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update strategy"})
		}
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *HttpAPIHandler) deleteStrategy(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid strategy id"})
	}

	if err := h.service.StrategyService.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, service.ErrStrategyNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete strategy"})
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return uint(id), err
}
