package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/stocksense/stocksense/internal/domain"
	"github.com/stocksense/stocksense/internal/service"
	"github.com/stocksense/stocksense/internal/simulation"
)

const dateLayout = "2006-01-02"

type EngineHandler struct {
	service *service.EngineService
}

func NewEngineHandler(service *service.EngineService) *EngineHandler {
	return &EngineHandler{service: service}
}

// GetMethods lists the forecasting methods the engine supports.
func (h *EngineHandler) GetMethods(c *gin.Context) {
	methods := domain.AllForecastMethods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	c.JSON(http.StatusOK, gin.H{"methods": names})
}

// Classify returns the ABC-XYZ segmentation and recommended method for one
// item, optionally as of a past date (?as_of=YYYY-MM-DD).
func (h *EngineHandler) Classify(c *gin.Context) {
	itemID := c.Param("item_id")

	var asOf time.Time
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			engineError(c, http.StatusBadRequest, "invalid as_of date: "+raw)
			return
		}
		asOf = parsed
	}

	cls, err := h.service.Classify(c.Request.Context(), itemID, asOf)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, cls)
}

type forecastRequest struct {
	ItemIDs         []string `json:"item_ids" binding:"required"`
	HorizonDays     int      `json:"horizon_days"`
	TrainingEndDate string   `json:"training_end_date"`
	Method          string   `json:"method"`
	RunAllMethods   bool     `json:"run_all_methods"`
	SkipPersist     bool     `json:"skip_persist"`
}

// Forecast generates forecasts for a set of items.
func (h *EngineHandler) Forecast(c *gin.Context) {
	var req forecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		engineError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	svcReq := service.ForecastRequest{
		ItemIDs:       req.ItemIDs,
		HorizonDays:   req.HorizonDays,
		RunAllMethods: req.RunAllMethods,
		SkipPersist:   req.SkipPersist,
	}

	if req.TrainingEndDate != "" {
		trainingEnd, err := time.Parse(dateLayout, req.TrainingEndDate)
		if err != nil {
			engineError(c, http.StatusBadRequest, "invalid training_end_date: "+req.TrainingEndDate)
			return
		}
		svcReq.TrainingEnd = trainingEnd
	}

	if req.Method != "" {
		method, err := domain.ParseForecastMethod(req.Method)
		if err != nil {
			engineError(c, http.StatusBadRequest, err.Error())
			return
		}
		svcReq.Method = method
	}

	results, err := h.service.Forecast(c.Request.Context(), svcReq)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"forecasts": results})
}

type simulateRequest struct {
	RunID               string   `json:"run_id"`
	ItemIDs             []string `json:"item_ids" binding:"required"`
	StartDate           string   `json:"start_date" binding:"required"`
	EndDate             string   `json:"end_date" binding:"required"`
	ForecastCadenceDays int      `json:"forecast_cadence_days"`
	ForecastHorizonDays int      `json:"forecast_horizon_days"`
	Method              string   `json:"method"`
	SkipPersist         bool     `json:"skip_persist"`
}

func (r simulateRequest) toConfig() (simulation.Config, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return simulation.Config{}, errors.New("invalid start_date: " + r.StartDate)
	}
	end, err := time.Parse(dateLayout, r.EndDate)
	if err != nil {
		return simulation.Config{}, errors.New("invalid end_date: " + r.EndDate)
	}

	cfg := simulation.Config{
		ItemIDs:             r.ItemIDs,
		StartDate:           start,
		EndDate:             end,
		ForecastCadenceDays: r.ForecastCadenceDays,
		ForecastHorizonDays: r.ForecastHorizonDays,
		SkipPersist:         r.SkipPersist,
	}

	if r.Method != "" {
		method, err := domain.ParseForecastMethod(r.Method)
		if err != nil {
			return simulation.Config{}, err
		}
		cfg.MethodOverride = method
	}

	return cfg, nil
}

// Simulate executes one day-by-day replay and returns the full comparison.
func (h *EngineHandler) Simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		engineError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg, err := req.toConfig()
	if err != nil {
		engineError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Simulate(c.Request.Context(), req.RunID, cfg)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type simulateBatchRequest struct {
	Runs []simulateRequest `json:"runs" binding:"required"`
}

// SimulateBatch executes independent runs in parallel and returns results
// keyed by run ID.
func (h *EngineHandler) SimulateBatch(c *gin.Context) {
	var req simulateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		engineError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Runs) == 0 {
		engineError(c, http.StatusBadRequest, "runs must not be empty")
		return
	}

	runs := make([]service.NamedRun, 0, len(req.Runs))
	for i, r := range req.Runs {
		cfg, err := r.toConfig()
		if err != nil {
			engineError(c, http.StatusBadRequest, err.Error())
			return
		}
		runID := r.RunID
		if runID == "" {
			runID = fmt.Sprintf("run-%s-%d", time.Now().UTC().Format("20060102T150405"), i)
		}
		runs = append(runs, service.NamedRun{RunID: runID, Config: cfg})
	}

	results, err := h.service.SimulateMany(c.Request.Context(), runs)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// respondEngineError maps engine error types onto HTTP statuses.
func respondEngineError(c *gin.Context, err error) {
	var (
		invalid *domain.InvalidConfigError
		missing *domain.MissingDataError
	)
	switch {
	case errors.As(err, &invalid):
		engineError(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &missing):
		engineError(c, http.StatusNotFound, err.Error())
	default:
		engineError(c, http.StatusInternalServerError, err.Error())
	}
}

func engineError(c *gin.Context, statusCode int, message string) {
	log.Error().Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
}
