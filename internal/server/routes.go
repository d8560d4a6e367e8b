package server

import (
	"net/http"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type verdictResponse struct {
	Allowed     bool   `json:"allowed"`
	CurrentAmps int    `json:"current_a"`
	Reason      string `json:"reason"`
}

type commandResponse struct {
	Kind   string `json:"kind"`
	Value  string `json:"value,omitempty"`
	Failed bool   `json:"failed"`
	Error  string `json:"error,omitempty"`
}

type tickResponse struct {
	Verdict            verdictResponse   `json:"verdict"`
	Reason             string            `json:"reason"`
	Succeeded          bool              `json:"succeeded"`
	Error              string            `json:"error,omitempty"`
	HouseholdPowerWatt float64           `json:"household_power_w"`
	AvailablePowerWatt float64           `json:"available_power_w"`
	TotalPowerWatt     float64           `json:"instantaneous_power_w"`
	AvgPower30sWatt    *float64          `json:"avg_power_30s_w,omitempty"`
	Commands           []commandResponse `json:"commands"`
	Timestamp          time.Time         `json:"timestamp"`
}

type statusResponse struct {
	ManualOverride     bool          `json:"manual_override"`
	ChargerEnabled     bool          `json:"charger_enabled"`
	MaxCurrentCapAmps  int           `json:"max_current_cap"`
	Charging           bool          `json:"charging"`
	AppliedCurrentAmps int           `json:"applied_current"`
	LastTick           *time.Time    `json:"last_tick,omitempty"`
	LastResult         *tickResponse `json:"last_result,omitempty"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.POST("/api/charge-control/update", s.UpdateNowHandler)
	e.GET("/api/charge-control/state", s.StateHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// UpdateNowHandler runs exactly one control tick and returns its outcome.
func (s *Server) UpdateNowHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ChargeControlUpdateNowRequest{}, s.requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.ChargeControlUpdateNowResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if response.HasResponseError() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, response.GetResponseError().Error())
	}
	body := toTickResponse(response.Result)
	if !response.Result.Succeeded() {
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) StateHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ChargeControlGetStatusRequest{}, 5*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.ChargeControlGetStatusResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	return c.JSON(http.StatusOK, toStatusResponse(response.Status))
}

func toTickResponse(r domain.TickResult) *tickResponse {
	resp := &tickResponse{
		Verdict: verdictResponse{
			Allowed:     r.Verdict.Allowed,
			CurrentAmps: r.Verdict.PublishedCurrent(),
			Reason:      string(r.Verdict.Reason),
		},
		Reason:             string(r.Reason),
		Succeeded:          r.Succeeded(),
		HouseholdPowerWatt: r.HouseholdPowerWatt,
		AvailablePowerWatt: r.AvailablePowerWatt,
		TotalPowerWatt:     r.TotalPowerWatt,
		Commands:           []commandResponse{},
		Timestamp:          r.Timestamp,
	}
	if r.SnapshotErr != nil {
		resp.Error = r.SnapshotErr.Error()
	}
	if r.HasAvgPower30s {
		avg := r.AvgPower30sWatt
		resp.AvgPower30sWatt = &avg
	}
	for _, cmd := range r.Commands {
		cr := commandResponse{
			Kind:   string(cmd.Kind),
			Failed: cmd.Failed(),
		}
		if cmd.Kind == domain.CHARGER_COMMAND_SET_CURRENT {
			cr.Value = cmd.Option()
		}
		if cmd.Err != nil {
			cr.Error = cmd.Err.Error()
		}
		resp.Commands = append(resp.Commands, cr)
	}
	return resp
}

func toStatusResponse(status domain.ChargeControlStatus) statusResponse {
	resp := statusResponse{
		ManualOverride:    status.Flags.ManualOverride,
		ChargerEnabled:    status.Flags.ChargerEnabled,
		MaxCurrentCapAmps: status.MaxCurrentCapAmps,
		Charging:          status.ChargerState.Charging,
	}
	if status.ChargerState.Charging {
		resp.AppliedCurrentAmps = status.ChargerState.CurrentAmps
	}
	if !status.ChargerState.LastTick.IsZero() {
		lastTick := status.ChargerState.LastTick
		resp.LastTick = &lastTick
	}
	if status.LastResult != nil {
		resp.LastResult = toTickResponse(*status.LastResult)
	}
	return resp
}
