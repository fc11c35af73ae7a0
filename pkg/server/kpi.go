package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/MaineK00n/vulstrack/pkg/tracker"
	"github.com/MaineK00n/vulstrack/pkg/tracker/filter"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

type kpiFilters struct {
	Month string `json:"month"`
}

type kpiResponse struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Client  string     `json:"client,omitempty"`
	Filters kpiFilters `json:"filters"`
}

// Types are the KPI names served under /api/kpi/:type.
var Types = []string{
	"status_distribution",
	"sla_compliance",
	"monthly_trend",
	"monthly_evolution",
	"available_months",
	"open_vs_closed",
	"comprehensive_table",
	"summary",
	"global_overview",
}

// Compute runs the KPI named typ. It is shared by the HTTP API and the CLI.
func Compute(t *tracker.Tracker, typ, client, month string, months []string, window int) (any, error) {
	switch typ {
	case "status_distribution":
		return t.StatusDistribution(client, month)
	case "sla_compliance":
		return t.SLACompliance(client, month)
	case "monthly_trend":
		return t.MonthlyTrend(client, window)
	case "monthly_evolution":
		return t.MonthlyEvolution(client, months)
	case "available_months":
		return t.AvailableMonths(client)
	case "open_vs_closed":
		return t.OpenVsClosed(client, month)
	case "comprehensive_table":
		return t.ComprehensiveTable(client, months)
	case "summary":
		return t.Summary(client, month)
	case "global_overview":
		return t.GlobalOverview(month)
	default:
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unknown kpi type: "+typ)
	}
}

func window(s string) (int, error) {
	if s == "" {
		return tracker.DefaultWindow, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &types.InvalidFilterError{Field: "months", Value: s}
	}
	return n, nil
}

func KPI(t *tracker.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		typ := c.Param("type")
		client, month := c.QueryParam("client"), c.QueryParam("month")

		var (
			months []string
			w      = tracker.DefaultWindow
		)
		switch typ {
		case "monthly_trend":
			n, err := window(c.QueryParam("months"))
			if err != nil {
				return err
			}
			w = n
		default:
			months = filter.SplitMonths(c.QueryParam("months"))
		}

		data, err := Compute(t, typ, client, month, months, w)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, kpiResponse{Success: true, Data: data, Client: client, Filters: kpiFilters{Month: month}})
	}
}

func GlobalOverview(t *tracker.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		month := c.QueryParam("month")
		o, err := t.GlobalOverview(month)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, kpiResponse{Success: true, Data: o, Filters: kpiFilters{Month: month}})
	}
}
