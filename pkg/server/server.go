package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	db "github.com/MaineK00n/vulstrack/pkg/db/common"
	dbTypes "github.com/MaineK00n/vulstrack/pkg/db/common/types"
	"github.com/MaineK00n/vulstrack/pkg/tracker"
	"github.com/MaineK00n/vulstrack/pkg/tracker/filter"
	"github.com/MaineK00n/vulstrack/pkg/types"
	"github.com/MaineK00n/vulstrack/pkg/version"
)

// New returns an echo instance serving t and the client and product tables of dbc.
func New(t *tracker.Tracker, dbc db.DB) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.GET("/_health", Health())

	e.GET("/tracker", Records(t))
	e.POST("/tracker/rows/:id", UpdateRow(t))
	e.DELETE("/tracker/rows/:id", DeleteRow(t))
	e.DELETE("/tracker/groups/:bulletin/:client", DeleteGroup(t))
	e.PATCH("/facts/:bulletin", UpdateFact(t))

	e.GET("/api/kpi/global_overview", GlobalOverview(t))
	e.GET("/api/kpi/:type", KPI(t))

	e.GET("/clients", Clients(dbc))
	e.POST("/clients", AddClient(dbc))
	e.PUT("/clients/:id", EditClient(dbc))
	e.DELETE("/clients/:id", RemoveClient(dbc))

	e.GET("/products", Products(dbc))
	e.POST("/products", AddProduct(dbc))
	e.PUT("/products/:id", EditProduct(dbc))
	e.DELETE("/products/:id", RemoveProduct(dbc))

	return e
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func status(err error) int {
	var (
		he *echo.HTTPError
		fe *types.InvalidFilterError
	)
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.As(err, &fe):
		return http.StatusBadRequest
	case errors.Is(err, dbTypes.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := status(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = func() string {
			if s, ok := he.Message.(string); ok {
				return s
			}
			return http.StatusText(he.Code)
		}()
	}
	if code == http.StatusInternalServerError {
		slog.Error("Failed to handle request", "method", c.Request().Method, "path", c.Path(), "err", fmt.Sprintf("%+v", err))
	}
	if err := c.JSON(code, errorResponse{Success: false, Error: msg}); err != nil {
		slog.Error("Failed to write response", "err", err)
	}
}

func idParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

func Health() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version.String()})
	}
}

func Records(t *tracker.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		rs, err := t.Records(tracker.Query{
			Client:    c.QueryParam("client"),
			StartDate: c.QueryParam("start_date"),
			EndDate:   c.QueryParam("end_date"),
			Month:     c.QueryParam("month"),
		})
		if err != nil {
			return err
		}
		if rs == nil {
			rs = []types.Record{}
		}
		return c.JSON(http.StatusOK, rs)
	}
}

type rowRequest struct {
	Status          *string `json:"status"`
	Comment         *string `json:"comment"`
	TreatmentDate   *string `json:"date_de_traitement"`
	ResponsibleTeam *string `json:"responsable_resolution"`
	Product         *string `json:"produit_name"`
}

func (r rowRequest) edit() (tracker.Edit, error) {
	e := tracker.Edit{
		TrackingUpdate: dbTypes.TrackingUpdate{
			Comment:         r.Comment,
			TreatmentDate:   r.TreatmentDate,
			ResponsibleTeam: r.ResponsibleTeam,
		},
		Product: r.Product,
	}
	if r.Status != nil {
		s, err := types.ParseStatus(*r.Status)
		if err != nil {
			return tracker.Edit{}, err
		}
		e.Status = &s
	}
	if r.TreatmentDate != nil {
		if err := filter.ValidateDate("date_de_traitement", *r.TreatmentDate); err != nil {
			return tracker.Edit{}, err
		}
	}
	return e, nil
}

// UpdateRow edits every row of the pair of row id, or only row id with scope=row.
func UpdateRow(t *tracker.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		var req rowRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad request")
		}
		e, err := req.edit()
		if err != nil {
			return err
		}

		var r *types.TrackingRow
		switch c.QueryParam("scope") {
		case "", "group":
			r, err = t.UpdateRecord(id, e)
		case "row":
			r, err = t.UpdateRow(id, e.TrackingUpdate)
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "unknown scope")
		}
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, r)
	}
}

func DeleteRow(t *tracker.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		if err := t.DeleteRow(id); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func DeleteGroup(t *tracker.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		n, err := t.DeleteRecord(c.Param("bulletin"), c.Param("client"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
	}
}

type factRequest struct {
	Product     *string `json:"produit_name"`
	Description *string `json:"description"`
	Risk        *string `json:"risk"`
	Mitigation  *string `json:"mitigation"`
	Reference   *string `json:"reference"`
}

func UpdateFact(t *tracker.Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req factRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad request")
		}
		u := dbTypes.FactUpdate{
			Product:     req.Product,
			Description: req.Description,
			Risk:        req.Risk,
			Mitigation:  req.Mitigation,
			Reference:   req.Reference,
		}
		if u.IsEmpty() {
			return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
		}
		n, err := t.UpdateFact(c.Param("bulletin"), u)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]int64{"updated": n})
	}
}
