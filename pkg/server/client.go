package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	db "github.com/MaineK00n/vulstrack/pkg/db/common"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

type clientRequest struct {
	Name string `json:"name"`
}

func (r clientRequest) name() (string, error) {
	n := strings.TrimSpace(r.Name)
	if n == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	return n, nil
}

func Clients(dbc db.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		cs, err := dbc.GetClients()
		if err != nil {
			return err
		}
		if cs == nil {
			cs = []types.Client{}
		}
		return c.JSON(http.StatusOK, cs)
	}
}

func AddClient(dbc db.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req clientRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad request")
		}
		n, err := req.name()
		if err != nil {
			return err
		}
		cl, err := dbc.PutClient(n)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, cl)
	}
}

func EditClient(dbc db.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		var req clientRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad request")
		}
		n, err := req.name()
		if err != nil {
			return err
		}
		if err := dbc.UpdateClient(id, n); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, types.Client{ID: id, Name: n})
	}
}

func RemoveClient(dbc db.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		if err := dbc.DeleteClient(id); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func Products(dbc db.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		var clientID *uint
		if s := c.QueryParam("client_id"); s != "" {
			id, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid client_id")
			}
			v := uint(id)
			clientID = &v
		}
		ps, err := dbc.GetProducts(clientID)
		if err != nil {
			return err
		}
		if ps == nil {
			ps = []types.Product{}
		}
		return c.JSON(http.StatusOK, ps)
	}
}

func bindProduct(c echo.Context) (types.Product, error) {
	var p types.Product
	if err := c.Bind(&p); err != nil {
		return types.Product{}, echo.NewHTTPError(http.StatusBadRequest, "bad request")
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || p.ClientID == 0 {
		return types.Product{}, echo.NewHTTPError(http.StatusBadRequest, "name and client_id are required")
	}
	return p, nil
}

func AddProduct(dbc db.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := bindProduct(c)
		if err != nil {
			return err
		}
		p.ID = 0
		np, err := dbc.PutProduct(p)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, np)
	}
}

func EditProduct(dbc db.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		p, err := bindProduct(c)
		if err != nil {
			return err
		}
		p.ID = id
		if err := dbc.UpdateProduct(p); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, p)
	}
}

func RemoveProduct(dbc db.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c)
		if err != nil {
			return err
		}
		if err := dbc.DeleteProduct(id); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}
