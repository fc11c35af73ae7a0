package common

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/MaineK00n/vulstrack/pkg/db/common/rdb"
	dbTypes "github.com/MaineK00n/vulstrack/pkg/db/common/types"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

const (
	SchemaVersion = 1
)

type DB interface {
	Open() error
	Close() error

	GetMetadata() (*dbTypes.Metadata, error)
	PutMetadata(dbTypes.Metadata) error

	PutFact(types.Fact) (bool, error)
	UpdateFact(string, dbTypes.FactUpdate) (int64, error)

	PutTrackingRow(types.TrackingRow) (bool, error)
	GetTrackingRow(uint) (*types.TrackingRow, error)
	UpdateTrackingRow(uint, dbTypes.TrackingUpdate) error
	UpdateGroup(string, string, dbTypes.TrackingUpdate) (int64, error)
	DeleteTrackingRow(uint) error
	DeleteGroup(string, string) (int64, error)
	GetJoinedRows(dbTypes.Filter) ([]types.JoinedRow, error)
	GetTrackedClients() ([]string, error)
	RolloverTreatmentDates(string) (int64, error)

	PutClient(string) (*types.Client, error)
	GetClients() ([]types.Client, error)
	UpdateClient(uint, string) error
	DeleteClient(uint) error

	PutProduct(types.Product) (*types.Product, error)
	GetProducts(*uint) ([]types.Product, error)
	UpdateProduct(types.Product) error
	DeleteProduct(uint) error
	GetClientsWithProducts() (map[string][]types.Product, error)

	DeleteAll() error
	Initialize() error
}

type Config struct {
	Type    string
	Path    string
	Debug   bool
	Options DBOptions
}

type DBOptions struct {
	RDB []gorm.Option
}

func (c *Config) New() (DB, error) {
	switch c.Type {
	case "sqlite3", "mysql", "postgres":
		return &rdb.Connection{Config: &rdb.Config{Type: c.Type, Path: c.Path, Debug: c.Debug, Options: c.Options.RDB}}, nil
	default:
		return nil, errors.Errorf("%s is not support dbtype", c.Type)
	}
}

// Open builds a connection from c and opens it.
func Open(c Config) (DB, error) {
	dbc, err := c.New()
	if err != nil {
		return nil, errors.Wrap(err, "new db connection")
	}
	if err := dbc.Open(); err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	return dbc, nil
}
