package flag

import (
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	db "github.com/MaineK00n/vulstrack/pkg/db/common"
	dbInit "github.com/MaineK00n/vulstrack/pkg/db/init"
)

type DBType string

const (
	DBTypeSQLite3    DBType = "sqlite3"
	DBTypeMySQL      DBType = "mysql"
	DBTypePostgreSQL DBType = "postgres"
)

func (t *DBType) String() string {
	return string(*t)
}

func (t *DBType) Set(v string) error {
	switch v {
	case "sqlite3", "mysql", "postgres":
		*t = DBType(v)
		return nil
	default:
		return errors.Errorf("unexpected dbtype. accepts: %q, actual: %q", []DBType{DBTypeSQLite3, DBTypeMySQL, DBTypePostgreSQL}, v)
	}
}

func (t *DBType) Type() string {
	return "DBType"
}

func DBTypeCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{string(DBTypeSQLite3), string(DBTypeMySQL), string(DBTypePostgreSQL)}, cobra.ShellCompDirectiveDefault
}

// DB holds the tracking store flags shared by every command.
type DB struct {
	Type  DBType
	Path  string
	Debug bool
}

func NewDB() DB {
	return DB{
		Type:  DBTypeSQLite3,
		Path:  dbInit.DefaultDBPath(),
		Debug: false,
	}
}

func (o *DB) AddFlags(cmd *cobra.Command) {
	cmd.Flags().VarP(&o.Type, "dbtype", "", "vulstrack db type (default: sqlite3, accepts: [sqlite3, mysql, postgres])")
	_ = cmd.RegisterFlagCompletionFunc("dbtype", DBTypeCompletion)
	cmd.Flags().StringVarP(&o.Path, "dbpath", "", o.Path, "vulstrack db path or dsn")
	cmd.Flags().BoolVarP(&o.Debug, "debug", "d", o.Debug, "debug mode")
}

// Open sets the log level and opens the tracking store.
func (o DB) Open() (db.DB, error) {
	SetDebug(o.Debug)

	dbc, err := db.Open(db.Config{Type: o.Type.String(), Path: o.Path, Debug: o.Debug})
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	return dbc, nil
}

func SetDebug(debug bool) {
	if debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
}
