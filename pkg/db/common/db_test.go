package common_test

import (
	"reflect"
	"testing"

	"github.com/MaineK00n/vulstrack/pkg/db/common"
	"github.com/MaineK00n/vulstrack/pkg/db/common/rdb"
)

func TestConfig_New(t *testing.T) {
	type fields struct {
		Type  string
		Path  string
		Debug bool
	}
	tests := []struct {
		name    string
		fields  fields
		want    common.DB
		wantErr bool
	}{
		{
			name:   "sqlite3",
			fields: fields{Type: "sqlite3", Path: "vulstrack.db"},
			want:   &rdb.Connection{Config: &rdb.Config{Type: "sqlite3", Path: "vulstrack.db"}},
		},
		{
			name:   "postgres",
			fields: fields{Type: "postgres", Path: "host=localhost user=vulstrack dbname=vulstrack", Debug: true},
			want:   &rdb.Connection{Config: &rdb.Config{Type: "postgres", Path: "host=localhost user=vulstrack dbname=vulstrack", Debug: true}},
		},
		{
			name:    "boltdb is not supported",
			fields:  fields{Type: "boltdb", Path: "vulstrack.db"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &common.Config{
				Type:  tt.fields.Type,
				Path:  tt.fields.Path,
				Debug: tt.fields.Debug,
			}
			got, err := c.New()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Config.New() = %v, want %v", got, tt.want)
			}
		})
	}
}
