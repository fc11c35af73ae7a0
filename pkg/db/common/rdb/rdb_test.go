package rdb_test

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/MaineK00n/vulstrack/pkg/db/common/rdb"
	dbTypes "github.com/MaineK00n/vulstrack/pkg/db/common/types"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

func open(t *testing.T) *rdb.Connection {
	t.Helper()

	c := &rdb.Connection{Config: &rdb.Config{Type: "sqlite3", Path: filepath.Join(t.TempDir(), "vulstrack.db")}}
	if err := c.Open(); err != nil {
		t.Fatalf("open db. error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Initialize(); err != nil {
		t.Fatalf("initialize db. error = %v", err)
	}
	return c
}

func seed(t *testing.T, c *rdb.Connection, facts []types.Fact, rows []types.TrackingRow) {
	t.Helper()

	for _, f := range facts {
		if _, err := c.PutFact(f); err != nil {
			t.Fatalf("put fact. error = %v", err)
		}
	}
	for _, r := range rows {
		if _, err := c.PutTrackingRow(r); err != nil {
			t.Fatalf("put tracking row. error = %v", err)
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestConnection_Open(t *testing.T) {
	tests := []struct {
		name    string
		config  *rdb.Config
		wantErr bool
	}{
		{
			name:   "sqlite3",
			config: &rdb.Config{Type: "sqlite3", Path: filepath.Join(t.TempDir(), "vulstrack.db")},
		},
		{
			name:    "config is not set",
			wantErr: true,
		},
		{
			name:    "unsupported type",
			config:  &rdb.Config{Type: "boltdb", Path: filepath.Join(t.TempDir(), "vulstrack.db")},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &rdb.Connection{Config: tt.config}
			if err := c.Open(); (err != nil) != tt.wantErr {
				t.Errorf("Connection.Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			defer c.Close()
		})
	}
}

func TestConnection_Metadata(t *testing.T) {
	c := open(t)

	if _, err := c.GetMetadata(); err == nil {
		t.Errorf("Connection.GetMetadata() on empty db, expected error")
	}

	want := dbTypes.Metadata{SchemaVersion: 1, CreatedBy: "vulstrack test"}
	if err := c.PutMetadata(want); err != nil {
		t.Fatalf("Connection.PutMetadata() error = %v", err)
	}
	got, err := c.GetMetadata()
	if err != nil {
		t.Fatalf("Connection.GetMetadata() error = %v", err)
	}
	if got.SchemaVersion != want.SchemaVersion || got.CreatedBy != want.CreatedBy {
		t.Errorf("Connection.GetMetadata() = %+v, want %+v", got, want)
	}
}

func TestConnection_PutFact(t *testing.T) {
	c := open(t)

	tests := []struct {
		name    string
		fact    types.Fact
		want    bool
		wantErr bool
	}{
		{
			name: "new fact",
			fact: types.Fact{BulletinID: "B1", CVEID: "CVE-1", ReleaseDate: "2024-01-01"},
			want: true,
		},
		{
			name: "already ingested",
			fact: types.Fact{BulletinID: "B1", CVEID: "CVE-1", ReleaseDate: "2030-01-01"},
			want: false,
		},
		{
			name:    "missing cve",
			fact:    types.Fact{BulletinID: "B1"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.PutFact(tt.fact)
			if (err != nil) != tt.wantErr {
				t.Errorf("Connection.PutFact() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("Connection.PutFact() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConnection_PutTrackingRow(t *testing.T) {
	c := open(t)
	seed(t, c, []types.Fact{{BulletinID: "B1", CVEID: "CVE-1", ReleaseDate: "2024-01-01"}}, nil)

	inserted, err := c.PutTrackingRow(types.TrackingRow{BulletinID: "B1", CVEID: "CVE-1", Client: "Acme"})
	if err != nil || !inserted {
		t.Fatalf("Connection.PutTrackingRow() = %v, %v, want true, nil", inserted, err)
	}
	inserted, err = c.PutTrackingRow(types.TrackingRow{BulletinID: "B1", CVEID: "CVE-1", Client: "Acme", Status: types.StatusWIP})
	if err != nil || inserted {
		t.Fatalf("Connection.PutTrackingRow() duplicate = %v, %v, want false, nil", inserted, err)
	}

	rows, err := c.GetJoinedRows(dbTypes.Filter{})
	if err != nil {
		t.Fatalf("Connection.GetJoinedRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Connection.GetJoinedRows() len = %d, want 1", len(rows))
	}
	if rows[0].Status != types.StatusOpen {
		t.Errorf("default status = %q, want %q", rows[0].Status, types.StatusOpen)
	}
	if rows[0].TreatmentDate == "" {
		t.Errorf("default treatment date is empty")
	}
}

func TestConnection_GetJoinedRows(t *testing.T) {
	c := open(t)
	seed(t, c,
		[]types.Fact{
			{BulletinID: "B1", CVEID: "CVE-1", Product: "Product A", ReleaseDate: "2024-01-15", ProcessingTime: 15},
			{BulletinID: "B1", CVEID: "CVE-2", Product: "Product A", ReleaseDate: "2024-01-15", ProcessingTime: 15},
			{BulletinID: "B2", CVEID: "CVE-3", Product: "Product B", ReleaseDate: "2024-02-03", ProcessingTime: 5},
		},
		[]types.TrackingRow{
			{BulletinID: "B1", CVEID: "CVE-1", Client: "Acme", TreatmentDate: "2024-01-20"},
			{BulletinID: "B1", CVEID: "CVE-2", Client: "Acme", TreatmentDate: "2024-01-20"},
			{BulletinID: "B2", CVEID: "CVE-3", Client: "Acme", TreatmentDate: "2024-02-04"},
			{BulletinID: "B2", CVEID: "CVE-3", Client: "Globex", TreatmentDate: "2024-02-04"},
			{BulletinID: "B9", CVEID: "CVE-9", Client: "Globex", TreatmentDate: "2024-02-04"},
		},
	)

	type key struct {
		Bulletin, CVE, Client string
		HasFact               bool
	}
	tests := []struct {
		name   string
		filter dbTypes.Filter
		want   []key
	}{
		{
			name:   "all rows, dangling included",
			filter: dbTypes.Filter{},
			want: []key{
				{"B2", "CVE-3", "Acme", true},
				{"B2", "CVE-3", "Globex", true},
				{"B1", "CVE-1", "Acme", true},
				{"B1", "CVE-2", "Acme", true},
				{"B9", "CVE-9", "Globex", false},
			},
		},
		{
			name:   "client",
			filter: dbTypes.Filter{Client: "Globex"},
			want: []key{
				{"B2", "CVE-3", "Globex", true},
				{"B9", "CVE-9", "Globex", false},
			},
		},
		{
			name:   "date range is inclusive",
			filter: dbTypes.Filter{StartDate: "2024-01-01", EndDate: "2024-01-15"},
			want: []key{
				{"B1", "CVE-1", "Acme", true},
				{"B1", "CVE-2", "Acme", true},
			},
		},
		{
			name:   "months",
			filter: dbTypes.Filter{Client: "Acme", Months: []string{"2024-02"}},
			want: []key{
				{"B2", "CVE-3", "Acme", true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := c.GetJoinedRows(tt.filter)
			if err != nil {
				t.Fatalf("Connection.GetJoinedRows() error = %v", err)
			}
			got := make([]key, 0, len(rows))
			for _, r := range rows {
				got = append(got, key{r.BulletinID, r.CVEID, r.Client, r.Fact != nil})
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Connection.GetJoinedRows(). (-expected +got):\n%s", diff)
			}
		})
	}
}

func TestConnection_RolloverTreatmentDates(t *testing.T) {
	c := open(t)
	seed(t, c,
		[]types.Fact{{BulletinID: "B1", CVEID: "CVE-1", ReleaseDate: "2024-01-01"}},
		[]types.TrackingRow{
			{BulletinID: "B1", CVEID: "CVE-1", Client: "A", Status: types.StatusOpen, TreatmentDate: "2024-01-02"},
			{BulletinID: "B1", CVEID: "CVE-1", Client: "B", Status: types.StatusNOK, TreatmentDate: "2024-01-02"},
			{BulletinID: "B1", CVEID: "CVE-1", Client: "C", Status: types.StatusClosTraite, TreatmentDate: "2024-01-02"},
			{BulletinID: "B1", CVEID: "CVE-1", Client: "D", Status: types.StatusClos, TreatmentDate: "2024-01-03"},
		},
	)

	dates := func() map[string]string {
		rows, err := c.GetJoinedRows(dbTypes.Filter{})
		if err != nil {
			t.Fatalf("Connection.GetJoinedRows() error = %v", err)
		}
		m := map[string]string{}
		for _, r := range rows {
			m[r.Client] = r.TreatmentDate
		}
		return m
	}

	n, err := c.RolloverTreatmentDates("2024-05-01")
	if err != nil {
		t.Fatalf("Connection.RolloverTreatmentDates() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Connection.RolloverTreatmentDates() = %d, want 2", n)
	}
	once := dates()

	if _, err := c.RolloverTreatmentDates("2024-05-01"); err != nil {
		t.Fatalf("Connection.RolloverTreatmentDates() error = %v", err)
	}
	twice := dates()

	want := map[string]string{"A": "2024-05-01", "B": "2024-05-01", "C": "2024-01-02", "D": "2024-01-03"}
	if diff := cmp.Diff(want, once); diff != "" {
		t.Errorf("after first rollover. (-expected +got):\n%s", diff)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("rollover is not idempotent. (-once +twice):\n%s", diff)
	}
}

func TestConnection_UpdateAndDelete(t *testing.T) {
	c := open(t)
	seed(t, c,
		[]types.Fact{
			{BulletinID: "B1", CVEID: "CVE-1", Product: "Old", ReleaseDate: "2024-01-01"},
			{BulletinID: "B1", CVEID: "CVE-2", Product: "Old", ReleaseDate: "2024-01-01"},
		},
		[]types.TrackingRow{
			{BulletinID: "B1", CVEID: "CVE-1", Client: "Acme", TreatmentDate: "2024-01-02"},
			{BulletinID: "B1", CVEID: "CVE-2", Client: "Acme", TreatmentDate: "2024-01-02"},
			{BulletinID: "B1", CVEID: "CVE-1", Client: "Globex", TreatmentDate: "2024-01-02"},
		},
	)

	rows, err := c.GetJoinedRows(dbTypes.Filter{Client: "Acme"})
	if err != nil {
		t.Fatalf("Connection.GetJoinedRows() error = %v", err)
	}
	id := rows[0].ID

	if err := c.UpdateTrackingRow(id, dbTypes.TrackingUpdate{Status: ptr(types.StatusWIP), Comment: ptr("patch planned")}); err != nil {
		t.Fatalf("Connection.UpdateTrackingRow() error = %v", err)
	}
	got, err := c.GetTrackingRow(id)
	if err != nil {
		t.Fatalf("Connection.GetTrackingRow() error = %v", err)
	}
	if got.Status != types.StatusWIP || got.Comment != "patch planned" || got.TreatmentDate != "2024-01-02" {
		t.Errorf("Connection.GetTrackingRow() = %+v", got)
	}

	if err := c.UpdateTrackingRow(9999, dbTypes.TrackingUpdate{Comment: ptr("x")}); !errors.Is(err, dbTypes.ErrNotFound) {
		t.Errorf("Connection.UpdateTrackingRow() unknown id error = %v, want ErrNotFound", err)
	}

	n, err := c.UpdateGroup("B1", "Acme", dbTypes.TrackingUpdate{ResponsibleTeam: ptr("Infra")})
	if err != nil || n != 2 {
		t.Errorf("Connection.UpdateGroup() = %d, %v, want 2, nil", n, err)
	}

	n, err = c.UpdateFact("B1", dbTypes.FactUpdate{Product: ptr("New")})
	if err != nil || n != 2 {
		t.Errorf("Connection.UpdateFact() = %d, %v, want 2, nil", n, err)
	}

	n, err = c.DeleteGroup("B1", "Acme")
	if err != nil || n != 2 {
		t.Errorf("Connection.DeleteGroup() = %d, %v, want 2, nil", n, err)
	}

	rows, err = c.GetJoinedRows(dbTypes.Filter{})
	if err != nil {
		t.Fatalf("Connection.GetJoinedRows() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Client != "Globex" || rows[0].Fact == nil || rows[0].Fact.Product != "New" {
		t.Errorf("Connection.GetJoinedRows() after delete = %+v", rows)
	}

	if err := c.DeleteTrackingRow(rows[0].ID); err != nil {
		t.Errorf("Connection.DeleteTrackingRow() error = %v", err)
	}
	if err := c.DeleteTrackingRow(rows[0].ID); !errors.Is(err, dbTypes.ErrNotFound) {
		t.Errorf("Connection.DeleteTrackingRow() twice error = %v, want ErrNotFound", err)
	}
}

func TestConnection_ClientsAndProducts(t *testing.T) {
	c := open(t)

	acme, err := c.PutClient("Acme")
	if err != nil {
		t.Fatalf("Connection.PutClient() error = %v", err)
	}
	globex, err := c.PutClient("Globex")
	if err != nil {
		t.Fatalf("Connection.PutClient() error = %v", err)
	}
	if _, err := c.PutClient("Acme"); err == nil {
		t.Errorf("Connection.PutClient() duplicate, expected error")
	}

	if _, err := c.PutProduct(types.Product{Name: "Windows Server", ClientID: acme.ID}); err != nil {
		t.Fatalf("Connection.PutProduct() error = %v", err)
	}
	fortinet, err := c.PutProduct(types.Product{Name: "FortiGate", ClientID: acme.ID, ResponsibleResolution: "Network Team"})
	if err != nil {
		t.Fatalf("Connection.PutProduct() error = %v", err)
	}

	got, err := c.GetClientsWithProducts()
	if err != nil {
		t.Fatalf("Connection.GetClientsWithProducts() error = %v", err)
	}
	want := map[string][]types.Product{
		"Acme": {
			{ID: fortinet.ID, Name: "FortiGate", ClientID: acme.ID, ResponsibleResolution: "Network Team"},
			{ID: fortinet.ID - 1, Name: "Windows Server", ClientID: acme.ID, ResponsibleResolution: types.DefaultResponsibleTeam},
		},
		"Globex": {},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Connection.GetClientsWithProducts(). (-expected +got):\n%s", diff)
	}

	if err := c.UpdateProduct(types.Product{ID: fortinet.ID, Name: "FortiGate", ClientID: globex.ID}); err != nil {
		t.Errorf("Connection.UpdateProduct() error = %v", err)
	}
	ps, err := c.GetProducts(&globex.ID)
	if err != nil {
		t.Fatalf("Connection.GetProducts() error = %v", err)
	}
	if len(ps) != 1 || ps[0].ResponsibleResolution != types.DefaultResponsibleTeam {
		t.Errorf("Connection.GetProducts() = %+v", ps)
	}

	if err := c.DeleteClient(acme.ID); err != nil {
		t.Errorf("Connection.DeleteClient() error = %v", err)
	}
	cs, err := c.GetClients()
	if err != nil {
		t.Fatalf("Connection.GetClients() error = %v", err)
	}
	if diff := cmp.Diff([]types.Client{{ID: globex.ID, Name: "Globex"}}, cs); diff != "" {
		t.Errorf("Connection.GetClients(). (-expected +got):\n%s", diff)
	}
	ps, err = c.GetProducts(nil)
	if err != nil {
		t.Fatalf("Connection.GetProducts() error = %v", err)
	}
	if len(ps) != 1 {
		t.Errorf("Connection.GetProducts() after client delete = %+v", ps)
	}
}
