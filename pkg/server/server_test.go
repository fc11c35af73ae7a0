package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	db "github.com/MaineK00n/vulstrack/pkg/db/common"
	"github.com/MaineK00n/vulstrack/pkg/server"
	"github.com/MaineK00n/vulstrack/pkg/tracker"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

func setup(t *testing.T) (http.Handler, db.DB) {
	t.Helper()

	dbc, err := db.Open(db.Config{Type: "sqlite3", Path: filepath.Join(t.TempDir(), "vulstrack.db")})
	if err != nil {
		t.Fatalf("open db. error = %v", err)
	}
	t.Cleanup(func() { _ = dbc.Close() })
	if err := dbc.Initialize(); err != nil {
		t.Fatalf("initialize db. error = %v", err)
	}

	for _, f := range []types.Fact{
		{BulletinID: "B1", CVEID: "CVE-1", Product: "Windows", ReleaseDate: "2024-02-15", Risk: "Critical", ProcessingTime: 15},
		{BulletinID: "B1", CVEID: "CVE-2", Product: "Windows", ReleaseDate: "2024-02-15", Risk: "Critical", ProcessingTime: 15},
		{BulletinID: "B2", CVEID: "CVE-3", Product: "FortiGate", ReleaseDate: "2024-01-05", Risk: "Low", ProcessingTime: 30},
	} {
		if _, err := dbc.PutFact(f); err != nil {
			t.Fatalf("put fact. error = %v", err)
		}
	}
	for _, r := range []types.TrackingRow{
		{BulletinID: "B1", CVEID: "CVE-1", Client: "Acme", Status: types.StatusClosTraite, TreatmentDate: "2024-03-01"},
		{BulletinID: "B1", CVEID: "CVE-2", Client: "Acme", Status: types.StatusOpen, TreatmentDate: "2024-02-20"},
		{BulletinID: "B1", CVEID: "CVE-1", Client: "Globex", Status: types.StatusWIP, TreatmentDate: "2024-02-16"},
		{BulletinID: "B2", CVEID: "CVE-3", Client: "Acme", Status: types.StatusClos, TreatmentDate: "2024-01-20"},
	} {
		if _, err := dbc.PutTrackingRow(r); err != nil {
			t.Fatalf("put tracking row. error = %v", err)
		}
	}

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.Local)
	tr := tracker.New(dbc, tracker.WithRolloverOnRead(false), tracker.WithClock(func() time.Time { return now }))
	return server.New(tr, dbc), dbc
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestKPI(t *testing.T) {
	h, _ := setup(t)

	tests := []struct {
		name     string
		target   string
		wantCode int
		want     map[string]any
	}{
		{
			name:     "status distribution of a client",
			target:   "/api/kpi/status_distribution?client=Acme",
			wantCode: http.StatusOK,
			want: map[string]any{
				"success": true,
				"client":  "Acme",
				"data":    map[string]any{"Open": float64(1), "Clos": float64(1)},
				"filters": map[string]any{"month": ""},
			},
		},
		{
			name:     "open vs closed of a month",
			target:   "/api/kpi/open_vs_closed?month=2024-02",
			wantCode: http.StatusOK,
			want: map[string]any{
				"success": true,
				"data":    map[string]any{"Open": float64(1), "Clos": float64(0)},
				"filters": map[string]any{"month": "2024-02"},
			},
		},
		{
			name:     "sla compliance",
			target:   "/api/kpi/sla_compliance?client=Acme",
			wantCode: http.StatusOK,
			want: map[string]any{
				"success": true,
				"client":  "Acme",
				"data":    map[string]any{"WithinSLA": float64(2), "BreachedSLA": float64(0)},
				"filters": map[string]any{"month": ""},
			},
		},
		{
			name:     "unknown type",
			target:   "/api/kpi/nope",
			wantCode: http.StatusBadRequest,
			want:     map[string]any{"success": false, "error": "unknown kpi type: nope"},
		},
		{
			name:     "invalid month",
			target:   "/api/kpi/open_vs_closed?month=2024-13",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid trend window",
			target:   "/api/kpi/monthly_trend?months=0",
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, tt.target, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d, body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.want == nil {
				return
			}
			var got map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("unmarshal. error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-expected +got):\n%s", diff)
			}
		})
	}
}

func TestGlobalOverview(t *testing.T) {
	h, _ := setup(t)

	rec := do(h, http.MethodGet, "/api/kpi/global_overview", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Success bool `json:"success"`
		Data    struct {
			TotalClients int `json:"total_clients"`
			TotalCounts  struct {
				Status struct {
					Open int `json:"Open"`
					Clos int `json:"Clos"`
				} `json:"status"`
			} `json:"total_counts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal. error = %v", err)
	}
	if !got.Success || got.Data.TotalClients != 2 || got.Data.TotalCounts.Status.Open != 1 || got.Data.TotalCounts.Status.Clos != 1 {
		t.Errorf("global overview = %+v", got)
	}
}

func TestTracker(t *testing.T) {
	h, dbc := setup(t)

	rec := do(h, http.MethodGet, "/tracker?client=Acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
	}
	var rs []types.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &rs); err != nil {
		t.Fatalf("unmarshal. error = %v", err)
	}
	if diff := cmp.Diff([]string{"B1", "B2"}, []string{rs[0].BulletinID, rs[1].BulletinID}); diff != "" {
		t.Errorf("records. (-expected +got):\n%s", diff)
	}

	if rec := do(h, http.MethodGet, "/tracker?start_date=2024-1-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid start_date code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = do(h, http.MethodPost, "/tracker/rows/2", `{"status": "Clos (Traité)", "comment": "patched"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update code = %d, body = %s", rec.Code, rec.Body.String())
	}
	for _, id := range []uint{1, 2} {
		r, err := dbc.GetTrackingRow(id)
		if err != nil {
			t.Fatalf("get tracking row. error = %v", err)
		}
		if r.Status != types.StatusClosTraite || r.Comment != "patched" {
			t.Errorf("row %d = %+v", id, r)
		}
	}

	if rec := do(h, http.MethodPost, "/tracker/rows/2", `{"status": "Done"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec := do(h, http.MethodPost, "/tracker/rows/99", `{"comment": "x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing row code = %d, want %d", rec.Code, http.StatusNotFound)
	}

	if rec := do(h, http.MethodPatch, "/facts/B2", `{"produit_name": "FortiOS"}`); rec.Code != http.StatusOK {
		t.Errorf("update fact code = %d, body = %s", rec.Code, rec.Body.String())
	}

	if rec := do(h, http.MethodDelete, "/tracker/groups/B1/Acme", ""); rec.Code != http.StatusOK {
		t.Errorf("delete group code = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := do(h, http.MethodDelete, "/tracker/groups/B1/Acme", ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete missing group code = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if rec := do(h, http.MethodDelete, "/tracker/rows/3", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete row code = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestClientsAndProducts(t *testing.T) {
	h, _ := setup(t)

	rec := do(h, http.MethodPost, "/clients", `{"name": "Acme"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add client code = %d, body = %s", rec.Code, rec.Body.String())
	}
	var c types.Client
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("unmarshal. error = %v", err)
	}

	if rec := do(h, http.MethodPost, "/clients", `{"name": " "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty client name code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = do(h, http.MethodPost, "/products", `{"name": "FortiOS", "client_id": 1, "responsible_resolution": "Network Team"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add product code = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodGet, "/products?client_id=1", "")
	var ps []types.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &ps); err != nil {
		t.Fatalf("unmarshal. error = %v", err)
	}
	if diff := cmp.Diff([]types.Product{{ID: 1, Name: "FortiOS", ClientID: c.ID, ResponsibleResolution: "Network Team"}}, ps); diff != "" {
		t.Errorf("products. (-expected +got):\n%s", diff)
	}

	if rec := do(h, http.MethodPut, "/clients/1", `{"name": "Acme Corp"}`); rec.Code != http.StatusOK {
		t.Errorf("edit client code = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := do(h, http.MethodDelete, "/products/1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("remove product code = %d", rec.Code)
	}
	if rec := do(h, http.MethodDelete, "/clients/42", ""); rec.Code != http.StatusNotFound {
		t.Errorf("remove missing client code = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if rec := do(h, http.MethodGet, "/_health", ""); rec.Code != http.StatusOK {
		t.Errorf("health code = %d", rec.Code)
	}
}
