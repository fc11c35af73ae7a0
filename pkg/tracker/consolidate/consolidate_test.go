package consolidate_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/MaineK00n/vulstrack/pkg/tracker/consolidate"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

func fact(bulletin, cve, release string) *types.Fact {
	return &types.Fact{
		BulletinID:     bulletin,
		CVEID:          cve,
		Product:        "Product " + bulletin,
		ReleaseDate:    release,
		Risk:           "Important",
		RiskLevel:      "Fort",
		ProcessingTime: 15,
	}
}

func row(id uint, bulletin, cve, client string, status types.Status, date, comment string, f *types.Fact) types.JoinedRow {
	return types.JoinedRow{
		TrackingRow: types.TrackingRow{
			ID:              id,
			BulletinID:      bulletin,
			CVEID:           cve,
			Client:          client,
			Status:          status,
			ResponsibleTeam: "SOC Team",
			TreatmentDate:   date,
			Comment:         comment,
		},
		Fact: f,
	}
}

func TestResolveStatus(t *testing.T) {
	f := fact("B1", "CVE-1", "2024-01-01")
	tests := []struct {
		name string
		rows []types.JoinedRow
		want types.Status
	}{
		{
			name: "open beats wip and closed",
			rows: []types.JoinedRow{
				row(1, "B1", "CVE-1", "Acme", types.StatusWIP, "2024-01-02", "", f),
				row(2, "B1", "CVE-2", "Acme", types.StatusClos, "2024-01-03", "", f),
				row(3, "B1", "CVE-3", "Acme", types.StatusOpen, "2024-01-01", "", f),
			},
			want: types.StatusOpen,
		},
		{
			name: "nok beats closed",
			rows: []types.JoinedRow{
				row(1, "B1", "CVE-1", "Acme", types.StatusClosTraite, "2024-01-02", "", f),
				row(2, "B1", "CVE-2", "Acme", types.StatusNOK, "2024-01-01", "", f),
			},
			want: types.StatusNOK,
		},
		{
			name: "closed variants, latest treatment wins",
			rows: []types.JoinedRow{
				row(1, "B1", "CVE-1", "Acme", types.StatusClosTraite, "2024-01-05", "", f),
				row(2, "B1", "CVE-2", "Acme", types.StatusClosNonConcerne, "2024-01-02", "", f),
			},
			want: types.StatusClosTraite,
		},
		{
			name: "closed variants, same date, highest id wins",
			rows: []types.JoinedRow{
				row(4, "B1", "CVE-1", "Acme", types.StatusClosPatchCumulative, "2024-01-05", "", f),
				row(2, "B1", "CVE-2", "Acme", types.StatusClos, "2024-01-05", "", f),
			},
			want: types.StatusClosPatchCumulative,
		},
		{
			name: "unknown status ranks last",
			rows: []types.JoinedRow{
				row(1, "B1", "CVE-1", "Acme", types.Status("Escalated"), "2024-01-05", "", f),
				row(2, "B1", "CVE-2", "Acme", types.StatusClos, "2024-01-02", "", f),
			},
			want: types.StatusClos,
		},
		{
			name: "empty",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := consolidate.ResolveStatus(tt.rows); got != tt.want {
				t.Errorf("ResolveStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveTreatmentDateAndComment(t *testing.T) {
	f := fact("B1", "CVE-1", "2024-01-01")
	tests := []struct {
		name        string
		rows        []types.JoinedRow
		wantDate    string
		wantComment string
	}{
		{
			name: "open resolution ignores later closed rows",
			rows: []types.JoinedRow{
				row(1, "B1", "CVE-1", "Acme", types.StatusClosTraite, "2024-03-01", "patched", f),
				row(2, "B1", "CVE-2", "Acme", types.StatusOpen, "2024-02-20", "mail sent", f),
			},
			wantDate:    "2024-02-20",
			wantComment: "mail sent",
		},
		{
			name: "latest non closed row sets the date, resolved status sets the comment",
			rows: []types.JoinedRow{
				row(1, "B1", "CVE-1", "Acme", types.StatusWIP, "2024-02-10", "wip 1", f),
				row(2, "B1", "CVE-2", "Acme", types.StatusPending, "2024-02-25", "pending", f),
				row(3, "B1", "CVE-3", "Acme", types.StatusWIP, "2024-02-15", "wip 2", f),
			},
			wantDate:    "2024-02-25",
			wantComment: "wip 2",
		},
		{
			name: "closed resolution takes the latest closed row",
			rows: []types.JoinedRow{
				row(1, "B1", "CVE-1", "Acme", types.StatusClos, "2024-03-10", "closed late", f),
				row(2, "B1", "CVE-2", "Acme", types.StatusClosTraite, "2024-03-01", "closed early", f),
			},
			wantDate:    "2024-03-10",
			wantComment: "closed late",
		},
		{
			name: "same date, higher id wins",
			rows: []types.JoinedRow{
				row(7, "B1", "CVE-1", "Acme", types.StatusOpen, "2024-03-01", "second", f),
				row(3, "B1", "CVE-2", "Acme", types.StatusOpen, "2024-03-01", "first", f),
			},
			wantDate:    "2024-03-01",
			wantComment: "second",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := consolidate.ResolveStatus(tt.rows)
			if got := consolidate.ResolveTreatmentDate(tt.rows, status); got != tt.wantDate {
				t.Errorf("ResolveTreatmentDate() = %q, want %q", got, tt.wantDate)
			}
			if got := consolidate.ResolveComment(tt.rows, status); got != tt.wantComment {
				t.Errorf("ResolveComment() = %q, want %q", got, tt.wantComment)
			}

			reversed := make([]types.JoinedRow, 0, len(tt.rows))
			for i := len(tt.rows) - 1; i >= 0; i-- {
				reversed = append(reversed, tt.rows[i])
			}
			if got := consolidate.ResolveComment(reversed, consolidate.ResolveStatus(reversed)); got != tt.wantComment {
				t.Errorf("ResolveComment() depends on row order. got %q, want %q", got, tt.wantComment)
			}
		})
	}
}

func TestConsolidate(t *testing.T) {
	b1 := fact("B1", "CVE-1", "2024-02-15")
	b1c2 := fact("B1", "CVE-2", "2024-02-15")
	b2 := fact("B2", "CVE-3", "2024-03-01")

	tests := []struct {
		name     string
		rows     []types.JoinedRow
		want     []types.Record
		wantErrs []types.DataIntegrityError
	}{
		{
			name: "one record per bulletin and client",
			rows: []types.JoinedRow{
				row(1, "B1", "CVE-1", "Acme", types.StatusClosTraite, "2024-03-01", "patched", b1),
				row(2, "B1", "CVE-2", "Acme", types.StatusOpen, "2024-02-20", "mail sent", b1c2),
			},
			want: []types.Record{
				{
					ID:              1,
					BulletinID:      "B1",
					Client:          "Acme",
					CVEs:            "CVE-1, CVE-2",
					CVEIDs:          []string{"CVE-1", "CVE-2"},
					Product:         "Product B1",
					ReleaseDate:     "2024-02-15",
					Risk:            "Important",
					RiskLevel:       "Fort",
					ProcessingTime:  15,
					Status:          types.StatusOpen,
					ResponsibleTeam: "SOC Team",
					TreatmentDate:   "2024-02-20",
					Comment:         "mail sent",
					AgeDays:         5,
					SLA:             types.SLAWithin,
				},
			},
		},
		{
			name: "ordered by release date desc, bulletin, client",
			rows: []types.JoinedRow{
				row(1, "B1", "CVE-1", "Globex", types.StatusOpen, "2024-02-15", "", b1),
				row(2, "B1", "CVE-1", "Acme", types.StatusOpen, "2024-02-15", "", b1),
				row(3, "B2", "CVE-3", "Acme", types.StatusClos, "2024-04-01", "", b2),
			},
			want: []types.Record{
				{ID: 3, BulletinID: "B2", Client: "Acme", CVEs: "CVE-3", CVEIDs: []string{"CVE-3"}, Product: "Product B2", ReleaseDate: "2024-03-01", Risk: "Important", RiskLevel: "Fort", ProcessingTime: 15, Status: types.StatusClos, ResponsibleTeam: "SOC Team", TreatmentDate: "2024-04-01", AgeDays: 31, SLA: types.SLABreached},
				{ID: 2, BulletinID: "B1", Client: "Acme", CVEs: "CVE-1", CVEIDs: []string{"CVE-1"}, Product: "Product B1", ReleaseDate: "2024-02-15", Risk: "Important", RiskLevel: "Fort", ProcessingTime: 15, Status: types.StatusOpen, ResponsibleTeam: "SOC Team", TreatmentDate: "2024-02-15", AgeDays: 0, SLA: types.SLAWithin},
				{ID: 1, BulletinID: "B1", Client: "Globex", CVEs: "CVE-1", CVEIDs: []string{"CVE-1"}, Product: "Product B1", ReleaseDate: "2024-02-15", Risk: "Important", RiskLevel: "Fort", ProcessingTime: 15, Status: types.StatusOpen, ResponsibleTeam: "SOC Team", TreatmentDate: "2024-02-15", AgeDays: 0, SLA: types.SLAWithin},
			},
		},
		{
			name: "dangling rows are reported and skipped",
			rows: []types.JoinedRow{
				row(1, "B1", "CVE-1", "Acme", types.StatusWIP, "2024-02-20", "", b1),
				row(2, "B1", "CVE-9", "Acme", types.StatusOpen, "2024-02-20", "", nil),
				row(3, "B9", "CVE-9", "Acme", types.StatusOpen, "2024-02-20", "", nil),
			},
			want: []types.Record{
				{ID: 1, BulletinID: "B1", Client: "Acme", CVEs: "CVE-1", CVEIDs: []string{"CVE-1"}, Product: "Product B1", ReleaseDate: "2024-02-15", Risk: "Important", RiskLevel: "Fort", ProcessingTime: 15, Status: types.StatusWIP, ResponsibleTeam: "SOC Team", TreatmentDate: "2024-02-20", AgeDays: 5, SLA: types.SLAWithin},
			},
			wantErrs: []types.DataIntegrityError{
				{BulletinID: "B1", Client: "Acme", CVEs: []string{"CVE-9"}},
				{BulletinID: "B9", Client: "Acme", CVEs: []string{"CVE-9"}},
			},
		},
		{
			name: "no rows",
			want: []types.Record{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := consolidate.Consolidate(tt.rows)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Consolidate(). (-expected +got):\n%s", diff)
			}

			gotErrs := make([]types.DataIntegrityError, 0, len(errs))
			for _, err := range errs {
				var ie *types.DataIntegrityError
				if !errors.As(err, &ie) {
					t.Fatalf("Consolidate() unexpected error type: %v", err)
				}
				gotErrs = append(gotErrs, *ie)
			}
			if len(tt.wantErrs) == 0 {
				tt.wantErrs = []types.DataIntegrityError{}
			}
			if diff := cmp.Diff(tt.wantErrs, gotErrs); diff != "" {
				t.Errorf("Consolidate() errors. (-expected +got):\n%s", diff)
			}
		})
	}
}

func TestGroupRows(t *testing.T) {
	f := fact("B1", "CVE-1", "2024-01-01")
	rows := []types.JoinedRow{
		row(5, "B1", "CVE-2", "Acme", types.StatusOpen, "2024-01-02", "", f),
		row(3, "B1", "CVE-1", "Acme", types.StatusOpen, "2024-01-02", "", f),
		row(4, "B1", "CVE-1", "Globex", types.StatusOpen, "2024-01-02", "", f),
	}

	gs, errs := consolidate.GroupRows(rows)
	if len(errs) != 0 {
		t.Fatalf("GroupRows() errs = %v", errs)
	}

	type summary struct {
		Bulletin, Client string
		IDs              []uint
	}
	got := make([]summary, 0, len(gs))
	for _, g := range gs {
		s := summary{Bulletin: g.BulletinID, Client: g.Client}
		for _, r := range g.Rows {
			s.IDs = append(s.IDs, r.ID)
		}
		got = append(got, s)
	}
	want := []summary{
		{Bulletin: "B1", Client: "Acme", IDs: []uint{3, 5}},
		{Bulletin: "B1", Client: "Globex", IDs: []uint{4}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GroupRows(). (-expected +got):\n%s", diff)
	}
}
