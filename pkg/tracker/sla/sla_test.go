package sla_test

import (
	"testing"

	"github.com/MaineK00n/vulstrack/pkg/tracker/sla"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

func TestCalculate(t *testing.T) {
	type args struct {
		release        string
		treatment      string
		processingTime int
	}
	tests := []struct {
		name       string
		args       args
		wantAge    int
		wantStatus types.SLAStatus
	}{
		{
			name:       "on the deadline",
			args:       args{release: "2024-01-01", treatment: "2024-01-16", processingTime: 15},
			wantAge:    15,
			wantStatus: types.SLAWithin,
		},
		{
			name:       "one day late",
			args:       args{release: "2024-01-01", treatment: "2024-01-17", processingTime: 15},
			wantAge:    16,
			wantStatus: types.SLABreached,
		},
		{
			name:       "same day",
			args:       args{release: "2024-03-10", treatment: "2024-03-10", processingTime: 2},
			wantAge:    0,
			wantStatus: types.SLAWithin,
		},
		{
			name:       "across a leap day",
			args:       args{release: "2024-02-28", treatment: "2024-03-01", processingTime: 1},
			wantAge:    2,
			wantStatus: types.SLABreached,
		},
		{
			name:       "treated before release",
			args:       args{release: "2024-01-10", treatment: "2024-01-05", processingTime: 5},
			wantAge:    -5,
			wantStatus: types.SLAWithin,
		},
		{
			name:       "missing processing time",
			args:       args{release: "2024-01-01", treatment: "2024-01-02", processingTime: 0},
			wantAge:    1,
			wantStatus: types.SLABreached,
		},
		{
			name:       "invalid release",
			args:       args{release: "01/01/2024", treatment: "2024-01-16", processingTime: 15},
			wantAge:    0,
			wantStatus: types.SLAUnknown,
		},
		{
			name:       "empty treatment",
			args:       args{release: "2024-01-01", treatment: "", processingTime: 15},
			wantAge:    0,
			wantStatus: types.SLAUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotAge, gotStatus := sla.Calculate(tt.args.release, tt.args.treatment, tt.args.processingTime)
			if gotAge != tt.wantAge || gotStatus != tt.wantStatus {
				t.Errorf("Calculate() = (%d, %s), want (%d, %s)", gotAge, gotStatus, tt.wantAge, tt.wantStatus)
			}
		})
	}
}
