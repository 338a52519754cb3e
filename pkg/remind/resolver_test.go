package remind

import (
	"testing"
	"time"
)

func TestFixedFormatResolver(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Kolkata")
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, loc)
	r := FixedFormatResolver{Now: func() time.Time { return now }}

	testcases := []struct {
		name    string
		text    string
		want    time.Time
		wantErr bool
	}{
		{name: "absolute-date-time", text: "2026-09-01 15:04", want: time.Date(2026, 9, 1, 15, 4, 0, 0, loc)},
		{name: "rfc3339", text: "2026-09-01T15:04:00+05:30", want: time.Date(2026, 9, 1, 15, 4, 0, 0, loc)},
		{name: "relative-minutes", text: "in 30 minutes", want: now.Add(30 * time.Minute)},
		{name: "relative-hours", text: "in 2 hours", want: now.Add(2 * time.Hour)},
		{name: "relative-days", text: "in 3 days", want: now.Add(3 * 24 * time.Hour)},
		{name: "clock-later-today", text: "18:30", want: time.Date(2026, 8, 30, 18, 30, 0, 0, loc)},
		{name: "clock-already-past-rolls-to-tomorrow", text: "09:00", want: time.Date(2026, 8, 31, 9, 0, 0, 0, loc)},
		{name: "invalid-clock", text: "25:99", wantErr: true},
		{name: "natural-language-rejected", text: "next tuesday after lunch", wantErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.ResolveTime(tc.text, loc)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
