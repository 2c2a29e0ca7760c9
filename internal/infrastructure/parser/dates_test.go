package parser

import (
	"testing"
	"time"
)

func TestResolveDateOrder(t *testing.T) {
	t.Parallel()

	structured := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   dateCandidates
		want *time.Time
	}{
		{
			name: "published wins",
			in: dateCandidates{
				Published: "Mon, 20 Jan 2025 10:00:00 +0000",
				Updated:   "2025-01-19T00:00:00Z",
			},
			want: ptr(time.Date(2025, time.January, 20, 10, 0, 0, 0, time.UTC)),
		},
		{
			name: "updated when published is garbage",
			in: dateCandidates{
				Published: "not a date",
				Updated:   "2025-01-19T08:30:00Z",
			},
			want: ptr(time.Date(2025, time.January, 19, 8, 30, 0, 0, time.UTC)),
		},
		{
			name: "created after updated",
			in:   dateCandidates{Created: "2025-01-18"},
			want: ptr(time.Date(2025, time.January, 18, 0, 0, 0, 0, time.UTC)),
		},
		{
			name: "structured fallback",
			in: dateCandidates{
				Published: "???",
				Parsed:    []*time.Time{nil, &structured},
			},
			want: &structured,
		},
		{
			name: "nothing parsable",
			in:   dateCandidates{Published: "soon", Parsed: []*time.Time{nil}},
			want: nil,
		},
	}

	for _, tt := range tests {
		got := resolveDate(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Fatalf("%s: expected nil, got %v", tt.name, got)
		case tt.want != nil && got == nil:
			t.Fatalf("%s: expected %v, got nil", tt.name, tt.want)
		case tt.want != nil && !got.Equal(*tt.want):
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func ptr(t time.Time) *time.Time { return &t }
