package domain

import "testing"

func TestLoopMode_String(t *testing.T) {
	tests := []struct {
		name string
		mode LoopMode
		want string
	}{
		{
			name: "LoopModeNone returns none",
			mode: LoopModeNone,
			want: "none",
		},
		{
			name: "LoopModeTrack returns track",
			mode: LoopModeTrack,
			want: "track",
		},
		{
			name: "LoopModeQueue returns queue",
			mode: LoopModeQueue,
			want: "queue",
		},
		{
			name: "unknown mode returns none",
			mode: LoopMode(99),
			want: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mode.String(); got != tt.want {
				t.Errorf("LoopMode.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    LoopMode
		wantErr bool
	}{
		{
			name:  "none",
			input: "none",
			want:  LoopModeNone,
		},
		{
			name:  "track",
			input: "track",
			want:  LoopModeTrack,
		},
		{
			name:  "queue",
			input: "queue",
			want:  LoopModeQueue,
		},
		{
			name:    "unknown mode is rejected",
			input:   "shuffle",
			wantErr: true,
		},
		{
			name:    "empty string is rejected",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLoopMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseLoopMode(%q) error = nil, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLoopMode(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseLoopMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
