package netq

import (
	"bufio"
	"strings"
	"testing"
)

func TestReadReply(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode int
		wantMsg  string
		wantErr  bool
	}{
		{
			name:     "single line",
			input:    "220 Welcome\r\n",
			wantCode: 220,
			wantMsg:  "Welcome",
		},
		{
			name:     "multi line",
			input:    "220-Welcome\r\n220-Second line\r\n220 Ready\r\n",
			wantCode: 220,
			wantMsg:  "Welcome\nSecond line\nReady",
		},
		{
			name:     "bare code",
			input:    "250\r\n",
			wantCode: 250,
			wantMsg:  "",
		},
		{
			name:     "error reply",
			input:    "550 No such file\r\n",
			wantCode: 550,
			wantMsg:  "No such file",
		},
		{
			name:    "non-numeric code",
			input:   "abc hello\r\n",
			wantErr: true,
		},
		{
			name:    "too short",
			input:   "2\r\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := readReply(bufio.NewReader(strings.NewReader(tt.input)))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if reply.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", reply.Code, tt.wantCode)
			}
			if reply.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", reply.Message, tt.wantMsg)
			}
		})
	}
}

func TestReplyRangeHelpers(t *testing.T) {
	r := &Reply{Code: 226}
	if !r.Is2xx() || r.Is3xx() || r.Is4xx() || r.Is5xx() {
		t.Errorf("226 classified wrong: 2xx=%v 3xx=%v 4xx=%v 5xx=%v",
			r.Is2xx(), r.Is3xx(), r.Is4xx(), r.Is5xx())
	}

	r = &Reply{Code: 550}
	if !r.Is5xx() || r.Is2xx() {
		t.Errorf("550 classified wrong: 2xx=%v 5xx=%v", r.Is2xx(), r.Is5xx())
	}
}
