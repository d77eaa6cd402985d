package audio

import (
	"strings"
	"testing"
)

func TestCheckFormat(t *testing.T) {
	want := Canonical(16000, EncodingPCM16)
	tests := []struct {
		name    string
		got     Format
		problem string
	}{
		{"match", want, ""},
		{"stereo", Format{SampleRate: 16000, Channels: 2, Encoding: EncodingPCM16}, "channels = 2"},
		{"rate", Canonical(8000, EncodingPCM16), "sample rate = 8000"},
		{"width", Canonical(16000, EncodingFloat32), "encoding = f32 (32 bits), want s16 (16 bits)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFormat(tt.got, want)
			if tt.problem == "" {
				if err != nil {
					t.Fatalf("CheckFormat: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.problem) {
				t.Errorf("err = %v, want mention of %q", err, tt.problem)
			}
		})
	}
}
