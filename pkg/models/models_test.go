package models

import "testing"

func TestFileFormatExtension(t *testing.T) {
	tests := []struct {
		format FileFormat
		want   string
	}{
		{FormatMP3, "mp3"},
		{FormatMP4, "mp4"},
		{FormatJPEG, "jpeg"},
		{FormatPNG, "png"},
		{FormatWEBP, "webp"},
	}

	for _, tt := range tests {
		if got := tt.format.Extension(); got != tt.want {
			t.Errorf("%s.Extension() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFileFormatIsAudio(t *testing.T) {
	if !FormatMP3.IsAudio() {
		t.Error("MP3 must be audio")
	}
	for _, f := range []FileFormat{FormatMP4, FormatJPEG, FormatPNG, FormatWEBP} {
		if f.IsAudio() {
			t.Errorf("%s.IsAudio() = true, want false", f)
		}
	}
}

func TestAttemptErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *AttemptError
		want string
	}{
		{
			name: "code takes priority",
			err:  &AttemptError{Provider: "cobalt", Code: "error.api.rate_limit", Text: "slow down"},
			want: "cobalt: error.api.rate_limit",
		},
		{
			name: "text without code",
			err:  &AttemptError{Provider: "cobalt", Text: "slow down"},
			want: "cobalt: slow down",
		},
		{
			name: "status fallback",
			err:  &AttemptError{Provider: "rapidapi", Status: 503},
			want: "rapidapi: status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
