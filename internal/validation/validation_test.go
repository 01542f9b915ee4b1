package validation

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/FocuswithJustin/Lineage/core/errors"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"relative", "family.ged", nil},
		{"absolute", "/data/trees/family.ged", nil},
		{"stdin", "-", nil},
		{"unicode", "stammbaum/müller.ged", nil},
		{"empty", "", ErrEmptyPath},
		{"too long", strings.Repeat("a", MaxPathLength+1), ErrPathTooLong},
		{"null byte", "family\x00.ged", ErrInvalidCharacter},
		{"newline", "family\n.ged", ErrInvalidCharacter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePath(%q) = %v, want nil", tt.path, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePath(%q) = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		label   string
		wantErr bool
	}{
		{"smith", false},
		{"Smith family / 1850s", false},
		{"", true},
		{"   ", true},
		{"two\nlines", true},
		{strings.Repeat("x", MaxLabelLength), false},
		{strings.Repeat("x", MaxLabelLength+1), true},
	}
	for _, tt := range tests {
		err := ValidateLabel(tt.label)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateLabel(%q) = %v, wantErr %v", tt.label, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidLabel) {
			t.Errorf("ValidateLabel(%q) = %v, want ErrInvalidLabel", tt.label, err)
		}
	}
}

func TestDetectInput(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    InputType
	}{
		{"interchange", []byte("0 HEAD\n1 CHAR UTF-8\n0 TRLR\n"), InputInterchange},
		{"utf-8 bom", []byte("\xef\xbb\xbf0 HEAD\n"), InputInterchange},
		{"utf-16le", []byte{0xff, 0xfe, '0', 0, ' ', 0}, InputInterchange},
		{"utf-16be", []byte{0xfe, 0xff, 0, '0', 0, ' '}, InputInterchange},
		{"legacy 8-bit", []byte("0 @I1@ INDI\n1 NAME Fran\xe7ois /M\xfcller/\n"), InputInterchange},
		{"empty", nil, InputInterchange},
		{"bundle", []byte(`{"meta":{"schema_version":"1.0.0"}}`), InputBundle},
		{"indented bundle", []byte("\n  {\n  \"meta\": {}\n}"), InputBundle},
		{"xz", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00}, InputXZ},
		{"gzip", []byte{0x1f, 0x8b, 0x08}, InputGzip},
		{"zip", []byte{0x50, 0x4b, 0x03, 0x04, 0x14}, InputBinary},
		{"sqlite", []byte("SQLite format 3\x00"), InputBinary},
		{"binary", []byte{0x01, 0x02, 0x03, 0x04, 0x05}, InputBinary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectInput(bytes.NewReader(tt.content))
			if err != nil {
				t.Fatalf("DetectInput() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectInput() = %q, want %q", got, tt.want)
			}
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestDetectInputReadError(t *testing.T) {
	if _, err := DetectInput(failingReader{}); err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("DetectInput() error = %v", err)
	}
}

func TestCheckExtension(t *testing.T) {
	tests := []struct {
		path    string
		input   InputType
		wantErr bool
	}{
		{"family.ged", InputInterchange, false},
		{"family.json", InputBundle, false},
		{"family.ged.xz", InputXZ, false},
		{"family.GED.GZ", InputGzip, false},
		{"family.ged", InputXZ, true},
		{"family.xz", InputGzip, true},
		{"family.zip", InputBinary, true},
	}
	for _, tt := range tests {
		err := CheckExtension(tt.path, tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckExtension(%q, %s) = %v, wantErr %v", tt.path, tt.input, err, tt.wantErr)
		}
		var verr *apperrors.ValidationError
		if err != nil && !errors.As(err, &verr) {
			t.Errorf("CheckExtension(%q, %s) = %T, want *ValidationError", tt.path, tt.input, err)
		}
	}
}
