package bytesize

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected ByteSize
		wantErr  bool
	}{
		{"1024", 1024, false},
		{"1KB", 1000, false},
		{"1Ki", 1024, false},
		{"1KiB", 1024, false},
		{"4Mi", 4 * MiB, false},
		{"100MB", 100 * MB, false},
		{"2Gi", 2 * GiB, false},
		{"1.5Ki", 1536, false},
		{"  64 Ki  ", 64 * KiB, false},
		{"0", 0, false},
		{"", 0, true},
		{"abc", 0, true},
		{"12XB", 0, true},
		{"-5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Parse(%q) expected error, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %d, expected %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("1Ki")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if b != 1024 {
		t.Errorf("expected 1024, got %d", b)
	}

	if err := b.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for bogus input")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		size     ByteSize
		expected string
	}{
		{512, "512B"},
		{2 * KiB, "2.00KiB"},
		{3 * MiB, "3.00MiB"},
		{GiB, "1.00GiB"},
	}

	for _, tt := range tests {
		if got := tt.size.String(); got != tt.expected {
			t.Errorf("String(%d) = %q, expected %q", uint64(tt.size), got, tt.expected)
		}
	}
}
