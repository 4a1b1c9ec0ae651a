package amount

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  int64
		err   error
	}{
		{"10", 10, nil},
		{" +7 ", 7, nil},
		{"-5", -5, nil},
		{"3.00", 3, nil},
		{"3.5", 0, ErrFractional},
		{"", 0, ErrInvalidAmount},
		{"-", 0, ErrInvalidAmount},
		{"1e3", 0, ErrInvalidAmount},
		{"4.", 0, ErrInvalidAmount},
		{"99999999999999999999", 0, ErrInvalidAmount},
	}
	for _, tt := range tests {
		got, err := Parse(tt.input)
		if err != tt.err {
			t.Fatalf("Parse(%q) error = %v, want %v", tt.input, err, tt.err)
		}
		if got != tt.want {
			t.Fatalf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestFormatAndHelpers(t *testing.T) {
	if Format(5) != "+5" || Format(-5) != "-5" || Format(0) != "0" {
		t.Fatalf("unexpected format output")
	}
	if Abs(-4) != 4 || Abs(4) != 4 {
		t.Fatalf("unexpected abs")
	}
	if Sign(-9) != -1 || Sign(0) != 0 || Sign(2) != 1 {
		t.Fatalf("unexpected sign")
	}
}
