package intake

import "testing"

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		input      string
		valid      bool
		normalized string
		reason     string
	}{
		{"01012345678", true, "01012345678", ""},
		{"010-1234-5678", true, "01012345678", ""},
		{" 010 1234 5678 ", true, "01012345678", ""},
		{"٠١٠١٢٣٤٥٦٧٨", true, "01012345678", ""},
		{"0101234567", false, "0101234567", "phone number must be exactly 11 digits, got 10"},
		{"010123456789", false, "010123456789", "phone number must be exactly 11 digits, got 12"},
		{"21012345678", false, "21012345678", "phone number must start with 01"},
		{"no digits", false, "", "phone number must be exactly 11 digits, got 0"},
	}
	for _, tt := range tests {
		got := ValidatePhone(tt.input)
		if got.Valid != tt.valid {
			t.Errorf("ValidatePhone(%q): expected valid=%v, got %v", tt.input, tt.valid, got.Valid)
		}
		if got.Normalized != tt.normalized {
			t.Errorf("ValidatePhone(%q): expected normalized %q, got %q", tt.input, tt.normalized, got.Normalized)
		}
		if got.Reason != tt.reason {
			t.Errorf("ValidatePhone(%q): expected reason %q, got %q", tt.input, tt.reason, got.Reason)
		}
	}
}

func TestExtractNationalID(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "29801011234567", "29801011234567"},
		{"embedded", "National ID: 29801011234567 Cairo", "29801011234567"},
		{"first of two", "29801011234567 30001011234568", "29801011234567"},
		{"too short", "2980101123456", ""},
		{"longer run skipped", "298010112345670 and 30001011234568", "30001011234568"},
		{"arabic digits", "الرقم ٢٩٨٠١٠١١٢٣٤٥٦٧", "29801011234567"},
		{"split by newline", "2980101\n1234567", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractNationalID(tt.text); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		want bool
	}{
		{"/cancel", "cancel", true},
		{"  /CANCEL  ", "cancel", true},
		{"/cancel@canvass_bot", "cancel", true},
		{"/start now", "start", true},
		{"cancel", "cancel", false},
		{"/cancelled", "cancel", false},
		{"", "start", false},
	}
	for _, tt := range tests {
		if got := isCommand(tt.text, tt.name); got != tt.want {
			t.Errorf("isCommand(%q, %q): expected %v, got %v", tt.text, tt.name, tt.want, got)
		}
	}
}
