package vpn

import (
	"strings"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantValid bool
		wantError string
		wantWarns []string
	}{
		{
			name: "valid certificate config",
			content: "client\nremote vpn.example.com 1194\n" +
				"verify-x509-name vpn.example.com name\n<cert>\nMIIB\n</cert>\n",
			wantValid: true,
		},
		{
			name:      "valid user pass config",
			content:   "client\nremote vpn.example.com 1194\nauth-user-pass\nverify-x509-name srv name\n",
			wantValid: true,
		},
		{
			name:      "valid cert file reference",
			content:   "client\nremote vpn.example.com\ncert client.crt\nverify-x509-name srv name\n",
			wantValid: true,
		},
		{
			name:      "empty config",
			content:   "",
			wantValid: false,
			wantError: "Configuration missing remote server specification",
		},
		{
			name:      "missing remote",
			content:   "client\n<cert>\n</cert>\n",
			wantValid: false,
			wantError: "Configuration missing remote server specification",
		},
		{
			name:      "missing client mode",
			content:   "remote vpn.example.com 1194\n<cert>\n</cert>\n",
			wantValid: false,
			wantError: "Configuration not set for client mode",
		},
		{
			name:      "missing auth material",
			content:   "client\nremote vpn.example.com 1194\n",
			wantValid: false,
			wantError: "Configuration missing authentication credentials",
		},
		{
			name:      "cipher none warns",
			content:   "client\nremote x\nauth-user-pass\ncipher none\nverify-x509-name x name\n",
			wantValid: true,
			wantWarns: []string{"Warning: No encryption cipher specified"},
		},
		{
			name:      "auth none warns",
			content:   "client\nremote x\nauth-user-pass\nauth none\nverify-x509-name x name\n",
			wantValid: true,
			wantWarns: []string{"Warning: No authentication algorithm specified"},
		},
		{
			name:      "missing x509 verification warns",
			content:   "client\nremote x\nauth-user-pass\n",
			wantValid: true,
			wantWarns: []string{"Warning: X.509 name verification not enabled"},
		},
		{
			name:      "multiple warnings in detection order",
			content:   "client\nremote x\nauth-user-pass\ncipher none\nauth none\n",
			wantValid: true,
			wantWarns: []string{
				"Warning: No encryption cipher specified",
				"Warning: No authentication algorithm specified",
				"Warning: X.509 name verification not enabled",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateConfig(tt.content)
			if result.IsValid != tt.wantValid {
				t.Fatalf("IsValid = %v, want %v (error %q)", result.IsValid, tt.wantValid, result.ErrorMessage)
			}
			if result.ErrorMessage != tt.wantError {
				t.Errorf("ErrorMessage = %q, want %q", result.ErrorMessage, tt.wantError)
			}
			if len(result.Warnings) != len(tt.wantWarns) {
				t.Fatalf("Warnings = %v, want %v", result.Warnings, tt.wantWarns)
			}
			for i, warn := range tt.wantWarns {
				if result.Warnings[i] != warn {
					t.Errorf("Warnings[%d] = %q, want %q", i, result.Warnings[i], warn)
				}
			}
		})
	}
}

func TestValidateConfigDeterministic(t *testing.T) {
	content := "client\nremote vpn.example.com 1194\nauth-user-pass\n"
	first := ValidateConfig(content)
	second := ValidateConfig(content)
	if first.IsValid != second.IsValid ||
		first.ErrorMessage != second.ErrorMessage ||
		strings.Join(first.Warnings, "|") != strings.Join(second.Warnings, "|") {
		t.Errorf("results differ between identical calls: %+v vs %+v", first, second)
	}
}
