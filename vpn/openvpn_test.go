package vpn

import "testing"

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantEvent string
	}{
		{
			name:      "initialization complete",
			line:      "2026-08-25 10:00:00 Initialization Sequence Completed",
			wantEvent: EventConnected,
		},
		{
			name:      "auth failure",
			line:      "AUTH: Received control message: AUTH_FAILED",
			wantEvent: EventAuthFailed,
		},
		{
			name:      "certificate verify error",
			line:      "VERIFY ERROR: depth=0, error=certificate has expired",
			wantEvent: EventCertVerifyFail,
		},
		{
			name:      "certificate verify failed variant",
			line:      "OpenSSL: error: certificate verify failed",
			wantEvent: EventCertVerifyFail,
		},
		{
			name:      "tls error",
			line:      "TLS Error: TLS key negotiation failed to occur within 60 seconds",
			wantEvent: EventTLSError,
		},
		{
			name:      "tls handshake failed variant",
			line:      "TLS Error: TLS handshake failed",
			wantEvent: EventTLSError,
		},
		{
			name:      "restart pause",
			line:      "Restart pause, 5 second(s)",
			wantEvent: EventReconnecting,
		},
		{
			name:      "process restart",
			line:      "SIGUSR1[soft,ping-restart] received, process restarting",
			wantEvent: EventClientRestart,
		},
		{
			name:      "ordinary log line",
			line:      "TUN/TAP device tun0 opened",
			wantEvent: "",
		},
		{
			name:      "empty line",
			line:      "",
			wantEvent: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, _ := classifyLine(tt.line)
			if event != tt.wantEvent {
				t.Errorf("classifyLine(%q) = %q, want %q", tt.line, event, tt.wantEvent)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "Disconnected"},
		{StatusConnecting, "Connecting..."},
		{StatusConnected, "Connected"},
		{StatusError, "Error"},
		{ConnectionStatus(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}
