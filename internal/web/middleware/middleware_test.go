package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/grapher/internal/config"
)

func echoRemoteAddr() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.RemoteAddr))
	})
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted config.ProxyList
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "untrusted proxy headers ignored",
			trusted: config.MustParseProxies("10.0.0.0/8"),
			remote:  "203.0.113.5:4000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "203.0.113.5:4000",
		},
		{
			name:    "trusted proxy X-Real-IP",
			trusted: config.MustParseProxies("10.0.0.0/8"),
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "1.2.3.4",
		},
		{
			name:    "trusted single address X-Forwarded-For first hop",
			trusted: config.MustParseProxies("127.0.0.1"),
			remote:  "127.0.0.1:4000",
			headers: map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"},
			want:    "5.6.7.8",
		},
		{
			name:    "invalid header keeps remote",
			trusted: config.MustParseProxies("10.0.0.0/8"),
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "not-an-ip"},
			want:    "10.1.2.3:4000",
		},
		{
			name:    "no trusted proxies",
			trusted: nil,
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "10.1.2.3:4000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			TrustedRealIP(tt.trusted)(echoRemoteAddr()).ServeHTTP(rec, req)

			if got := rec.Body.String(); got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}

	tests := []struct {
		name     string
		cfg      config.SecurityConfig
		headers  map[string]string
		status   int
		wantCode string
	}{
		{name: "disabled", cfg: config.SecurityConfig{}, status: http.StatusOK},
		{name: "missing key", cfg: cfg, status: http.StatusUnauthorized, wantCode: CodeMissingKey},
		{name: "invalid key", cfg: cfg, headers: map[string]string{"X-API-Key": "nope"}, status: http.StatusForbidden, wantCode: CodeInvalidKey},
		{name: "prefix of valid key", cfg: cfg, headers: map[string]string{"X-API-Key": "k"}, status: http.StatusForbidden, wantCode: CodeInvalidKey},
		{name: "valid key", cfg: cfg, headers: map[string]string{"X-API-Key": "k2"}, status: http.StatusOK},
		{name: "bearer token", cfg: cfg, headers: map[string]string{"Authorization": "Bearer k1"}, status: http.StatusOK},
		{name: "other scheme", cfg: cfg, headers: map[string]string{"Authorization": "Basic k1"}, status: http.StatusUnauthorized, wantCode: CodeMissingKey},
		{name: "no keys configured", cfg: config.SecurityConfig{RequireAPIKey: true}, headers: map[string]string{"X-API-Key": "k1"}, status: http.StatusForbidden, wantCode: CodeInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/datasets", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			APIKeyAuth(tt.cfg)(echoRemoteAddr()).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.wantCode == "" {
				return
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
			if tt.status == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}

func TestLogger_CapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("short"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "short" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
