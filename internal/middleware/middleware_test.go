package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"file-server/internal/metrics"
)

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newStatusRecorder(w)

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected default status code 200, got %d", rw.statusCode)
	}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("Status code should not change after first WriteHeader, got %d", rw.statusCode)
	}

	n, err := rw.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if rw.bytesWritten != 5 {
		t.Errorf("Expected bytesWritten 5, got %d", rw.bytesWritten)
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("Underlying recorder code = %d, want 404", w.Code)
	}
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		config        LoggingConfig
		expectLogging bool
	}{
		{
			name:          "Logs search requests",
			path:          "/api/filesystem/search",
			config:        DefaultLoggingConfig(),
			expectLogging: true,
		},
		{
			name:          "Skips metrics endpoint",
			path:          "/metrics",
			config:        DefaultLoggingConfig(),
			expectLogging: false,
		},
		{
			name:          "Logs health checks when enabled",
			path:          "/health",
			config:        LoggingConfig{LogHealthChecks: true},
			expectLogging: true,
		},
		{
			name:          "Skips health checks when disabled",
			path:          "/livez",
			config:        LoggingConfig{LogHealthChecks: false},
			expectLogging: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lines []string
			config := tt.config
			config.Output = func(line string) { lines = append(lines, line) }

			handler := Logger(config)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}
			if got := len(lines) == 1; got != tt.expectLogging {
				t.Errorf("logged = %v (%q), want %v", got, lines, tt.expectLogging)
			}
		})
	}
}

func TestLoggerLineFormat(t *testing.T) {
	var line string
	config := DefaultLoggingConfig()
	config.Output = func(l string) { line = l }

	handler := Logger(config)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("12345"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/filesystem/search?q=report", http.NoBody)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	req.Header.Set("User-Agent", "curl/8.0 (linux)")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	fields := strings.Fields(line)
	if len(fields) < 10 {
		t.Fatalf("unexpected log line %q", line)
	}
	want := []string{"10.0.0.1", "GET", "/api/filesystem/search", "q=report", "418", "5"}
	for i, w := range want {
		if fields[i+2] != w {
			t.Errorf("field %d = %q, want %q (line %q)", i+2, fields[i+2], w, line)
		}
	}
	if !strings.HasSuffix(line, `- "curl/8.0 (linux)"`) {
		t.Errorf("line should end with encoding and quoted user agent: %q", line)
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"cr\rlf", "cr lf"},
		{"null\x00byte", "nullbyte"},
		{"\x1b[31mred", "[31mred"},
		{"tab\tkept", "tab\tkept"},
		{"bell\x07", "bell"},
	}

	for _, tt := range tests {
		if got := sanitizeLogField(tt.input); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "9.9.9.9:1234", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "3.3.3.3"}, "9.9.9.9:1234", "3.3.3.3"},
		{"remote addr", nil, "9.9.9.9:1234", "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompressionMiddleware(t *testing.T) {
	tests := []struct {
		name              string
		responseBody      string
		contentType       string
		acceptEncoding    string
		expectCompression bool
	}{
		{
			name:              "Compresses large JSON",
			responseBody:      strings.Repeat(`{"path":"/data/report.pdf"},`, 100),
			contentType:       "application/json",
			acceptEncoding:    "gzip, deflate",
			expectCompression: true,
		},
		{
			name:              "Doesn't compress small responses",
			responseBody:      `{"status":"ok"}`,
			contentType:       "application/json",
			acceptEncoding:    "gzip",
			expectCompression: false,
		},
		{
			name:              "Doesn't compress other types",
			responseBody:      strings.Repeat("data", 500),
			contentType:       "application/octet-stream",
			acceptEncoding:    "gzip",
			expectCompression: false,
		},
		{
			name:              "Respects client without gzip support",
			responseBody:      strings.Repeat("data", 500),
			contentType:       "application/json",
			acceptEncoding:    "",
			expectCompression: false,
		},
		{
			name:              "Respects gzip refused with q=0",
			responseBody:      strings.Repeat("data", 500),
			contentType:       "application/json",
			acceptEncoding:    "gzip;q=0",
			expectCompression: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType+"; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				// Several small writes exercise the buffering path.
				for chunk := range strings.SplitSeq(tt.responseBody, ",") {
					io.WriteString(w, chunk+",")
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/filesystem/search", http.NoBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			compressed := w.Header().Get("Content-Encoding") == "gzip"
			if compressed != tt.expectCompression {
				t.Fatalf("compressed = %v, want %v", compressed, tt.expectCompression)
			}

			var body []byte
			if compressed {
				reader, err := gzip.NewReader(w.Body)
				if err != nil {
					t.Fatalf("gzip.NewReader() error = %v", err)
				}
				body, err = io.ReadAll(reader)
				if err != nil {
					t.Fatalf("reading gzip body: %v", err)
				}
			} else {
				body = w.Body.Bytes()
			}

			wantBody := ""
			for chunk := range strings.SplitSeq(tt.responseBody, ",") {
				wantBody += chunk + ","
			}
			if string(body) != wantBody {
				t.Errorf("body length %d, want %d", len(body), len(wantBody))
			}
		})
	}
}

func TestCompressionPreservesStatusCode(t *testing.T) {
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"unavailable"}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if w.Body.String() != `{"error":"unavailable"}` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/api/test/items/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/test/items/{name}", "201")
	before := testutil.ToFloat64(counter)

	for _, name := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/test/items/"+name, http.NoBody))
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", w.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("counter delta = %v, want 3", got)
	}
}

func TestMetricsMiddlewareSkipPaths(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if got := testutil.ToFloat64(counter) - before; got != 0 {
		t.Errorf("health check recorded %v requests, want 0", got)
	}
}

func TestRouteLabelUnmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/no/such/path", http.NoBody)
	if got := routeLabel(req); got != unmatchedRoute {
		t.Errorf("routeLabel() = %q, want %q", got, unmatchedRoute)
	}
}

func TestAcceptsGzip(t *testing.T) {
	tests := map[string]bool{
		"":                   false,
		"gzip":               true,
		"deflate, gzip":      true,
		"GZIP":               true,
		"br;q=1.0, gzip;q=0": false,
		"gzip; q=0.5":        true,
		"identity":           false,
	}
	for header, want := range tests {
		if got := acceptsGzip(header); got != want {
			t.Errorf("acceptsGzip(%q) = %v, want %v", header, got, want)
		}
	}
}
