package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"housefin/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
		wantErr   bool
	}{
		{
			name:      "both values provided",
			query:     url.Values{"year": {"2024"}, "month": {"12"}},
			wantYear:  2024,
			wantMonth: 12,
		},
		{
			name:     "only year",
			query:    url.Values{"year": {"2023"}},
			wantYear: 2023,
		},
		{
			name:      "only month",
			query:     url.Values{"month": {"5"}},
			wantMonth: 5,
		},
		{
			name:  "empty means current",
			query: url.Values{},
		},
		{
			name:    "month out of range",
			query:   url.Values{"month": {"13"}},
			wantErr: true,
		},
		{
			name:    "not a number",
			query:   url.Values{"year": {"abc"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseMonthParams(tt.query)
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMonthParams() error = %v", err)
			}
			if result.Year != tt.wantYear {
				t.Errorf("Year = %d, want %d", result.Year, tt.wantYear)
			}
			if result.Month != tt.wantMonth {
				t.Errorf("Month = %d, want %d", result.Month, tt.wantMonth)
			}
		})
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"username": "alice", "amount": 42.50, "description": "rice"}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if got := parser.Get("username"); got != "alice" {
		t.Errorf("Get('username') = %q, want 'alice'", got)
	}
	// Numbers keep their literal text.
	if got := parser.Get("amount"); got != "42.50" {
		t.Errorf("Get('amount') = %q, want '42.50'", got)
	}
	if got := parser.Get("missing"); got != "" {
		t.Errorf("Get('missing') = %q, want empty", got)
	}
}

func TestRequestBodyParser_JSONWithoutContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":"x"}`))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() || parser.Get("name") != "x" {
		t.Error("expected body to be parsed as JSON")
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "username=bob&full_name=Bob+Smith&password=+spaced+"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if got := parser.Get("full_name"); got != "Bob Smith" {
		t.Errorf("Get('full_name') = %q, want 'Bob Smith'", got)
	}
	if got := parser.Password("password"); got != " spaced " {
		t.Errorf("Password('password') = %q, want ' spaced '", got)
	}
}

func TestRequestBodyParser_GetFirst(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("product_name=milk&description="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parser.GetFirst("description", "product_name"); got != "milk" {
		t.Errorf("GetFirst() = %q, want 'milk'", got)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"amount": `))
	req.Header.Set("Content-Type", "application/json")

	err := NewRequestBodyParser(httptest.NewRecorder(), req).Parse()
	if !errors.Is(err, ErrBadBody) {
		t.Fatalf("expected ErrBadBody, got %v", err)
	}
	if statusFor(err) != http.StatusBadRequest {
		t.Errorf("statusFor() = %d, want 400", statusFor(err))
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := "description=" + strings.Repeat("a", maxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))

	if err := NewRequestBodyParser(httptest.NewRecorder(), req).Parse(); !errors.Is(err, ErrBadBody) {
		t.Fatalf("expected ErrBadBody for oversized body, got %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  rice  ", "rice"},
		{"a\x00b\x07c", "abc"},
		{"line\nbreak", "line\nbreak"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
