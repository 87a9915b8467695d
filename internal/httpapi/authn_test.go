package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"kenoadmin.org/internal/auth"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if (err == nil) != tc.ok || got != tc.token {
			t.Fatalf("header %q: got %q err=%v", tc.header, got, err)
		}
	}
}

func TestCredentialsPreferBearer(t *testing.T) {
	api := &API{cookies: DefaultCookies("keno")}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer jwt-token")
	req.AddCookie(&http.Cookie{Name: "a_session_keno", Value: "cookie-secret"})
	if creds := api.credentialsFromRequest(req); creds.JWT != "jwt-token" || creds.Session != "" {
		t.Fatalf("expected bearer credentials, got %+v", creds)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "a_session_keno_legacy", Value: "legacy-secret"})
	if creds := api.credentialsFromRequest(req); creds.Session != "legacy-secret" {
		t.Fatalf("expected legacy cookie secret, got %+v", creds)
	}
}

func TestEnsurePermissions(t *testing.T) {
	api := &API{}
	payload := auth.Payload{Permissions: []string{auth.PermStaffRead}}

	cases := []struct {
		name    string
		payload *auth.Payload
		keys    []string
		status  int
		code    string
	}{
		{"pending", nil, []string{auth.PermStaffRead}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"held", &payload, []string{auth.PermStaffRead}, http.StatusOK, ""},
		{"any of", &payload, []string{auth.PermRolesManage, auth.PermStaffRead}, http.StatusOK, ""},
		{"missing", &payload, []string{auth.PermRolesManage}, http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/roles", nil)
		if tc.payload != nil {
			req = req.WithContext(auth.ContextWithPayload(req.Context(), *tc.payload))
		}
		rr := httptest.NewRecorder()
		if ok := api.ensurePermissions(rr, req, tc.keys...); ok != (tc.status == http.StatusOK) {
			t.Fatalf("%s: unexpected result %v", tc.name, ok)
		}
		if tc.status == http.StatusOK {
			continue
		}
		if rr.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rr.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if body["code"] != tc.code {
			t.Fatalf("%s: expected code %s, got %v", tc.name, tc.code, body["code"])
		}
	}
}

func TestWriteResolveErrorOmitsCodeForInternal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)

	rr := httptest.NewRecorder()
	writeResolveError(rr, req, errors.New("store offline"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["code"]; ok {
		t.Fatalf("internal errors must not carry a code: %v", body)
	}
	if body["error"] != "store offline" {
		t.Fatalf("unexpected message %v", body["error"])
	}

	rr = httptest.NewRecorder()
	writeResolveError(rr, req, &auth.Error{Kind: auth.KindAccountBlocked, Message: "Account blocked", Status: "INACTIVE"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	body = nil
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "ACCOUNT_BLOCKED" || body["status"] != "INACTIVE" {
		t.Fatalf("unexpected body %v", body)
	}
}
