package httpapi

import (
	"net/http"
	"testing"

	"kenoadmin.org/internal/auth"
)

func staffUpdateBody(userID string, fields map[string]any) map[string]any {
	body := map[string]any{
		"userId":       userID,
		"documentId":   userID,
		"databaseId":   testDatabase,
		"collectionId": "staff",
	}
	for k, v := range fields {
		body[k] = v
	}
	return body
}

func TestStaffCreateAndList(t *testing.T) {
	env := newTestAPI(t)
	manager := bearerHeader(env.addUser("ana", "manager", "active"))

	resp := env.do(http.MethodPost, "/api/staff/create", map[string]any{
		"email":        "luis@keno.test",
		"fullName":     "Luis Pérez",
		"role":         "vendor",
		"collectionId": "staff",
		"databaseId":   testDatabase,
	}, manager)
	expectStatus(t, resp, http.StatusOK)
	created := decode[map[string]any](t, resp)
	if created["success"] != true {
		t.Fatalf("unexpected body %v", created)
	}
	user, _ := created["user"].(map[string]any)
	doc, _ := created["document"].(map[string]any)
	if user["email"] != "luis@keno.test" || doc["status"] != auth.StaffActive || doc["userId"] != user["id"] {
		t.Fatalf("unexpected create result %v", created)
	}

	resp = env.do(http.MethodGet, "/api/staff?search=luis&limit=10", nil, manager)
	expectStatus(t, resp, http.StatusOK)
	list := decode[listResponse[auth.Staff]](t, resp)
	if list.Total != 1 || len(list.Items) != 1 || list.Items[0].FullName != "Luis Pérez" || list.Limit != 10 {
		t.Fatalf("unexpected list %+v", list)
	}

	resp = env.do(http.MethodGet, "/api/staff/"+list.Items[0].ID, nil, manager)
	expectStatus(t, resp, http.StatusOK)
	one := decode[auth.Staff](t, resp)
	if one.Role != "vendor" {
		t.Fatalf("unexpected staff %+v", one)
	}

	resp = env.do(http.MethodGet, "/api/staff/missing", nil, manager)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestStaffCreateErrors(t *testing.T) {
	env := newTestAPI(t)
	manager := bearerHeader(env.addUser("ana", "manager", "active"))
	vendor := bearerHeader(env.addUser("cashier", "vendor", "active"))

	resp := env.do(http.MethodPost, "/api/staff/create", map[string]any{"email": "x@keno.test"}, manager)
	expectStatus(t, resp, http.StatusBadRequest)
	body := decode[map[string]any](t, resp)
	if body["error"] != "Missing required fields" || body["code"] != float64(http.StatusBadRequest) {
		t.Fatalf("unexpected body %v", body)
	}

	resp = env.do(http.MethodPost, "/api/staff/create", map[string]any{
		"email":        "ana@keno.test",
		"fullName":     "Ana Again",
		"role":         "vendor",
		"collectionId": "staff",
		"databaseId":   testDatabase,
	}, manager)
	expectStatus(t, resp, http.StatusConflict)
	body = decode[map[string]any](t, resp)
	if body["code"] != float64(http.StatusConflict) {
		t.Fatalf("unexpected body %v", body)
	}

	resp = env.do(http.MethodPost, "/api/staff/create", map[string]any{
		"email":        "new@keno.test",
		"fullName":     "New Person",
		"role":         "vendor",
		"collectionId": "staff",
		"databaseId":   testDatabase,
	}, vendor)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
}

func TestStaffDeactivationBlocksAccess(t *testing.T) {
	env := newTestAPI(t)
	manager := bearerHeader(env.addUser("ana", "manager", "active"))
	cashier := bearerHeader(env.addUser("cashier", "vendor", "active"))

	resp := env.do(http.MethodPatch, "/api/staff/update", staffUpdateBody("cashier", map[string]any{"status": "INACTIVE"}), manager)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.do(http.MethodGet, "/api/auth/me", nil, cashier)
	expectStatus(t, resp, http.StatusForbidden)
	body := decode[map[string]any](t, resp)
	if body["code"] != "ACCOUNT_BLOCKED" || body["status"] != "INACTIVE" {
		t.Fatalf("unexpected body %v", body)
	}

	resp = env.do(http.MethodPost, "/api/auth/login", map[string]any{"email": "cashier@keno.test", "password": testPassword}, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = env.do(http.MethodPatch, "/api/staff/update", staffUpdateBody("cashier", map[string]any{"status": "active"}), manager)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.do(http.MethodGet, "/api/auth/me", nil, cashier)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestStaffRoleChangeNeedsAssignPermission(t *testing.T) {
	env := newTestAPI(t)
	manager := bearerHeader(env.addUser("ana", "manager", "active"))
	owner := bearerHeader(env.addUser("boss", "owner", "active"))
	env.addUser("cashier", "vendor", "active")

	resp := env.do(http.MethodPatch, "/api/staff/update", staffUpdateBody("cashier", map[string]any{"role": "manager"}), manager)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.do(http.MethodPatch, "/api/staff/update", staffUpdateBody("cashier", map[string]any{"role": "manager", "phone": "+58 412 0000000"}), owner)
	expectStatus(t, resp, http.StatusOK)
	body := decode[map[string]any](t, resp)
	doc, _ := body["document"].(map[string]any)
	if doc["role"] != "manager" || doc["phone"] != "+58 412 0000000" || doc["fullName"] != "User cashier" {
		t.Fatalf("unexpected document %v", doc)
	}

	resp = env.do(http.MethodPatch, "/api/staff/update", staffUpdateBody("cashier", map[string]any{"status": "retired"}), owner)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = env.do(http.MethodPatch, "/api/staff/update", map[string]any{"userId": "cashier"}, owner)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}
