package baas

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/identity"
)

type fakeProvider struct {
	t     *testing.T
	calls atomic.Int32
	mux   *http.ServeMux
}

func newFakeProvider(t *testing.T) (*fakeProvider, *Client) {
	t.Helper()
	fp := &fakeProvider{t: t, mux: http.NewServeMux()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp.calls.Add(1)
		if r.Header.Get(headerProject) != "keno" {
			writeFake(w, http.StatusBadRequest, map[string]any{"message": "missing project", "code": 400, "type": "general_argument_invalid"})
			return
		}
		fp.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := New(Config{Endpoint: srv.URL + "/v1/", ProjectID: "keno", APIKey: "server-key", Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fp, client
}

func writeFake(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func TestAuthenticateWithSession(t *testing.T) {
	fp, client := newFakeProvider(t)
	fp.mux.HandleFunc("/v1/account", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerSession) != "secret-1" {
			writeFake(w, http.StatusUnauthorized, map[string]any{"message": "User (role: guests) missing scope (account)", "code": 401, "type": "general_unauthorized_scope"})
			return
		}
		writeFake(w, http.StatusOK, map[string]any{"$id": "u1", "email": "ana@keno.test", "name": "Ana", "emailVerification": true, "status": true})
	})

	id, err := NewIdentity(client).Authenticate(context.Background(), identity.Credentials{Session: "secret-1"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.ID != "u1" || !id.EmailVerified || id.Name != "Ana" {
		t.Fatalf("unexpected identity %+v", id)
	}

	_, err = NewIdentity(client).Authenticate(context.Background(), identity.Credentials{Session: "other"})
	if !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Type != "general_unauthorized_scope" {
		t.Fatalf("expected provider error details, got %v", err)
	}
}

func TestAuthenticateRejectsExpiredJWTLocally(t *testing.T) {
	fp, client := newFakeProvider(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "u1",
		"exp":    time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("provider-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = NewIdentity(client).Authenticate(context.Background(), identity.Credentials{JWT: token})
	if !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := NewIdentity(client).Authenticate(context.Background(), identity.Credentials{JWT: "not-a-jwt"}); !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for malformed jwt, got %v", err)
	}
	if _, err := NewIdentity(client).Authenticate(context.Background(), identity.Credentials{}); !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated without credentials, got %v", err)
	}
	if fp.calls.Load() != 0 {
		t.Fatalf("expected no provider round-trips, got %d", fp.calls.Load())
	}
}

func TestMembershipsQuery(t *testing.T) {
	fp, client := newFakeProvider(t)
	fp.mux.HandleFunc("/v1/teams/staff-team/memberships", func(w http.ResponseWriter, r *http.Request) {
		queries := r.URL.Query()["queries[]"]
		if len(queries) != 2 || !strings.Contains(queries[0], `"attribute":"userId"`) || !strings.Contains(queries[0], `"u1"`) {
			t.Errorf("unexpected queries %v", queries)
		}
		if r.Header.Get(headerJWT) == "" {
			t.Errorf("expected caller jwt header")
		}
		writeFake(w, http.StatusOK, map[string]any{
			"total": 1,
			"memberships": []map[string]any{
				{"$id": "m1", "teamId": "staff-team", "teamName": "Staff", "userId": "u1", "roles": []string{"owner"}},
			},
		})
	})
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("provider-secret"))

	got, err := NewIdentity(client).Memberships(context.Background(), identity.Credentials{JWT: token}, "staff-team", "u1")
	if err != nil {
		t.Fatalf("Memberships: %v", err)
	}
	if len(got) != 1 || got[0].TeamID != "staff-team" || got[0].Roles[0] != "owner" {
		t.Fatalf("unexpected memberships %+v", got)
	}
}

func TestCreateIdentityUsesServerKey(t *testing.T) {
	fp, client := newFakeProvider(t)
	fp.mux.HandleFunc("/v1/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerKey) != "server-key" {
			t.Errorf("expected api key header")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["phone"]; ok {
			t.Errorf("empty phone must be omitted")
		}
		if body["email"] == "dup@keno.test" {
			writeFake(w, http.StatusConflict, map[string]any{"message": "user already exists", "code": 409, "type": "user_already_exists"})
			return
		}
		writeFake(w, http.StatusCreated, map[string]any{"$id": body["userId"], "email": body["email"], "name": body["name"], "status": true})
	})

	p := NewIdentity(client)
	id, err := p.CreateIdentity(context.Background(), identity.NewIdentity{ID: "u9", Email: "new@keno.test", Password: "xxxxxxxxxxxxA1!", Name: "Nuevo"})
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	if id.ID != "u9" || !id.Enabled {
		t.Fatalf("unexpected identity %+v", id)
	}
	if _, err := p.CreateIdentity(context.Background(), identity.NewIdentity{ID: "u10", Email: "dup@keno.test", Password: "x"}); !errors.Is(err, identity.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDocumentsListAndConflict(t *testing.T) {
	fp, client := newFakeProvider(t)
	fp.mux.HandleFunc("/v1/databases/main/collections/permissions/documents", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			queries := r.URL.Query()["queries[]"]
			joined := strings.Join(queries, "|")
			if !strings.Contains(joined, `"attribute":"$id"`) || !strings.Contains(joined, `"method":"limit","values":[100]`) {
				t.Errorf("unexpected queries %v", queries)
			}
			writeFake(w, http.StatusOK, map[string]any{
				"total": 1,
				"documents": []map[string]any{
					{"$id": "STAFF_READ", "$collectionId": "permissions", "$createdAt": "2024-05-01T10:00:00.000+00:00", "key": "STAFF_READ", "group": "STAFF"},
				},
			})
		case http.MethodPost:
			writeFake(w, http.StatusConflict, map[string]any{"message": "Document with the requested ID already exists.", "code": 409, "type": "document_already_exists"})
		}
	})

	docs := NewDocuments(client, "main")
	list, err := docs.List(context.Background(), "permissions", docstore.NewQuery(docstore.Equal(docstore.IDAttribute, "STAFF_READ")).WithLimit(500))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Total != 1 || list.Documents[0].ID != "STAFF_READ" || list.Documents[0].String("group") != "STAFF" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list.Documents[0].CreatedAt.IsZero() {
		t.Fatal("expected parsed creation time")
	}
	if _, ok := list.Documents[0].Data["$id"]; ok {
		t.Fatal("system attributes must not leak into data")
	}

	_, err = docs.Create(context.Background(), "permissions", "STAFF_READ", map[string]any{"key": "STAFF_READ"})
	if !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDocumentsGetNotFound(t *testing.T) {
	fp, client := newFakeProvider(t)
	fp.mux.HandleFunc("/v1/databases/main/collections/roles/documents/ghost", func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, http.StatusNotFound, map[string]any{"message": "Document with the requested ID could not be found.", "code": 404, "type": "document_not_found"})
	})
	_, err := NewDocuments(client, "main").Get(context.Background(), "roles", "ghost")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEncodeQueries(t *testing.T) {
	q := docstore.NewQuery(docstore.Equal("roleId", "r1")).OrderDesc("name").WithOffset(25).WithSearch("ana", "fullName", "email")
	got := encodeQueries(q)
	want := []string{
		`{"method":"equal","attribute":"roleId","values":["r1"]}`,
		`{"method":"or","values":[{"method":"contains","attribute":"fullName","values":["ana"]},{"method":"contains","attribute":"email","values":["ana"]}]}`,
		`{"method":"orderDesc","attribute":"name"}`,
		`{"method":"limit","values":[25]}`,
		`{"method":"offset","values":[25]}`,
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected queries:\n%s", strings.Join(got, "\n"))
	}
}
