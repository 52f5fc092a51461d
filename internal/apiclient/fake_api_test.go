package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/socialpost/postctl/internal/models"
)

const (
	testEmail    string = "jane@example.com"
	testPassword string = "correct-horse"
)

var signingKey = []byte("fake-api-signing-key")

type sessionClaims struct {
	Generation int `json:"gen"`
	jwt.RegisteredClaims
}

// fakeAPI mimics the scheduler API: a short lived access_token cookie and a refresh_token cookie.
type fakeAPI struct {
	*httptest.Server

	mu             sync.Mutex
	generation     int
	refreshRevoked bool
	refreshGate    chan struct{}
	refreshes      int
	hits           map[string]int
	uploads        []string
	forms          []map[string][]string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	api := &fakeAPI{hits: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", api.login)
	mux.HandleFunc("POST /api/auth/refresh", api.refresh)
	mux.HandleFunc("POST /api/auth/logout", api.authenticated(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /api/auth/auth-state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"isAuthenticated": api.validAccessToken(r)})
	})
	mux.HandleFunc("GET /api/user/me", api.authenticated(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": models.User{ID: 7, Email: testEmail, Role: models.RoleAdmin},
		})
	}))
	mux.HandleFunc("DELETE /api/user/{id}", api.authenticated(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "user " + r.PathValue("id") + " not found"})
	}))
	mux.HandleFunc("PUT /api/user/{email}", api.authenticated(func(w http.ResponseWriter, r *http.Request) {
		api.record(r.Method + " " + r.PathValue("email"))
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("GET /api/pages/my-pages", api.authenticated(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Page{{PageID: "p1", Name: "Bakery"}, {PageID: "p2", Name: "Garage"}})
	}))
	mux.HandleFunc("GET /api/pages/{id}/insights", api.authenticated(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"name": "page_impressions", "value": 42}}})
	}))
	mux.HandleFunc("GET /api/auth/facebook/url", api.authenticated(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://facebook.example.com/dialog"})
	}))
	mux.HandleFunc("POST /api/upload/single", api.authenticated(api.upload("media")))
	mux.HandleFunc("POST /api/upload/multiple", api.authenticated(api.upload("medias")))
	mux.HandleFunc("POST /api/upload/multipart-credentials", api.authenticated(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FileName string `json:"fileName"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{"data": models.UploadTarget{
			Bucket: "media",
			Region: "eu-west-3",
			Key:    "uploads/" + body.FileName,
			Credentials: models.TemporaryCredentials{
				AccessKeyID:     "AKIA",
				SecretAccessKey: "secret",
				SessionToken:    "session",
			},
		}})
	}))
	mux.HandleFunc("POST /api/post/publish", api.authenticated(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") == "application/json" {
			raw, _ := io.ReadAll(r.Body)
			api.record(string(raw))
			w.WriteHeader(http.StatusCreated)
			return
		}
		err := r.ParseMultipartForm(1 << 20)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form := map[string][]string{}
		for key, values := range r.MultipartForm.Value {
			form[key] = values
		}
		for key, files := range r.MultipartForm.File {
			for _, file := range files {
				form[key] = append(form[key], file.Filename)
			}
		}
		api.mu.Lock()
		api.forms = append(api.forms, form)
		api.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (api *fakeAPI) record(entry string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.uploads = append(api.uploads, entry)
}

func (api *fakeAPI) accessToken() (string, error) {
	api.mu.Lock()
	generation := api.generation
	api.mu.Unlock()
	claims := sessionClaims{
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testEmail,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

func (api *fakeAPI) setAccessToken(w http.ResponseWriter) error {
	token, err := api.accessToken()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: token, Path: "/", HttpOnly: true})
	return nil
}

// expireAccessTokens invalidates every access token handed out so far.
func (api *fakeAPI) expireAccessTokens() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.generation++
}

func (api *fakeAPI) revokeRefreshToken() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.refreshRevoked = true
}

func (api *fakeAPI) refreshCount() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.refreshes
}

func (api *fakeAPI) hitCount(path string) int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.hits[path]
}

func (api *fakeAPI) validAccessToken(r *http.Request) bool {
	cookie, err := r.Cookie("access_token")
	if err != nil {
		return false
	}
	claims := sessionClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(t *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})
	if err != nil {
		return false
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	return claims.Generation == api.generation
}

func (api *fakeAPI) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.hits[r.URL.Path]++
		api.mu.Unlock()
		if !api.validAccessToken(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "access token expired"})
			return
		}
		next(w, r)
	}
}

func (api *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var credentials models.Credentials
	err := json.NewDecoder(r.Body).Decode(&credentials)
	if err != nil || credentials.Email != testEmail || credentials.Password != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"message": "invalid credentials"}})
		return
	}
	err = api.setAccessToken(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "refresh-" + testEmail, Path: "/api/auth", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]bool{"isAuthenticated": true})
}

func (api *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	api.refreshes++
	gate := api.refreshGate
	revoked := api.refreshRevoked
	api.mu.Unlock()
	if gate != nil {
		<-gate
	}
	cookie, err := r.Cookie("refresh_token")
	if err != nil || revoked || cookie.Value != "refresh-"+testEmail {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "refresh token revoked"})
		return
	}
	err = api.setAccessToken(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (api *fakeAPI) upload(field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseMultipartForm(1 << 20)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		medias := []models.UploadedMedia{}
		for _, header := range r.MultipartForm.File[field] {
			file, err := header.Open()
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			content, _ := io.ReadAll(file)
			file.Close()
			api.record(fmt.Sprintf("%s:%s", header.Filename, content))
			medias = append(medias, models.UploadedMedia{URL: "https://cdn.example.com/" + header.Filename})
		}
		writeJSON(w, http.StatusOK, map[string]any{"medias": medias})
	}
}
