package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/attested/roster/internal/database"
	"github.com/attested/roster/internal/handlers"
	"github.com/attested/roster/internal/models"
	"github.com/attested/roster/internal/repositories"
	"github.com/attested/roster/internal/routes"
	"github.com/attested/roster/internal/services"
	pkglogger "github.com/attested/roster/pkg/logger"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To   string
	Kind string
}

// RecordingEmailService captures outbound mail for test assertions
type RecordingEmailService struct {
	mu   sync.Mutex
	Sent []SentEmail
}

func (m *RecordingEmailService) SendConfirmation(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentEmail{To: user.Email, Kind: "confirmation"})
	return nil
}

func (m *RecordingEmailService) SendPasswordReset(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentEmail{To: user.Email, Kind: "password_reset"})
	return nil
}

// LastEmail returns the most recent captured message, or nil
func (m *RecordingEmailService) LastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return &m.Sent[len(m.Sent)-1]
}

// TestServer wraps httptest.Server with a real database and mocked email
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	UserRepo     *repositories.UserRepository
	EmailService *RecordingEmailService
}

// NewTestServer wires the full production stack against the given
// database, swapping only the mailer.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	userRepo := repositories.NewUserRepository(db)
	mailer := &RecordingEmailService{}
	events := pkglogger.NewEventEmitter(logger)

	userService := services.NewUserService(userRepo, events, true, logger)
	lifecycleService := services.NewLifecycleService(userRepo, events, mailer, logger)
	tokenService := services.NewTokenService(userRepo, events, logger)

	userHandler := handlers.NewUserHandler(userService, lifecycleService)
	tokenHandler := handlers.NewTokenHandler(tokenService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, userHandler, tokenHandler, userRepo, logger)

	return &TestServer{
		Server:       httptest.NewServer(r),
		DB:           db,
		UserRepo:     userRepo,
		EmailService: mailer,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server. An empty username
// sends no credentials at all.
func (ts *TestServer) Request(method, path string, body interface{}, username, password string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	return http.DefaultClient.Do(req)
}

// ParseJSONResponse parses the response body into target and closes it
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorMessage extracts the message from an {"error": ...} body
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["error"].(string); ok {
		return msg, nil
	}
	return "", nil
}
