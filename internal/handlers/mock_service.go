package handlers

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/models"
	"rinnai_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockAppliance struct {
	mu sync.Mutex

	cfg        service.Config
	cfgErr     error
	snap       *appliance.Snapshot
	statusErr  error
	state      appliance.State
	confirmed  bool
	commandErr error
	rawErr     error

	lastCommand service.CommandRequest
	lastRaw     string
	commands    int
	changed     []func(*appliance.Snapshot)
}

func (m *mockAppliance) Config() (service.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, m.cfgErr
}

func (m *mockAppliance) Status() (*appliance.Snapshot, error) {
	return m.snap, m.statusErr
}

func (m *mockAppliance) Command(ctx context.Context, req service.CommandRequest) (bool, error) {
	m.commands++
	m.lastCommand = req
	return m.confirmed, m.commandErr
}

func (m *mockAppliance) SendRaw(ctx context.Context, payload string) error {
	m.lastRaw = payload
	return m.rawErr
}

func (m *mockAppliance) Connect(ctx context.Context) error { return nil }
func (m *mockAppliance) Disconnect()                       {}
func (m *mockAppliance) State() appliance.State            { return m.state }

func (m *mockAppliance) OnStatusChanged(fn func(*appliance.Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = append(m.changed, fn)
	return func() {}
}

func (m *mockAppliance) OnConnected(func(appliance.Endpoint)) func() { return func() {} }
func (m *mockAppliance) OnDisconnected(func(error)) func()           { return func() {} }

// setConfig swaps the config and fires the status-changed subscribers.
func (m *mockAppliance) setConfig(cfg service.Config) {
	m.mu.Lock()
	m.cfg = cfg
	fns := slices.Clone(m.changed)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(&appliance.Snapshot{})
	}
}

func (m *mockAppliance) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.changed)
}

type mockEventLog struct {
	resp      []models.GatewayEvent
	err       error
	lastFrom  time.Time
	lastTo    time.Time
	lastType  string
	lastLimit int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.GatewayEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastLimit = f.Limit
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
