package e2e

import (
	"bytes"
	"conference-bot/domain"
	"conference-bot/repositories"
	"conference-bot/runtime"
	"conference-bot/web"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/suite"
)

// BaseSuite boots the whole service in-process against a fake platform:
// real web handlers, scheduler, registry and journal, with only the
// platform adapter replaced.
type BaseSuite struct {
	suite.Suite
	Config    Config
	Platform  *fakePlatform
	Registry  *runtime.Registry
	Scheduler *runtime.Scheduler

	db     *badger.DB
	server *httptest.Server
}

func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

// BootStack wires a fresh stack around the given platform. Each scenario
// calls it once so state never leaks between tests.
func (s *BaseSuite) BootStack(platform *fakePlatform) {
	log := slog.Default()
	creds := domain.Credentials{System: "e2e", Domain: "e2e.local", ClientID: "client-e2e"}

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	journal := repositories.NewOutcomeRepository(db, log)
	registry := runtime.NewRegistry(log, platform, creds, journal, s.Config.DialGrace)
	scheduler := runtime.NewScheduler(log, registry)
	server := web.NewServer(log, scheduler, registry, journal, creds)

	s.Platform = platform
	s.Registry = registry
	s.Scheduler = scheduler
	s.db = db
	s.server = httptest.NewServer(server.Handler())
}

func (s *BaseSuite) TearDownTest() {
	if s.server != nil {
		s.server.Close()
	}
	if s.Registry != nil {
		s.Registry.CloseAll()
	}
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	if s.db != nil {
		s.Require().NoError(s.db.Close())
	}
	s.server, s.Registry, s.Scheduler, s.db, s.Platform = nil, nil, nil, nil, nil
}

func (s *BaseSuite) PostJSON(path string, body any) int {
	data, err := json.Marshal(body)
	s.Require().NoError(err)

	resp, err := http.Post(s.server.URL+path, "application/json", bytes.NewReader(data))
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode
}

type systemStatus struct {
	System         string                 `json:"system"`
	LiveSessions   int                    `json:"liveSessions"`
	RecentOutcomes []domain.OutcomeRecord `json:"recentOutcomes"`
}

func (s *BaseSuite) GetSystem() systemStatus {
	resp, err := http.Get(s.server.URL + "/system")
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()

	var status systemStatus
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&status))
	return status
}
