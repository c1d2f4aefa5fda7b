package factory

import (
	"time"

	"github.com/mcoot/puzzlegame/internal/dependencies/mocks"
	"github.com/mcoot/puzzlegame/internal/services/lifecycle"
	"github.com/mcoot/puzzlegame/internal/storage/memory"
	"github.com/mcoot/puzzlegame/internal/testutil"
)

// TestStartTime is where the mock clock of a TestApp begins
var TestStartTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	MockIDs   *mocks.MockIDs
}

// NewTestApp creates an App over memory storage with mocked clock and ids
func NewTestApp() *TestApp {
	return NewTestAppWithPolicy(lifecycle.CompletionIdempotent)
}

// NewTestAppWithPolicy is NewTestApp with an explicit completion policy
func NewTestAppWithPolicy(policy lifecycle.CompletionPolicy) *TestApp {
	mockClock := mocks.NewMockClock(TestStartTime)
	mockIDs := mocks.NewMockIDs()

	cfg := Config{
		LifecycleConfig: lifecycle.Config{CompletionPolicy: policy},
	}
	cfg.OwnerConfig.Secret = []byte("test-owner-secret-0123456789")

	app, err := newWithDependencies(memory.New(), mockClock, mockIDs, cfg, testutil.NopLogger())
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		MockIDs:   mockIDs,
	}
}
