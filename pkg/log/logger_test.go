package log

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

// LoggerTestSuite tests the log package
type LoggerTestSuite struct {
	suite.Suite
	originalLogger zerolog.Logger
	testOutput     *bytes.Buffer
}

// SetupTest runs before each test
func (s *LoggerTestSuite) SetupTest() {
	// Save the original logger
	s.originalLogger = Logger

	// Create a test output buffer
	s.testOutput = &bytes.Buffer{}

	// Configure a test logger that writes to our buffer
	Logger = zerolog.New(s.testOutput).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Logger()
}

// TearDownTest runs after each test
func (s *LoggerTestSuite) TearDownTest() {
	// Restore the original logger
	Logger = s.originalLogger
}

// TestInfoLog tests the Info logging function
func (s *LoggerTestSuite) TestInfoLog() {
	testMessage := "test info message"

	Info().Msg(testMessage)

	output := s.testOutput.String()
	s.Contains(output, testMessage)
	s.Contains(output, "info")
}

// TestErrorLog tests the Error logging function
func (s *LoggerTestSuite) TestErrorLog() {
	testMessage := "test error message"

	Error().Msg(testMessage)

	output := s.testOutput.String()
	s.Contains(output, testMessage)
	s.Contains(output, "error")
}

// TestWarnLog tests the Warn logging function
func (s *LoggerTestSuite) TestWarnLog() {
	testMessage := "test warning message"

	Warn().Msg(testMessage)

	output := s.testOutput.String()
	s.Contains(output, testMessage)
	s.Contains(output, "warn")
}

// TestDebugLog tests the Debug logging function
func (s *LoggerTestSuite) TestDebugLog() {
	testMessage := "test debug message"

	Debug().Msg(testMessage)

	output := s.testOutput.String()
	s.Contains(output, testMessage)
	s.Contains(output, "debug")
}

// TestLogWithFields tests logging with additional fields
func (s *LoggerTestSuite) TestLogWithFields() {
	testMessage := "test message with fields"

	Info().Str("test_key", "test_value").Msg(testMessage)

	output := s.testOutput.String()
	s.Contains(output, testMessage)
	s.Contains(output, "test_key")
	s.Contains(output, "test_value")
}

// TestWithComponent tests the component sub-logger
func (s *LoggerTestSuite) TestWithComponent() {
	sub := With("resolver")
	sub.Info().Msg("component message")

	output := s.testOutput.String()
	s.Contains(output, "component message")
	s.Contains(output, "resolver")
}

// TestLoggerInitialization tests that the logger is properly initialized
func (s *LoggerTestSuite) TestLoggerInitialization() {
	level := s.originalLogger.GetLevel()
	s.True(level >= zerolog.DebugLevel && level <= zerolog.FatalLevel)
}

// TestConcurrentLogging tests that logging is thread-safe
func (s *LoggerTestSuite) TestConcurrentLogging() {
	numGoroutines := 10
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer func() { done <- true }()

			Info().Int("worker", id).Msg("concurrent log message")
			Error().Int("worker", id).Msg("concurrent error message")
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	output := s.testOutput.String()
	s.Contains(output, "concurrent log message")
	s.Contains(output, "concurrent error message")
}

// TestSuite runs the logger test suite
func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}
