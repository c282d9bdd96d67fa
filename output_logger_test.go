package statsig

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLogEventErrors(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.WriteHeader(http.StatusBadRequest)
	}))
	defer testServer.Close()

	errs := make([]error, 0)
	opts := &Options{
		API: testServer.URL,
		OutputLoggerOptions: OutputLoggerOptions{
			LogCallback: func(message string, err error) {
				errs = append(errs, err)
			},
		},
	}
	transport := newTransport("secret", opts)
	errorBoundary := newErrorBoundary("secret", opts)
	logger := newLogger(transport, opts, errorBoundary)
	defer func() { _ = logger.shutdown(time.Second) }()

	user := User{
		UserID: "123",
	}
	event := Event{
		EventName: "test_event",
		User:      user,
		Value:     "3",
	}

	InitializeGlobalOutputLogger(OutputLoggerOptions{}, nil)
	stderrLogs := swallow_stderr(func() {
		logger.logCustom(event)
		logger.flush(true)
	})

	if stderrLogs == "" {
		t.Errorf("Expected output to stderr")
	}

	InitializeGlobalOutputLogger(opts.OutputLoggerOptions, nil)
	logger.logCustom(event)
	logger.flush(true)

	if len(errs) == 0 {
		t.Errorf("Expected output to callback")
	}

	if !errors.Is(errs[0], ErrFailedLogEvent) {
		t.Errorf("Expected error to match ErrFailedLogEvent")
	}

	expected := "Failed to log 1 events: Failed request to /log_event with status 400: http response error code: 400"
	if errs[0].Error() != expected {
		t.Errorf("Expected %s, got %s", expected, errs[0].Error())
	}
}

func TestOutputLoggerSanitizesSecrets(t *testing.T) {
	messages := make([]string, 0)
	InitializeGlobalOutputLogger(OutputLoggerOptions{
		LogCallback: func(message string, err error) {
			messages = append(messages, message)
		},
	}, nil)
	defer InitializeGlobalOutputLogger(OutputLoggerOptions{}, nil)

	Logger().Log("failed to fetch configs for secret-abc123DEF", nil)

	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	if strings.Contains(messages[0], "secret-abc123DEF") {
		t.Errorf("Expected the key to be scrubbed, got %s", messages[0])
	}
	if !strings.Contains(messages[0], "secret-****") {
		t.Errorf("Expected the redacted key, got %s", messages[0])
	}
}

func TestLogStepRespectsDebugOptions(t *testing.T) {
	record := func(messages *[]string) OutputLoggerOptions {
		return OutputLoggerOptions{
			EnableDebug: true,
			LogCallback: func(message string, err error) {
				*messages = append(*messages, message)
			},
		}
	}
	defer InitializeGlobalOutputLogger(OutputLoggerOptions{}, nil)

	t.Run("silent without EnableDebug", func(t *testing.T) {
		messages := make([]string, 0)
		options := record(&messages)
		options.EnableDebug = false
		InitializeGlobalOutputLogger(options, nil)
		Logger().LogStep(StatsigProcessInitialize, "loading specs")
		if len(messages) != 0 {
			t.Errorf("Expected no debug output, got %v", messages)
		}
	})

	t.Run("logs the process and message", func(t *testing.T) {
		messages := make([]string, 0)
		InitializeGlobalOutputLogger(record(&messages), nil)
		Logger().LogStep(StatsigProcessInitialize, "loading specs")
		if len(messages) != 1 || messages[0] != "Initialize: loading specs" {
			t.Errorf("Expected the Initialize step, got %v", messages)
		}
	})

	t.Run("init diagnostics can be disabled alone", func(t *testing.T) {
		messages := make([]string, 0)
		options := record(&messages)
		options.DisableInitDiagnostics = true
		InitializeGlobalOutputLogger(options, nil)
		Logger().LogStep(StatsigProcessInitialize, "loading specs")
		Logger().LogStep(StatsigProcessSync, "config sync")
		if len(messages) != 1 || messages[0] != "Sync: config sync" {
			t.Errorf("Expected only the Sync step, got %v", messages)
		}
	})

	t.Run("sync diagnostics can be disabled alone", func(t *testing.T) {
		messages := make([]string, 0)
		options := record(&messages)
		options.DisableSyncDiagnostics = true
		InitializeGlobalOutputLogger(options, nil)
		Logger().LogStep(StatsigProcessSync, "config sync")
		Logger().LogStep(StatsigProcessInitialize, "loading specs")
		if len(messages) != 1 || messages[0] != "Initialize: loading specs" {
			t.Errorf("Expected only the Initialize step, got %v", messages)
		}
	})
}

func TestLogErrorIncludesStack(t *testing.T) {
	messages := make([]string, 0)
	errs := make([]error, 0)
	InitializeGlobalOutputLogger(OutputLoggerOptions{
		LogCallback: func(message string, err error) {
			messages = append(messages, message)
			errs = append(errs, err)
		},
	}, nil)
	defer InitializeGlobalOutputLogger(OutputLoggerOptions{}, nil)

	Logger().LogError("something broke")

	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	if !strings.Contains(messages[0], "Error: something broke") {
		t.Errorf("Expected the error message, got %s", messages[0])
	}
	if !strings.Contains(messages[0], "Stack Trace:") {
		t.Errorf("Expected a stack trace, got %s", messages[0])
	}
	if errs[0] == nil || errs[0].Error() != "something broke" {
		t.Errorf("Expected the error value, got %v", errs[0])
	}
}
