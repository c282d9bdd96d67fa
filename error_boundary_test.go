package statsig

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type exceptionRecorder struct {
	mu     sync.Mutex
	bodies []logExceptionRequestBody
}

func (r *exceptionRecorder) add(body logExceptionRequestBody) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
}

func (r *exceptionRecorder) all() []logExceptionRequestBody {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]logExceptionRequestBody{}, r.bodies...)
}

func newExceptionServer(recorder *exceptionRecorder) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		var body logExceptionRequestBody
		_ = json.NewDecoder(req.Body).Decode(&body)
		recorder.add(body)
		res.WriteHeader(http.StatusOK)
	}))
}

func TestLogException(t *testing.T) {
	recorder := &exceptionRecorder{}
	testServer := newExceptionServer(recorder)
	defer testServer.Close()

	boundary := newErrorBoundary("secret-key", &Options{API: testServer.URL})
	err := errors.New("test error boundary log exception")
	boundary.logException(err)

	bodies := recorder.all()
	if len(bodies) != 1 {
		t.Fatalf("Expected 1 exception report, got %d", len(bodies))
	}
	if bodies[0].Exception != err.Error() {
		t.Errorf("Expected the exception message, got %q", bodies[0].Exception)
	}
	if bodies[0].StatsigMetadata.SDKType == "" {
		t.Errorf("Expected sdk metadata on the report")
	}
}

func TestLogExceptionDedupe(t *testing.T) {
	recorder := &exceptionRecorder{}
	testServer := newExceptionServer(recorder)
	defer testServer.Close()

	boundary := newErrorBoundary("secret-key", &Options{API: testServer.URL})
	boundary.logException(errors.New("same error"))
	boundary.logException(errors.New("same error"))
	if count := len(recorder.all()); count != 1 {
		t.Errorf("Expected repeated exceptions to report once, got %d", count)
	}

	boundary.logException(errors.New("different error"))
	if count := len(recorder.all()); count != 2 {
		t.Errorf("Expected a new exception to report, got %d", count)
	}
}

func TestCaptureRecoversPanics(t *testing.T) {
	recorder := &exceptionRecorder{}
	testServer := newExceptionServer(recorder)
	defer testServer.Close()

	boundary := newErrorBoundary("secret-key", &Options{API: testServer.URL})

	gate := boundary.captureCheckGate(func() FeatureGate {
		panic("checkGate blew up")
	})
	if gate.Value || gate.Name != "" {
		t.Errorf("Expected a zero gate after a panic, got %+v", gate)
	}

	config := boundary.captureGetConfig(func() DynamicConfig {
		panic(errors.New("getConfig blew up"))
	}, "getConfig")
	if config.Name != "" {
		t.Errorf("Expected a zero config after a panic, got %+v", config)
	}

	boundary.captureVoid(func() {
		panic("logEvent blew up")
	}, "logEvent")

	bodies := recorder.all()
	if len(bodies) != 3 {
		t.Fatalf("Expected 3 exception reports, got %d", len(bodies))
	}
	if bodies[0].Exception != "checkGate blew up" || bodies[0].Tag != "checkGate" {
		t.Errorf("Expected the panic message and tag, got %+v", bodies[0])
	}
	if bodies[1].Exception != "getConfig blew up" {
		t.Errorf("Expected the panic error's message, got %q", bodies[1].Exception)
	}
	if bodies[2].Tag != "logEvent" {
		t.Errorf("Expected the caller's tag, got %q", bodies[2].Tag)
	}
}

func TestLogExceptionSkipped(t *testing.T) {
	t.Run("local mode", func(t *testing.T) {
		recorder := &exceptionRecorder{}
		testServer := newExceptionServer(recorder)
		defer testServer.Close()

		boundary := newErrorBoundary("secret-key", &Options{API: testServer.URL, LocalMode: true})
		boundary.logException(errors.New("should not be reported"))
		if count := len(recorder.all()); count != 0 {
			t.Errorf("Expected no reports in LocalMode, got %d", count)
		}
	})

	t.Run("logging disabled", func(t *testing.T) {
		recorder := &exceptionRecorder{}
		testServer := newExceptionServer(recorder)
		defer testServer.Close()

		boundary := newErrorBoundary("secret-key", &Options{
			API:                  testServer.URL,
			StatsigLoggerOptions: StatsigLoggerOptions{DisableAllLogging: true},
		})
		boundary.logException(errors.New("should not be reported"))
		if count := len(recorder.all()); count != 0 {
			t.Errorf("Expected no reports when logging is disabled, got %d", count)
		}
	})
}
