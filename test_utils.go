package statsig

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type events []map[string]interface{}

type testServerOptions struct {
	status         int
	dcsFile        string
	onLogEvent     func(events []map[string]interface{})
	onDCS          func()
	noUpdateOnSync bool
	useCurrentTime bool
}

// requestSinceTime recovers the sinceTime a config spec request carries,
// whether it arrived as a CDN query parameter or in a POST body.
func requestSinceTime(req *http.Request) int64 {
	if raw := req.URL.Query().Get("sinceTime"); raw != "" {
		parsed, _ := strconv.ParseInt(raw, 10, 64)
		return parsed
	}
	if req.Body == nil {
		return 0
	}
	defer req.Body.Close()
	input := struct {
		SinceTime int64 `json:"sinceTime"`
	}{}
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(req.Body)
	_ = json.Unmarshal(buf.Bytes(), &input)
	return input.SinceTime
}

func getTestServer(opts testServerOptions) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.Header().Add("x-statsig-region", "az-westus-2")
		status := opts.status
		if status == 0 {
			status = http.StatusOK
		}
		res.WriteHeader(status)
		if status < 200 || status >= 300 {
			return
		}
		if strings.Contains(req.URL.Path, "download_config_specs") {
			dcsFile := opts.dcsFile
			if dcsFile == "" {
				dcsFile = "download_config_specs.json"
			}
			body, _ := os.ReadFile(dcsFile)

			if opts.useCurrentTime {
				var configData map[string]interface{}
				if err := json.Unmarshal(body, &configData); err == nil {
					configData["time"] = time.Now().UnixNano() / int64(time.Millisecond)
					if updated, err := json.Marshal(configData); err == nil {
						body = updated
					}
				}
			}

			if opts.noUpdateOnSync && requestSinceTime(req) != 0 {
				var configData map[string]interface{}
				if err := json.Unmarshal(body, &configData); err == nil {
					configData["has_updates"] = false
					if updated, err := json.Marshal(configData); err == nil {
						body = updated
					}
				}
			}

			_, _ = res.Write(body)
			if opts.onDCS != nil {
				opts.onDCS()
			}
		} else if strings.Contains(req.URL.Path, "log_event") {
			type requestInput struct {
				Events          []map[string]interface{} `json:"events"`
				StatsigMetadata statsigMetadata          `json:"statsigMetadata"`
			}
			input := &requestInput{}
			defer req.Body.Close()
			buf := new(bytes.Buffer)
			_, _ = buf.ReadFrom(req.Body)
			_ = json.Unmarshal(buf.Bytes(), &input)

			if opts.onLogEvent != nil {
				opts.onLogEvent(input.Events)
			}
		}
	}))
}

// eventCollector gathers log_event payloads across flushes so tests can
// assert on them without racing the logger's background sends.
type eventCollector struct {
	mu     sync.Mutex
	events events
}

func (c *eventCollector) add(newEvents []map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, newEvents...)
}

func (c *eventCollector) all() events {
	c.mu.Lock()
	defer c.mu.Unlock()
	collected := make(events, len(c.events))
	copy(collected, c.events)
	return collected
}

func (c *eventCollector) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

func (c *eventCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func convertToExposureEvent(eventData map[string]interface{}) Event {
	eventJSON, err := json.Marshal(eventData)
	if err != nil {
		return Event{}
	}
	var event Event
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		return Event{}
	}
	return event
}

func waitForCondition(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("Timed out waiting for condition")
}
