package statsig

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
)

const configSyncTime = 1631638014811

func compareMetadata(t *testing.T, metadata map[string]string, expected map[string]string, syncTime int64) {
	t.Helper()
	for key, expectedValue := range expected {
		if metadata[key] != expectedValue {
			t.Errorf("Expected metadata %s to be %q, got %q", key, expectedValue, metadata[key])
		}
	}
	if metadata["configSyncTime"] != strconv.FormatInt(syncTime, 10) {
		t.Errorf("Expected configSyncTime %d, got %s", syncTime, metadata["configSyncTime"])
	}
	if metadata["initTime"] != strconv.FormatInt(syncTime, 10) {
		t.Errorf("Expected initTime %d, got %s", syncTime, metadata["initTime"])
	}
	if serverTime, _ := strconv.ParseInt(metadata["serverTime"], 10, 64); serverTime <= 0 {
		t.Errorf("Expected a positive serverTime, got %s", metadata["serverTime"])
	}
}

func findExposure(logged events, key string, name string) (Event, bool) {
	for _, eventData := range logged {
		event := convertToExposureEvent(eventData)
		if event.Metadata[key] == name {
			return event, true
		}
	}
	return Event{}, false
}

func TestEvaluationDetails(t *testing.T) {
	user := User{UserID: "some_user_id"}

	exerciseClient := func(t *testing.T) {
		t.Helper()
		if _, err := CheckGate(user, "always_on_gate"); err != nil {
			t.Fatalf("Expected CheckGate to succeed, got %v", err)
		}
		_, _ = GetConfig(user, "test_config")
		_, _ = GetExperiment(user, "sample_experiment")
		layer, _ := GetLayer(user, "unallocated_layer")
		layer.GetNumber("an_int", 0)
	}

	t.Run("network init reason", func(t *testing.T) {
		ShutdownAndDangerouslyClearInstance()
		collector := &eventCollector{}
		testServer := getTestServer(testServerOptions{onLogEvent: collector.add})
		defer testServer.Close()
		if err := InitializeWithOptions("secret-key", &Options{API: testServer.URL}); err != nil {
			t.Fatalf("Expected Initialize to succeed, got %v", err)
		}

		exerciseClient(t)
		ShutdownAndDangerouslyClearInstance()

		logged := collector.all()
		if len(logged) != 4 {
			t.Errorf("Expected exactly 4 exposures, got %d", len(logged))
		}

		gateEvent, _ := findExposure(logged, "gate", "always_on_gate")
		compareMetadata(t, gateEvent.Metadata, map[string]string{
			"gate":      "always_on_gate",
			"gateValue": "true",
			"ruleID":    "6N6Z8ODekNYZ7F8gFdoLP5",
			"reason":    "Network",
		}, configSyncTime)

		configEvent, _ := findExposure(logged, "config", "test_config")
		compareMetadata(t, configEvent.Metadata, map[string]string{
			"config": "test_config",
			"ruleID": "default",
			"reason": "Network",
		}, configSyncTime)

		experimentEvent, _ := findExposure(logged, "config", "sample_experiment")
		compareMetadata(t, experimentEvent.Metadata, map[string]string{
			"config": "sample_experiment",
			"ruleID": "2RamGujUou6h2bVNQWhtNZ",
			"reason": "Network",
		}, configSyncTime)

		layerEvent, _ := findExposure(logged, "config", "unallocated_layer")
		compareMetadata(t, layerEvent.Metadata, map[string]string{
			"config":        "unallocated_layer",
			"ruleID":        "default",
			"parameterName": "an_int",
			"reason":        "Network",
		}, configSyncTime)
	})

	t.Run("bootstrap init reason", func(t *testing.T) {
		ShutdownAndDangerouslyClearInstance()
		collector := &eventCollector{}
		testServer := offlineDCSServer(collector)
		defer testServer.Close()
		bootstrap, err := os.ReadFile("download_config_specs.json")
		if err != nil {
			t.Fatalf("Expected the ruleset fixture to be readable, got %v", err)
		}
		err = InitializeWithOptions("secret-key", &Options{
			API:             testServer.URL,
			BootstrapValues: string(bootstrap),
		})
		if err != nil {
			t.Fatalf("Expected Initialize to succeed, got %v", err)
		}

		exerciseClient(t)
		ShutdownAndDangerouslyClearInstance()

		logged := collector.all()
		gateEvent, _ := findExposure(logged, "gate", "always_on_gate")
		compareMetadata(t, gateEvent.Metadata, map[string]string{
			"gate":      "always_on_gate",
			"gateValue": "true",
			"ruleID":    "6N6Z8ODekNYZ7F8gFdoLP5",
			"reason":    "Bootstrap",
		}, configSyncTime)

		experimentEvent, _ := findExposure(logged, "config", "sample_experiment")
		compareMetadata(t, experimentEvent.Metadata, map[string]string{
			"config": "sample_experiment",
			"ruleID": "2RamGujUou6h2bVNQWhtNZ",
			"reason": "Bootstrap",
		}, configSyncTime)
	})

	t.Run("uninitialized reason when sync fails", func(t *testing.T) {
		ShutdownAndDangerouslyClearInstance()
		collector := &eventCollector{}
		testServer := offlineDCSServer(collector)
		defer testServer.Close()
		if err := InitializeWithOptions("secret-key", &Options{API: testServer.URL}); err != nil {
			t.Fatalf("Expected Initialize to succeed, got %v", err)
		}

		exerciseClient(t)
		ShutdownAndDangerouslyClearInstance()

		logged := collector.all()
		gateEvent, _ := findExposure(logged, "gate", "always_on_gate")
		compareMetadata(t, gateEvent.Metadata, map[string]string{
			"gate":      "always_on_gate",
			"gateValue": "false",
			"ruleID":    "",
			"reason":    "Uninitialized",
		}, 0)

		configEvent, _ := findExposure(logged, "config", "test_config")
		compareMetadata(t, configEvent.Metadata, map[string]string{
			"config": "test_config",
			"ruleID": "",
			"reason": "Uninitialized",
		}, 0)
	})

	t.Run("local override reason", func(t *testing.T) {
		ShutdownAndDangerouslyClearInstance()
		collector := &eventCollector{}
		testServer := getTestServer(testServerOptions{onLogEvent: collector.add})
		defer testServer.Close()
		if err := InitializeWithOptions("secret-key", &Options{API: testServer.URL}); err != nil {
			t.Fatalf("Expected Initialize to succeed, got %v", err)
		}

		_ = OverrideGate("always_on_gate", false)
		_ = OverrideConfig("test_config", map[string]interface{}{})
		_, _ = CheckGate(user, "always_on_gate")
		_, _ = GetConfig(user, "test_config")
		ShutdownAndDangerouslyClearInstance()

		logged := collector.all()
		if len(logged) != 2 {
			t.Errorf("Expected exactly 2 exposures, got %d", len(logged))
		}

		gateEvent, _ := findExposure(logged, "gate", "always_on_gate")
		compareMetadata(t, gateEvent.Metadata, map[string]string{
			"gate":      "always_on_gate",
			"gateValue": "false",
			"ruleID":    "override",
			"reason":    "LocalOverride",
		}, configSyncTime)

		configEvent, _ := findExposure(logged, "config", "test_config")
		compareMetadata(t, configEvent.Metadata, map[string]string{
			"config": "test_config",
			"ruleID": "override",
			"reason": "LocalOverride",
		}, configSyncTime)
	})
}

// offlineDCSServer fails every ruleset download but keeps accepting events.
func offlineDCSServer(collector *eventCollector) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.URL.Path, "download_config_specs") {
			res.WriteHeader(http.StatusInternalServerError)
			return
		}
		res.WriteHeader(http.StatusOK)
		if strings.Contains(req.URL.Path, "log_event") {
			type requestInput struct {
				Events []map[string]interface{} `json:"events"`
			}
			input := &requestInput{}
			defer req.Body.Close()
			_ = json.NewDecoder(req.Body).Decode(input)
			if collector != nil {
				collector.add(input.Events)
			}
		}
	}))
}
