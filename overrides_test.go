package statsig

import "testing"

func TestOverrides(t *testing.T) {
	client, err := NewClientWithOptions("secret-key", &Options{LocalMode: true})
	if err != nil {
		t.Fatalf("Expected client to initialize, got %v", err)
	}
	defer func() { _ = client.Shutdown() }()

	user := User{
		UserID: "123",
		Email:  "123@gmail.com",
	}

	t.Run("gate overrides", func(t *testing.T) {
		if client.CheckGate(user, "any_gate") {
			t.Errorf("Expected the default gate value in LocalMode")
		}

		client.OverrideGate("any_gate", true)
		if !client.CheckGate(user, "any_gate") {
			t.Errorf("Expected the override value for the gate")
		}

		gate := client.GetFeatureGate(user, "any_gate")
		if gate.RuleID != "override" {
			t.Errorf("Expected rule ID override, got %q", gate.RuleID)
		}
		if gate.EvaluationDetails == nil || gate.EvaluationDetails.Reason != reasonLocalOverride {
			t.Errorf("Expected a LocalOverride evaluation reason, got %+v", gate.EvaluationDetails)
		}

		client.OverrideGate("any_gate", false)
		if client.CheckGate(user, "any_gate") {
			t.Errorf("Expected overriding again to replace the value")
		}
	})

	t.Run("config overrides", func(t *testing.T) {
		if config := client.GetConfig(user, "any_config"); len(config.Value) != 0 {
			t.Errorf("Expected the default config value in LocalMode, got %v", config.Value)
		}

		client.OverrideConfig("any_config", map[string]interface{}{"test": 123})
		config := client.GetConfig(user, "any_config")
		if config.Value["test"] != 123 {
			t.Errorf("Expected the override value for the config, got %v", config.Value)
		}
		if config.RuleID != "override" {
			t.Errorf("Expected rule ID override, got %q", config.RuleID)
		}
	})

	t.Run("layer overrides", func(t *testing.T) {
		client.OverrideLayer("any_layer", map[string]interface{}{"param": "overridden"})
		layer := client.GetLayer(user, "any_layer")
		if layer.GetString("param", "") != "overridden" {
			t.Errorf("Expected the override value for the layer, got %v", layer.Value)
		}
		if layer.RuleID != "override" {
			t.Errorf("Expected rule ID override, got %q", layer.RuleID)
		}
	})
}
