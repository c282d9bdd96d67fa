// Package statsig implements feature gating and a/b testing on the server.
// Rulesets sync in the background and every check evaluates locally.
package statsig

import "sync"

var instance *Client
var instanceMu sync.RWMutex

// Initialize sets up the global Statsig instance with the given sdkKey.
func Initialize(sdkKey string) error {
	return InitializeWithOptions(sdkKey, &Options{})
}

// InitializeWithOptions sets up the global Statsig instance with the given
// sdkKey and options. Calling it again without shutting down first returns
// ErrAlreadyInitialized.
func InitializeWithOptions(sdkKey string, options *Options) error {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		Logger().Log("Statsig is already initialized.", nil)
		return ErrAlreadyInitialized
	}
	client, err := NewClientWithOptions(sdkKey, options)
	if err != nil {
		return err
	}
	instance = client
	return nil
}

// IsInitialized returns whether the global Statsig instance has already been initialized or not
func IsInitialized() bool {
	instanceMu.RLock()
	defer instanceMu.RUnlock()
	return instance != nil
}

func getInstance() (*Client, error) {
	instanceMu.RLock()
	defer instanceMu.RUnlock()
	if instance == nil {
		return nil, ErrUninitialized
	}
	return instance, nil
}

// CheckGate checks the value of a Feature Gate for the given user
func CheckGate(user User, gate string) (bool, error) {
	c, err := getInstance()
	if err != nil {
		return false, err
	}
	return c.CheckGate(user, gate), nil
}

// CheckGateWithExposureLoggingDisabled checks the value of a Feature Gate for the given user without logging an exposure event
func CheckGateWithExposureLoggingDisabled(user User, gate string) (bool, error) {
	c, err := getInstance()
	if err != nil {
		return false, err
	}
	return c.CheckGateWithExposureLoggingDisabled(user, gate), nil
}

// GetFeatureGate returns the Feature Gate result for the given user
func GetFeatureGate(user User, gate string) (FeatureGate, error) {
	c, err := getInstance()
	if err != nil {
		return FeatureGate{}, err
	}
	return c.GetFeatureGate(user, gate), nil
}

func GetFeatureGateWithExposureLoggingDisabled(user User, gate string) (FeatureGate, error) {
	c, err := getInstance()
	if err != nil {
		return FeatureGate{}, err
	}
	return c.GetFeatureGateWithExposureLoggingDisabled(user, gate), nil
}

// ManuallyLogGateExposure logs an exposure event for the gate
func ManuallyLogGateExposure(user User, gate string) error {
	c, err := getInstance()
	if err != nil {
		return err
	}
	c.ManuallyLogGateExposure(user, gate)
	return nil
}

// GetConfig gets the DynamicConfig value for the given user
func GetConfig(user User, config string) (DynamicConfig, error) {
	c, err := getInstance()
	if err != nil {
		return DynamicConfig{}, err
	}
	return c.GetConfig(user, config), nil
}

// GetConfigWithExposureLoggingDisabled gets the DynamicConfig value for the given user without logging an exposure event
func GetConfigWithExposureLoggingDisabled(user User, config string) (DynamicConfig, error) {
	c, err := getInstance()
	if err != nil {
		return DynamicConfig{}, err
	}
	return c.GetConfigWithExposureLoggingDisabled(user, config), nil
}

// ManuallyLogConfigExposure logs an exposure event for the dynamic config
func ManuallyLogConfigExposure(user User, config string) error {
	c, err := getInstance()
	if err != nil {
		return err
	}
	c.ManuallyLogConfigExposure(user, config)
	return nil
}

// GetExperiment gets the DynamicConfig value of an Experiment for the given user
func GetExperiment(user User, experiment string) (DynamicConfig, error) {
	c, err := getInstance()
	if err != nil {
		return DynamicConfig{}, err
	}
	return c.GetExperiment(user, experiment), nil
}

// GetExperimentWithExposureLoggingDisabled gets the DynamicConfig value of an Experiment for the given user without logging an exposure event
func GetExperimentWithExposureLoggingDisabled(user User, experiment string) (DynamicConfig, error) {
	c, err := getInstance()
	if err != nil {
		return DynamicConfig{}, err
	}
	return c.GetExperimentWithExposureLoggingDisabled(user, experiment), nil
}

// ManuallyLogExperimentExposure logs an exposure event for the experiment
func ManuallyLogExperimentExposure(user User, experiment string) error {
	c, err := getInstance()
	if err != nil {
		return err
	}
	c.ManuallyLogExperimentExposure(user, experiment)
	return nil
}

// GetExperimentLayer returns the layer an experiment belongs to
func GetExperimentLayer(experiment string) (string, bool, error) {
	c, err := getInstance()
	if err != nil {
		return "", false, err
	}
	layer, ok := c.GetExperimentLayer(experiment)
	return layer, ok, nil
}

// GetLayer gets the Layer object for the given user
func GetLayer(user User, layer string) (Layer, error) {
	c, err := getInstance()
	if err != nil {
		return Layer{}, err
	}
	return c.GetLayer(user, layer), nil
}

// GetLayerWithExposureLoggingDisabled gets the Layer object for the given user without logging exposure events on parameter access
func GetLayerWithExposureLoggingDisabled(user User, layer string) (Layer, error) {
	c, err := getInstance()
	if err != nil {
		return Layer{}, err
	}
	return c.GetLayerWithExposureLoggingDisabled(user, layer), nil
}

// ManuallyLogLayerParameterExposure logs an exposure event for the parameter in the given layer
func ManuallyLogLayerParameterExposure(user User, layer string, parameter string) error {
	c, err := getInstance()
	if err != nil {
		return err
	}
	c.ManuallyLogLayerParameterExposure(user, layer, parameter)
	return nil
}

// LogEvent queues a custom event for the Statsig console
func LogEvent(event Event) error {
	c, err := getInstance()
	if err != nil {
		return err
	}
	c.LogEvent(event)
	return nil
}

// OverrideGate overrides the value of a Feature Gate for all users
func OverrideGate(gate string, val bool) error {
	c, err := getInstance()
	if err != nil {
		return err
	}
	c.OverrideGate(gate, val)
	return nil
}

// OverrideConfig overrides the DynamicConfig value for all users
func OverrideConfig(config string, val map[string]interface{}) error {
	c, err := getInstance()
	if err != nil {
		return err
	}
	c.OverrideConfig(config, val)
	return nil
}

// OverrideLayer overrides the Layer values for all users
func OverrideLayer(layer string, val map[string]interface{}) error {
	c, err := getInstance()
	if err != nil {
		return err
	}
	c.OverrideLayer(layer, val)
	return nil
}

// GetClientInitializeResponse evaluates all specs for the user, formatted
// for bootstrapping a Statsig client SDK
func GetClientInitializeResponse(user User) (ClientInitializeResponse, error) {
	return GetClientInitializeResponseWithOptions(user, nil)
}

func GetClientInitializeResponseWithOptions(user User, options *GCIROptions) (ClientInitializeResponse, error) {
	c, err := getInstance()
	if err != nil {
		return ClientInitializeResponse{}, err
	}
	return c.GetClientInitializeResponse(user, options), nil
}

// Shutdown cleans up Statsig, draining any queued events.
// Using any method after Shutdown() has been called is undefined
func Shutdown() error {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		return nil
	}
	return instance.Shutdown()
}

// ShutdownAndDangerouslyClearInstance shuts down and clears the shared
// instance so Initialize can be called again. For tests.
func ShutdownAndDangerouslyClearInstance() {
	_ = Shutdown()
	instanceMu.Lock()
	instance = nil
	instanceMu.Unlock()
}
