package statsig

import (
	"fmt"
	"strings"
	"time"
)

const shutdownDrainTimeout = time.Second * 5

// Client is an instance of a Statsig server client. It evaluates gates,
// configs, experiments, and layers against the locally synced ruleset and
// queues the resulting exposure events.
type Client struct {
	sdkKey        string
	evaluator     *evaluator
	logger        *logger
	transport     *transport
	errorBoundary *errorBoundary
	options       *Options
}

// NewClient creates a client with default options.
func NewClient(sdkKey string) (*Client, error) {
	return NewClientWithOptions(sdkKey, &Options{})
}

// NewClientWithOptions creates a client and begins syncing rulesets. When
// options.InitTimeout is set, the call returns after the timeout with the
// first sync still running in the background.
func NewClientWithOptions(sdkKey string, options *Options) (*Client, error) {
	InitializeGlobalOutputLogger(options.OutputLoggerOptions, options.ObservabilityClient)
	resetSessionID()

	if !options.LocalMode && !strings.HasPrefix(sdkKey, "secret") {
		return nil, fmt.Errorf("%w: %s", ErrInstantiation, InvalidSDKKeyError)
	}

	errorBoundary := newErrorBoundary(sdkKey, options)
	transport := newTransport(sdkKey, options)
	logger := newLogger(transport, options, errorBoundary)
	evaluator := newEvaluator(transport, errorBoundary, options)
	client := &Client{
		sdkKey:        sdkKey,
		evaluator:     evaluator,
		logger:        logger,
		transport:     transport,
		errorBoundary: errorBoundary,
		options:       options,
	}

	if options.InitTimeout > 0 {
		ready := make(chan struct{})
		go func() {
			evaluator.initialize()
			close(ready)
		}()
		select {
		case <-ready:
		case <-time.After(options.InitTimeout):
			Logger().LogStep(StatsigProcessInitialize, "Timed out, returning before the first ruleset sync completed")
		}
	} else {
		evaluator.initialize()
	}
	Logger().Initialize()
	return client, nil
}

// CheckGate checks the value of a feature gate for the given user and logs
// an exposure.
func (c *Client) CheckGate(user User, gate string) bool {
	return c.getGateImpl(user, gate, true, nil).Value
}

// CheckGateWithExposureLoggingDisabled checks a gate without logging an
// exposure.
func (c *Client) CheckGateWithExposureLoggingDisabled(user User, gate string) bool {
	return c.getGateImpl(user, gate, false, nil).Value
}

// GetFeatureGate returns the full gate result, including the matched rule
// and evaluation details.
func (c *Client) GetFeatureGate(user User, gate string) FeatureGate {
	return c.getGateImpl(user, gate, true, nil)
}

func (c *Client) GetFeatureGateWithExposureLoggingDisabled(user User, gate string) FeatureGate {
	return c.getGateImpl(user, gate, false, nil)
}

// ManuallyLogGateExposure logs the exposure a CheckGate call would have
// produced, marked as manual.
func (c *Client) ManuallyLogGateExposure(user User, gate string) {
	c.errorBoundary.captureVoid(func() {
		if !c.verifyUser(user) {
			return
		}
		user = normalizeUser(user, *c.options)
		res := c.evaluator.evalGate(user, gate)
		context := &logContext{isManualExposure: true}
		c.logger.logGateExposure(user, gate, res.Value, res.RuleID, res.SecondaryExposures, res.EvaluationDetails, context)
	}, "manuallyLogGateExposure")
}

func (c *Client) getGateImpl(user User, name string, logExposure bool, context *logContext) FeatureGate {
	return c.errorBoundary.captureCheckGate(func() FeatureGate {
		if !c.verifyUser(user) {
			return *newGate(name, false, "", "", "", nil)
		}
		user = normalizeUser(user, *c.options)
		res := c.evaluator.evalGate(user, name)
		if logExposure {
			c.logger.logGateExposure(user, name, res.Value, res.RuleID, res.SecondaryExposures, res.EvaluationDetails, context)
		}
		return *newGate(name, res.Value, res.RuleID, res.GroupName, res.IDType, res.EvaluationDetails)
	})
}

// GetConfig returns the dynamic config value for the given user and logs an
// exposure.
func (c *Client) GetConfig(user User, config string) DynamicConfig {
	return c.getConfigImpl(user, config, true, nil, "getConfig")
}

func (c *Client) GetConfigWithExposureLoggingDisabled(user User, config string) DynamicConfig {
	return c.getConfigImpl(user, config, false, nil, "getConfig")
}

func (c *Client) ManuallyLogConfigExposure(user User, config string) {
	c.manuallyLogConfigExposureImpl(user, config, "manuallyLogConfigExposure")
}

// GetExperiment returns the experiment variant for the given user and logs
// an exposure. Experiments share the dynamic config shape.
func (c *Client) GetExperiment(user User, experiment string) DynamicConfig {
	return c.getConfigImpl(user, experiment, true, nil, "getExperiment")
}

func (c *Client) GetExperimentWithExposureLoggingDisabled(user User, experiment string) DynamicConfig {
	return c.getConfigImpl(user, experiment, false, nil, "getExperiment")
}

func (c *Client) ManuallyLogExperimentExposure(user User, experiment string) {
	c.manuallyLogConfigExposureImpl(user, experiment, "manuallyLogExperimentExposure")
}

// GetExperimentLayer returns the layer an experiment belongs to.
func (c *Client) GetExperimentLayer(experiment string) (string, bool) {
	return c.errorBoundary.captureGetExperimentLayer(func() (string, bool) {
		return c.evaluator.store.getExperimentLayer(experiment)
	})
}

func (c *Client) getConfigImpl(user User, name string, logExposure bool, context *logContext, tag string) DynamicConfig {
	return c.errorBoundary.captureGetConfig(func() DynamicConfig {
		if !c.verifyUser(user) {
			return *NewConfig(name, nil, "", "", "", nil)
		}
		user = normalizeUser(user, *c.options)
		res := c.evaluator.evalConfig(user, name)
		if logExposure {
			c.logger.logConfigExposure(user, name, res.RuleID, res.SecondaryExposures, res.EvaluationDetails, context)
		}
		return *NewConfig(name, res.JsonValue, res.RuleID, res.GroupName, res.IDType, res.EvaluationDetails)
	}, tag)
}

func (c *Client) manuallyLogConfigExposureImpl(user User, config string, tag string) {
	c.errorBoundary.captureVoid(func() {
		if !c.verifyUser(user) {
			return
		}
		user = normalizeUser(user, *c.options)
		res := c.evaluator.evalConfig(user, config)
		context := &logContext{isManualExposure: true}
		c.logger.logConfigExposure(user, config, res.RuleID, res.SecondaryExposures, res.EvaluationDetails, context)
	}, tag)
}

// GetLayer returns the layer values for the given user. The exposure is
// logged lazily, on the first access of each parameter.
func (c *Client) GetLayer(user User, layer string) Layer {
	return c.getLayerImpl(user, layer, true, nil)
}

func (c *Client) GetLayerWithExposureLoggingDisabled(user User, layer string) Layer {
	return c.getLayerImpl(user, layer, false, nil)
}

// ManuallyLogLayerParameterExposure logs the exposure a parameter access on
// the layer would have produced, marked as manual.
func (c *Client) ManuallyLogLayerParameterExposure(user User, layer string, parameter string) {
	c.errorBoundary.captureVoid(func() {
		if !c.verifyUser(user) {
			return
		}
		user = normalizeUser(user, *c.options)
		res := c.evaluator.evalLayer(user, layer)
		config := configBase{Name: layer, RuleID: res.RuleID}
		context := &logContext{isManualExposure: true}
		c.logger.logLayerExposure(user, config, parameter, *res, res.EvaluationDetails, context)
	}, "manuallyLogLayerParameterExposure")
}

func (c *Client) getLayerImpl(user User, name string, logExposure bool, context *logContext) Layer {
	return c.errorBoundary.captureGetLayer(func() Layer {
		if !c.verifyUser(user) {
			return *NewLayer(name, nil, "", "", nil, nil, "")
		}
		user = normalizeUser(user, *c.options)
		res := c.evaluator.evalLayer(user, name)
		logFunc := func(layer configBase, parameterName string) {
			if !logExposure {
				return
			}
			c.logger.logLayerExposure(user, layer, parameterName, *res, res.EvaluationDetails, context)
		}
		return *NewLayer(name, res.JsonValue, res.RuleID, res.GroupName, res.EvaluationDetails, &logFunc, res.ConfigDelegate)
	})
}

// LogEvent queues a custom event. Events without a name are dropped.
func (c *Client) LogEvent(event Event) {
	c.errorBoundary.captureVoid(func() {
		event.User = normalizeUser(event.User, *c.options)
		if event.EventName == "" {
			return
		}
		c.logger.logCustom(event)
	}, "logEvent")
}

// OverrideGate sets a local override for the gate, applied to every user
// until the client shuts down.
func (c *Client) OverrideGate(gate string, val bool) {
	c.errorBoundary.captureVoid(func() {
		c.evaluator.overrideGate(gate, val)
	}, "overrideGate")
}

// OverrideConfig sets a local override for the config value.
func (c *Client) OverrideConfig(config string, val map[string]interface{}) {
	c.errorBoundary.captureVoid(func() {
		c.evaluator.overrideConfig(config, val)
	}, "overrideConfig")
}

// OverrideLayer sets a local override for the layer values.
func (c *Client) OverrideLayer(layer string, val map[string]interface{}) {
	c.errorBoundary.captureVoid(func() {
		c.evaluator.overrideLayer(layer, val)
	}, "overrideLayer")
}

// GetClientInitializeResponse evaluates every spec for the user and formats
// the results for client SDK bootstrapping.
func (c *Client) GetClientInitializeResponse(user User, options *GCIROptions) ClientInitializeResponse {
	return c.errorBoundary.captureGetClientInitializeResponse(func() ClientInitializeResponse {
		if !c.verifyUser(user) {
			return ClientInitializeResponse{}
		}
		user = normalizeUser(user, *c.options)
		return getClientInitializeResponse(user, c.evaluator, options)
	})
}

// Shutdown stops background syncing and drains queued events. Using the
// client after Shutdown is undefined.
func (c *Client) Shutdown() error {
	err := c.logger.shutdown(shutdownDrainTimeout)
	c.evaluator.shutdown()
	Logger().Shutdown()
	return err
}

func (c *Client) verifyUser(user User) bool {
	if user.UserID == "" && len(user.CustomIDs) == 0 {
		Logger().Log(EmptyUserError, nil)
		return false
	}
	return true
}

// The SDK environment replaces whatever the caller set on the user so that
// one client reports a single consistent tier.
func normalizeUser(user User, options Options) User {
	if options.Environment.Tier == "" && len(options.Environment.Params) == 0 {
		return user
	}
	env := make(map[string]string)
	for k, v := range options.Environment.Params {
		env[k] = v
	}
	if options.Environment.Tier != "" {
		env["tier"] = options.Environment.Tier
	}
	user.StatsigEnvironment = env
	return user
}
