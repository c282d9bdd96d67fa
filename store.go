package statsig

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
)

type configCondition struct {
	Type             string                 `json:"type"`
	Operator         string                 `json:"operator"`
	Field            string                 `json:"field"`
	TargetValue      interface{}            `json:"targetValue"`
	AdditionalValues map[string]interface{} `json:"additionalValues"`
	IDType           string                 `json:"idType"`
}

type configRule struct {
	Name              string                 `json:"name"`
	ID                string                 `json:"id"`
	GroupName         string                 `json:"groupName,omitempty"`
	Salt              string                 `json:"salt"`
	PassPercentage    float64                `json:"passPercentage"`
	Conditions        []configCondition      `json:"conditions"`
	ReturnValue       json.RawMessage        `json:"returnValue"`
	ReturnValueJSON   map[string]interface{} `json:"-"`
	IDType            string                 `json:"idType"`
	ConfigDelegate    string                 `json:"configDelegate,omitempty"`
	IsExperimentGroup *bool                  `json:"isExperimentGroup,omitempty"`
}

type configSpec struct {
	Name               string                 `json:"name"`
	Type               string                 `json:"type"`
	Salt               string                 `json:"salt"`
	Enabled            bool                   `json:"enabled"`
	Rules              []configRule           `json:"rules"`
	DefaultValue       json.RawMessage        `json:"defaultValue"`
	DefaultValueJSON   map[string]interface{} `json:"-"`
	IDType             string                 `json:"idType"`
	ExplicitParameters []string               `json:"explicitParameters"`
	Entity             string                 `json:"entity,omitempty"`
	IsActive           *bool                  `json:"isActive,omitempty"`
	HasSharedParams    *bool                  `json:"hasSharedParams,omitempty"`
	TargetAppIDs       []string               `json:"targetAppIDs,omitempty"`
}

func (spec *configSpec) hasTargetAppID(appID string) bool {
	if appID == "" {
		return true
	}
	for _, id := range spec.TargetAppIDs {
		if id == appID {
			return true
		}
	}
	return false
}

// The `time` field arrives as a JSON number from the CDN but some proxies
// stringify it. Both forms normalize to epoch milliseconds.
type syncTime int64

func (t *syncTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		v = int64(f)
	}
	*t = syncTime(v)
	return nil
}

func (t syncTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(t), 10)), nil
}

type downloadConfigSpecResponse struct {
	HasUpdates      bool                `json:"has_updates"`
	Time            syncTime            `json:"time"`
	FeatureGates    []configSpec        `json:"feature_gates"`
	DynamicConfigs  []configSpec        `json:"dynamic_configs"`
	LayerConfigs    []configSpec        `json:"layer_configs"`
	Layers          map[string][]string `json:"layers"`
	SDKKeysToAppIDs map[string]string   `json:"sdk_keys_to_app_ids"`
}

// An immutable view of one parsed ruleset. Evaluations grab the current
// snapshot once and traverse it, so a concurrent sync can never mix specs
// from two payloads into a single evaluation.
type specSnapshot struct {
	gates             map[string]configSpec
	configs           map[string]configSpec
	layers            map[string]configSpec
	experimentToLayer map[string]string
	sdkKeysToAppIDs   map[string]string
	lastSyncTime      int64
	initTime          int64
	reason            EvaluationReason
}

func emptySnapshot() *specSnapshot {
	return &specSnapshot{
		gates:             make(map[string]configSpec),
		configs:           make(map[string]configSpec),
		layers:            make(map[string]configSpec),
		experimentToLayer: make(map[string]string),
		sdkKeysToAppIDs:   make(map[string]string),
		reason:            reasonUninitialized,
	}
}

func (s *specSnapshot) isPopulated() bool {
	return s.reason != reasonUninitialized
}

type store struct {
	snapshot             *specSnapshot
	mu                   sync.RWMutex
	transport            *transport
	errorBoundary        *errorBoundary
	dataAdapter          IDataAdapter
	configSyncInterval   time.Duration
	bootstrapValues      string
	rulesUpdatedCallback func(rules string, time int64)
	syncTicker           *time.Ticker
	stopChan             chan struct{}
	stopOnce             sync.Once
	initialized          bool
}

func newStore(transport *transport, errorBoundary *errorBoundary, options *Options) *store {
	return &store{
		snapshot:             emptySnapshot(),
		transport:            transport,
		errorBoundary:        errorBoundary,
		dataAdapter:          options.DataAdapter,
		configSyncInterval:   defaultDuration(options.ConfigSyncInterval, 10*time.Second),
		bootstrapValues:      options.BootstrapValues,
		rulesUpdatedCallback: options.RulesUpdatedCallback,
		stopChan:             make(chan struct{}),
	}
}

func (s *store) initialize() {
	if s.dataAdapter != nil {
		s.callAdapter("initialize", func() { s.dataAdapter.Initialize() })
		s.fetchConfigSpecsFromAdapter()
	} else if s.bootstrapValues != "" {
		if !s.processConfigSpecs(s.bootstrapValues, reasonBootstrap) {
			Logger().Log("Failed to load bootstrap values, fetching from server", nil)
		}
	}
	if !s.getSnapshot().isPopulated() {
		s.fetchConfigSpecsFromServer()
	}
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	s.startPolling()
}

func (s *store) getSnapshot() *specSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *store) getGate(name string) (configSpec, bool) {
	snapshot := s.getSnapshot()
	gate, ok := snapshot.gates[name]
	return gate, ok
}

func (s *store) getDynamicConfig(name string) (configSpec, bool) {
	snapshot := s.getSnapshot()
	config, ok := snapshot.configs[name]
	return config, ok
}

func (s *store) getLayerConfig(name string) (configSpec, bool) {
	snapshot := s.getSnapshot()
	layer, ok := snapshot.layers[name]
	return layer, ok
}

func (s *store) getExperimentLayer(experiment string) (string, bool) {
	snapshot := s.getSnapshot()
	layer, ok := snapshot.experimentToLayer[experiment]
	return layer, ok
}

func (s *store) getAppIDForSDKKey(clientKey string) (string, bool) {
	if clientKey == "" {
		return "", false
	}
	snapshot := s.getSnapshot()
	appID, ok := snapshot.sdkKeysToAppIDs[clientKey]
	return appID, ok
}

func (s *store) lastSyncTime() int64 {
	return s.getSnapshot().lastSyncTime
}

func (s *store) fetchConfigSpecsFromServer() {
	prev := s.lastSyncTime()
	var specs downloadConfigSpecResponse
	err := s.transport.downloadConfigSpecs(prev, &specs)
	if err != nil {
		s.errorBoundary.logException(err)
		Logger().Increment("config_sync_failure", 1, map[string]interface{}{"source": "network"})
		return
	}
	updated := s.applyConfigSpecs(specs, reasonNetwork)
	if updated && s.dataAdapter != nil {
		s.saveConfigSpecsToAdapter(specs)
	}
	Logger().LogConfigSyncUpdate(s.isInitialized(), updated, s.lastSyncTime(), prev, "network")
}

func (s *store) fetchConfigSpecsFromAdapter() {
	prev := s.lastSyncTime()
	specString := ""
	ok := s.callAdapter("get", func() { specString = s.dataAdapter.Get(CONFIG_SPECS_KEY) })
	if !ok || specString == "" {
		return
	}
	updated := s.processConfigSpecs(specString, reasonDataAdapter)
	Logger().LogConfigSyncUpdate(s.isInitialized(), updated, s.lastSyncTime(), prev, "adapter")
}

func (s *store) saveConfigSpecsToAdapter(specs downloadConfigSpecResponse) {
	specString, err := jsonConfig.Marshal(specs)
	if err != nil {
		s.errorBoundary.logException(err)
		return
	}
	s.callAdapter("set", func() { s.dataAdapter.Set(CONFIG_SPECS_KEY, string(specString)) })
}

// Runs op with panics contained, so a misbehaving adapter degrades the SDK
// to network-only operation instead of crashing the host process.
func (s *store) callAdapter(method string, op func()) (success bool) {
	defer func() {
		if err := recover(); err != nil {
			success = false
			dataAdapterError := DataAdapterError{Err: toError(err), Method: method}
			s.errorBoundary.logException(&dataAdapterError)
			Logger().Log("", &dataAdapterError)
		}
	}()
	op()
	return true
}

func (s *store) processConfigSpecs(configSpecs string, reason EvaluationReason) bool {
	var specs downloadConfigSpecResponse
	if err := jsonConfig.Unmarshal([]byte(configSpecs), &specs); err != nil {
		s.errorBoundary.logException(err)
		return false
	}
	return s.applyConfigSpecs(specs, reason)
}

// A payload is applied only when it carries updates and its time does not
// move backwards.
func (s *store) applyConfigSpecs(specs downloadConfigSpecResponse, reason EvaluationReason) bool {
	if !specs.HasUpdates || int64(specs.Time) < s.lastSyncTime() {
		return false
	}

	newGates := make(map[string]configSpec, len(specs.FeatureGates))
	for _, gate := range specs.FeatureGates {
		parseJSONValuesFromSpec(&gate)
		newGates[gate.Name] = gate
	}

	newConfigs := make(map[string]configSpec, len(specs.DynamicConfigs))
	for _, config := range specs.DynamicConfigs {
		parseJSONValuesFromSpec(&config)
		newConfigs[config.Name] = config
	}

	newLayers := make(map[string]configSpec, len(specs.LayerConfigs))
	for _, layer := range specs.LayerConfigs {
		parseJSONValuesFromSpec(&layer)
		newLayers[layer.Name] = layer
	}

	newExperimentToLayer := make(map[string]string)
	for layerName, experiments := range specs.Layers {
		if _, ok := newLayers[layerName]; !ok {
			continue
		}
		for _, experimentName := range experiments {
			newExperimentToLayer[experimentName] = layerName
		}
	}

	s.mu.Lock()
	initTime := s.snapshot.initTime
	if initTime == 0 {
		initTime = int64(specs.Time)
	}
	newSDKKeys := specs.SDKKeysToAppIDs
	if newSDKKeys == nil {
		newSDKKeys = make(map[string]string)
	}
	s.snapshot = &specSnapshot{
		gates:             newGates,
		configs:           newConfigs,
		layers:            newLayers,
		experimentToLayer: newExperimentToLayer,
		sdkKeysToAppIDs:   newSDKKeys,
		lastSyncTime:      int64(specs.Time),
		initTime:          initTime,
		reason:            reason,
	}
	s.mu.Unlock()

	if s.rulesUpdatedCallback != nil {
		if rules, err := jsonConfig.Marshal(specs); err == nil {
			s.rulesUpdatedCallback(string(rules), int64(specs.Time))
		}
	}
	return true
}

func parseJSONValuesFromSpec(spec *configSpec) {
	var defaultValue map[string]interface{}
	if err := jsonConfig.Unmarshal(spec.DefaultValue, &defaultValue); err != nil {
		defaultValue = nil
	}
	spec.DefaultValueJSON = defaultValue
	for i := range spec.Rules {
		var returnValue map[string]interface{}
		if err := jsonConfig.Unmarshal(spec.Rules[i].ReturnValue, &returnValue); err != nil {
			returnValue = nil
		}
		spec.Rules[i].ReturnValueJSON = returnValue
	}
}

func (s *store) isInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *store) startPolling() {
	if s.configSyncInterval <= 0 {
		return
	}
	s.syncTicker = time.NewTicker(s.configSyncInterval)
	go func() {
		for {
			select {
			case <-s.stopChan:
				return
			case <-s.syncTicker.C:
				s.sync()
			}
		}
	}()
}

func (s *store) sync() {
	useAdapter := false
	if s.dataAdapter != nil {
		s.callAdapter("shouldBeUsedForQueryingUpdates", func() {
			useAdapter = s.dataAdapter.ShouldBeUsedForQueryingUpdates(CONFIG_SPECS_KEY)
		})
	}
	if useAdapter {
		s.fetchConfigSpecsFromAdapter()
	} else {
		s.fetchConfigSpecsFromServer()
	}
}

func (s *store) stopPolling() {
	s.stopOnce.Do(func() {
		if s.syncTicker != nil {
			s.syncTicker.Stop()
		}
		close(s.stopChan)
	})
}

func (s *store) shutdown() {
	s.stopPolling()
	if s.dataAdapter != nil {
		s.callAdapter("shutdown", func() { s.dataAdapter.Shutdown() })
	}
}
