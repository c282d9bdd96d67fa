package statsig

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

type ClientInitializeResponse struct {
	FeatureGates   map[string]GateInitializeResponse   `json:"feature_gates"`
	DynamicConfigs map[string]ConfigInitializeResponse `json:"dynamic_configs"`
	LayerConfigs   map[string]LayerInitializeResponse  `json:"layer_configs"`
	SdkParams      map[string]string                   `json:"sdkParams"`
	HasUpdates     bool                                `json:"has_updates"`
	Generator      string                              `json:"generator"`
	EvaluatedKeys  map[string]interface{}              `json:"evaluated_keys"`
	Time           int64                               `json:"time"`
}

type baseSpecInitializeResponse struct {
	Name               string              `json:"name"`
	RuleID             string              `json:"rule_id"`
	SecondaryExposures []map[string]string `json:"secondary_exposures"`
}

type GateInitializeResponse struct {
	baseSpecInitializeResponse
	Value  bool   `json:"value"`
	IDType string `json:"id_type,omitempty"`
}

type ConfigInitializeResponse struct {
	baseSpecInitializeResponse
	Value              map[string]interface{} `json:"value"`
	Group              string                 `json:"group"`
	IsDeviceBased      bool                   `json:"is_device_based"`
	IsExperimentActive *bool                  `json:"is_experiment_active,omitempty"`
	IsUserInExperiment *bool                  `json:"is_user_in_experiment,omitempty"`
	IsInLayer          *bool                  `json:"is_in_layer,omitempty"`
	ExplicitParameters *[]string              `json:"explicit_parameters,omitempty"`
	GroupName          string                 `json:"group_name,omitempty"`
	IDType             string                 `json:"id_type,omitempty"`
}

type LayerInitializeResponse struct {
	baseSpecInitializeResponse
	Value                         map[string]interface{} `json:"value"`
	Group                         string                 `json:"group"`
	IsDeviceBased                 bool                   `json:"is_device_based"`
	IsExperimentActive            *bool                  `json:"is_experiment_active,omitempty"`
	IsUserInExperiment            *bool                  `json:"is_user_in_experiment,omitempty"`
	ExplicitParameters            *[]string              `json:"explicit_parameters,omitempty"`
	AllocatedExperimentName       string                 `json:"allocated_experiment_name,omitempty"`
	UndelegatedSecondaryExposures []map[string]string    `json:"undelegated_secondary_exposures"`
	GroupName                     string                 `json:"group_name,omitempty"`
}

func hashName(configName string) string {
	hasher := sha256.New()
	hasher.Write([]byte(configName))
	return base64.StdEncoding.EncodeToString(hasher.Sum(nil))
}

// Segment gates are excluded from the response, so references to them are
// scrubbed from exposure chains as well.
func cleanExposures(exposures []map[string]string) []map[string]string {
	result := make([]map[string]string, 0)
	for _, exposure := range exposures {
		if strings.HasPrefix(exposure["gate"], "segment:") {
			continue
		}
		result = append(result, exposure)
	}
	return result
}

func mergeMaps(a map[string]interface{}, b map[string]interface{}) {
	for k, v := range b {
		a[k] = v
	}
}

// getClientInitializeResponse evaluates the whole active snapshot for one
// user and shapes the results the way client SDKs expect from /initialize.
// Spec names are hashed so the payload does not leak the full project setup.
func getClientInitializeResponse(user User, e *evaluator, options *GCIROptions) ClientInitializeResponse {
	if options == nil {
		options = &GCIROptions{}
	}
	snapshot := e.store.getSnapshot()

	evalResultToBaseResponse := func(name string, res *evalResult) (string, baseSpecInitializeResponse) {
		hashedName := hashName(name)
		return hashedName, baseSpecInitializeResponse{
			Name:               hashedName,
			RuleID:             res.RuleID,
			SecondaryExposures: cleanExposures(res.SecondaryExposures),
		}
	}
	gateToResponse := func(gateName string, spec configSpec, res *evalResult) (string, GateInitializeResponse) {
		hashedName, base := evalResultToBaseResponse(gateName, res)
		result := GateInitializeResponse{
			baseSpecInitializeResponse: base,
			Value:                      res.Value,
			IDType:                     spec.IDType,
		}
		return hashedName, result
	}
	configToResponse := func(configName string, spec configSpec, res *evalResult) (string, ConfigInitializeResponse) {
		hashedName, base := evalResultToBaseResponse(configName, res)
		result := ConfigInitializeResponse{
			baseSpecInitializeResponse: base,
			Value:                      res.JsonValue,
			Group:                      res.RuleID,
			IsDeviceBased:              strings.EqualFold(spec.IDType, "stableid"),
		}
		if !strings.EqualFold(spec.Entity, LayerType) {
			result.IDType = spec.IDType
		}
		if res.GroupName != "" {
			result.GroupName = res.GroupName
		}
		if strings.EqualFold(spec.Entity, ExperimentType) {
			result.IsUserInExperiment = new(bool)
			*result.IsUserInExperiment = res.IsExperimentGroup
			result.IsExperimentActive = new(bool)
			*result.IsExperimentActive = spec.IsActive != nil && *spec.IsActive
			if spec.HasSharedParams != nil && *spec.HasSharedParams {
				result.IsInLayer = new(bool)
				*result.IsInLayer = true
				result.ExplicitParameters = new([]string)
				*result.ExplicitParameters = spec.ExplicitParameters
				if layerName, inLayer := snapshot.experimentToLayer[configName]; inLayer {
					if layer, exists := snapshot.layers[layerName]; exists {
						value := make(map[string]interface{})
						mergeMaps(value, layer.DefaultValueJSON)
						mergeMaps(value, result.Value)
						result.Value = value
					}
				}
			}
		}
		return hashedName, result
	}
	layerToResponse := func(layerName string, spec configSpec, res *evalResult) (string, LayerInitializeResponse) {
		hashedName, base := evalResultToBaseResponse(layerName, res)
		result := LayerInitializeResponse{
			baseSpecInitializeResponse:    base,
			Value:                         res.JsonValue,
			Group:                         res.RuleID,
			IsDeviceBased:                 strings.EqualFold(spec.IDType, "stableid"),
			UndelegatedSecondaryExposures: make([]map[string]string, 0),
		}
		result.ExplicitParameters = new([]string)
		if len(spec.ExplicitParameters) > 0 {
			*result.ExplicitParameters = spec.ExplicitParameters
		} else {
			*result.ExplicitParameters = make([]string, 0)
		}
		if res.ConfigDelegate != "" {
			if delegateSpec, exists := snapshot.configs[res.ConfigDelegate]; exists {
				result.AllocatedExperimentName = hashName(res.ConfigDelegate)
				result.IsUserInExperiment = new(bool)
				*result.IsUserInExperiment = res.IsExperimentGroup
				result.IsExperimentActive = new(bool)
				*result.IsExperimentActive = delegateSpec.IsActive != nil && *delegateSpec.IsActive
				if len(delegateSpec.ExplicitParameters) > 0 {
					*result.ExplicitParameters = delegateSpec.ExplicitParameters
				}
				if res.GroupName != "" {
					result.GroupName = res.GroupName
				}
				result.UndelegatedSecondaryExposures = cleanExposures(res.UndelegatedSecondaryExposures)
			}
		}
		return hashedName, result
	}

	appID := options.TargetAppID
	if appID == "" {
		appID, _ = e.store.getAppIDForSDKKey(options.ClientKey)
	}

	evalSpec := func(spec configSpec, override *evalResult) *evalResult {
		if options.IncludeLocalOverrides && override != nil {
			return override
		}
		return e.eval(user, spec, 0, snapshot)
	}
	gateOverride := func(name string) *evalResult {
		if value, ok := e.getGateOverride(name); ok {
			return &evalResult{Value: value, RuleID: "override"}
		}
		return nil
	}
	valueOverride := func(value map[string]interface{}, ok bool) *evalResult {
		if ok {
			return &evalResult{JsonValue: value, RuleID: "override"}
		}
		return nil
	}

	featureGates := make(map[string]GateInitializeResponse)
	dynamicConfigs := make(map[string]ConfigInitializeResponse)
	layerConfigs := make(map[string]LayerInitializeResponse)
	for name, spec := range snapshot.gates {
		if !spec.hasTargetAppID(appID) {
			continue
		}
		if strings.EqualFold(spec.Entity, SegmentType) || strings.EqualFold(spec.Entity, HoldoutType) {
			continue
		}
		res := evalSpec(spec, gateOverride(name))
		if res.Unsupported {
			continue
		}
		hashedName, entry := gateToResponse(name, spec, res)
		featureGates[hashedName] = entry
	}
	for name, spec := range snapshot.configs {
		if !spec.hasTargetAppID(appID) {
			continue
		}
		res := evalSpec(spec, valueOverride(e.getConfigOverride(name)))
		if res.Unsupported {
			continue
		}
		hashedName, entry := configToResponse(name, spec, res)
		dynamicConfigs[hashedName] = entry
	}
	for name, spec := range snapshot.layers {
		if !spec.hasTargetAppID(appID) {
			continue
		}
		res := evalSpec(spec, valueOverride(e.getLayerOverride(name)))
		if res.Unsupported {
			continue
		}
		hashedName, entry := layerToResponse(name, spec, res)
		layerConfigs[hashedName] = entry
	}

	evaluatedKeys := make(map[string]interface{})
	if user.UserID != "" {
		evaluatedKeys["userID"] = user.UserID
	}
	if len(user.CustomIDs) > 0 {
		evaluatedKeys["customIDs"] = user.CustomIDs
	}

	return ClientInitializeResponse{
		FeatureGates:   featureGates,
		DynamicConfigs: dynamicConfigs,
		LayerConfigs:   layerConfigs,
		SdkParams:      make(map[string]string),
		HasUpdates:     true,
		Generator:      "statsig-go-server-core",
		EvaluatedKeys:  evaluatedKeys,
		Time:           0,
	}
}
