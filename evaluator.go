package statsig

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Rule graphs are acyclic upstream, so this bound only trips on corrupt
// payloads. Exceeding it degrades the evaluation to unsupported.
const maxRecursiveDepth = 16

type evalResult struct {
	Value                         bool
	JsonValue                     map[string]interface{}
	RuleID                        string
	GroupName                     string
	IDType                        string
	SecondaryExposures            []map[string]string
	UndelegatedSecondaryExposures []map[string]string
	ConfigDelegate                string
	ExplicitParameters            map[string]bool
	IsExperimentGroup             bool
	Unsupported                   bool
	EvaluationDetails             *EvaluationDetails
}

type evaluator struct {
	store           *store
	countryLookup   *countryLookup
	uaParser        *uaParser
	gateOverrides   map[string]bool
	configOverrides map[string]map[string]interface{}
	layerOverrides  map[string]map[string]interface{}
	mu              sync.RWMutex
}

func newEvaluator(transport *transport, errorBoundary *errorBoundary, options *Options) *evaluator {
	store := newStore(transport, errorBoundary, options)
	return &evaluator{
		store:           store,
		countryLookup:   newCountryLookup(options.IPCountryOptions),
		uaParser:        newUAParser(options.UAParserOptions),
		gateOverrides:   make(map[string]bool),
		configOverrides: make(map[string]map[string]interface{}),
		layerOverrides:  make(map[string]map[string]interface{}),
	}
}

func (e *evaluator) initialize() {
	e.store.initialize()
	e.countryLookup.init()
	e.uaParser.init()
}

func (e *evaluator) shutdown() {
	e.store.shutdown()
}

func (e *evaluator) evalGate(user User, gateName string) *evalResult {
	snapshot := e.store.getSnapshot()
	if override, hasOverride := e.getGateOverride(gateName); hasOverride {
		return &evalResult{
			Value:             override,
			RuleID:            "override",
			EvaluationDetails: newEvaluationDetails(reasonLocalOverride, snapshot.lastSyncTime, snapshot.initTime),
		}
	}
	gate, hasGate := snapshot.gates[gateName]
	if !hasGate {
		return unrecognizedResult(snapshot)
	}
	return finalizeResult(e.eval(user, gate, 0, snapshot), gate, snapshot)
}

func (e *evaluator) evalConfig(user User, configName string) *evalResult {
	snapshot := e.store.getSnapshot()
	if override, hasOverride := e.getConfigOverride(configName); hasOverride {
		return &evalResult{
			JsonValue:         override,
			RuleID:            "override",
			EvaluationDetails: newEvaluationDetails(reasonLocalOverride, snapshot.lastSyncTime, snapshot.initTime),
		}
	}
	config, hasConfig := snapshot.configs[configName]
	if !hasConfig {
		return unrecognizedResult(snapshot)
	}
	return finalizeResult(e.eval(user, config, 0, snapshot), config, snapshot)
}

func (e *evaluator) evalLayer(user User, layerName string) *evalResult {
	snapshot := e.store.getSnapshot()
	if override, hasOverride := e.getLayerOverride(layerName); hasOverride {
		return &evalResult{
			JsonValue:         override,
			RuleID:            "override",
			EvaluationDetails: newEvaluationDetails(reasonLocalOverride, snapshot.lastSyncTime, snapshot.initTime),
		}
	}
	layer, hasLayer := snapshot.layers[layerName]
	if !hasLayer {
		return unrecognizedResult(snapshot)
	}
	return finalizeResult(e.eval(user, layer, 0, snapshot), layer, snapshot)
}

func unrecognizedResult(snapshot *specSnapshot) *evalResult {
	reason := reasonUnrecognized
	if !snapshot.isPopulated() {
		reason = reasonUninitialized
	}
	return &evalResult{
		RuleID:            "default",
		EvaluationDetails: newEvaluationDetails(reason, snapshot.lastSyncTime, snapshot.initTime),
	}
}

// An unsupported result passes the config's defaults through so callers
// always have a usable value.
func finalizeResult(result *evalResult, spec configSpec, snapshot *specSnapshot) *evalResult {
	if !result.Unsupported {
		return result
	}
	return &evalResult{
		JsonValue:         spec.DefaultValueJSON,
		RuleID:            "unsupported",
		IDType:            spec.IDType,
		Unsupported:       true,
		EvaluationDetails: newEvaluationDetails(reasonUnsupported, snapshot.lastSyncTime, snapshot.initTime),
	}
}

func (e *evaluator) eval(user User, spec configSpec, depth int, snapshot *specSnapshot) *evalResult {
	if depth > maxRecursiveDepth {
		return &evalResult{Unsupported: true}
	}
	details := newEvaluationDetails(snapshot.reason, snapshot.lastSyncTime, snapshot.initTime)

	if !spec.Enabled {
		return &evalResult{
			Value:             false,
			JsonValue:         spec.DefaultValueJSON,
			RuleID:            "disabled",
			IDType:            spec.IDType,
			EvaluationDetails: details,
		}
	}

	exposures := make([]map[string]string, 0)
	for _, rule := range spec.Rules {
		r := e.evalRule(user, rule, depth+1, snapshot)
		if r.Unsupported {
			return r
		}
		exposures = append(exposures, r.SecondaryExposures...)
		if !r.Value {
			continue
		}
		if rule.ConfigDelegate != "" {
			if delegated := e.evalDelegate(user, rule, exposures, depth+1, snapshot); delegated != nil {
				return delegated
			}
		}
		pass := evalPassPercent(user, rule, spec)
		result := &evalResult{
			Value:              pass,
			RuleID:             rule.ID,
			GroupName:          rule.GroupName,
			IDType:             spec.IDType,
			IsExperimentGroup:  rule.IsExperimentGroup != nil && *rule.IsExperimentGroup,
			SecondaryExposures: exposures,
			EvaluationDetails:  details,
		}
		if pass {
			result.JsonValue = rule.ReturnValueJSON
		} else {
			result.JsonValue = spec.DefaultValueJSON
		}
		return result
	}

	return &evalResult{
		Value:              false,
		JsonValue:          spec.DefaultValueJSON,
		RuleID:             "default",
		IDType:             spec.IDType,
		SecondaryExposures: exposures,
		EvaluationDetails:  details,
	}
}

func (e *evaluator) evalRule(user User, rule configRule, depth int, snapshot *specSnapshot) *evalResult {
	if depth > maxRecursiveDepth {
		return &evalResult{Unsupported: true}
	}
	pass := true
	exposures := make([]map[string]string, 0)
	for _, condition := range rule.Conditions {
		res := e.evalCondition(user, condition, depth+1, snapshot)
		if res.Unsupported {
			return res
		}
		exposures = append(exposures, res.SecondaryExposures...)
		if !res.Value {
			pass = false
		}
	}
	return &evalResult{Value: pass, SecondaryExposures: exposures}
}

// Delegated rules hand the evaluation off to an experiment. The exposures
// accumulated before the handoff are preserved separately so implicit layer
// parameter reads do not attribute the experiment.
func (e *evaluator) evalDelegate(user User, rule configRule, exposures []map[string]string, depth int, snapshot *specSnapshot) *evalResult {
	config, hasConfig := snapshot.configs[rule.ConfigDelegate]
	if !hasConfig {
		return nil
	}
	result := e.eval(user, config, depth+1, snapshot)
	result.ConfigDelegate = rule.ConfigDelegate
	result.SecondaryExposures = append(exposures, result.SecondaryExposures...)
	result.UndelegatedSecondaryExposures = exposures
	result.ExplicitParameters = explicitParams(config)
	return result
}

func explicitParams(spec configSpec) map[string]bool {
	params := make(map[string]bool, len(spec.ExplicitParameters))
	for _, param := range spec.ExplicitParameters {
		params[param] = true
	}
	return params
}

func (e *evaluator) evalNestedGate(user User, gateName string, depth int, snapshot *specSnapshot) *evalResult {
	if gate, hasGate := snapshot.gates[gateName]; hasGate {
		return e.eval(user, gate, depth, snapshot)
	}
	return &evalResult{}
}

func (e *evaluator) evalCondition(user User, condition configCondition, depth int, snapshot *specSnapshot) *evalResult {
	if depth > maxRecursiveDepth {
		return &evalResult{Unsupported: true}
	}
	var value interface{}

	condType := strings.ToLower(condition.Type)
	switch condType {
	case "public":
		return &evalResult{Value: true}
	case "fail_gate", "pass_gate":
		gateName, ok := condition.TargetValue.(string)
		if !ok {
			return &evalResult{Unsupported: true}
		}
		result := e.evalNestedGate(user, gateName, depth+1, snapshot)
		if result.Unsupported {
			return result
		}
		allExposures := append(result.SecondaryExposures, map[string]string{
			"gate":      gateName,
			"gateValue": strconv.FormatBool(result.Value),
			"ruleID":    result.RuleID,
		})
		pass := result.Value
		if condType == "fail_gate" {
			pass = !pass
		}
		return &evalResult{Value: pass, SecondaryExposures: allExposures}
	case "ip_based":
		value = getFromUser(user, condition.Field)
		if value == nil || value == "" {
			value = getFromIP(user, condition.Field, e.countryLookup)
		}
	case "ua_based":
		value = getFromUser(user, condition.Field)
		if value == nil || value == "" {
			if !e.uaParser.settled() {
				return &evalResult{Unsupported: true}
			}
			value = getFromUserAgent(user, condition.Field, e.uaParser)
		}
	case "user_field":
		value = getFromUser(user, condition.Field)
	case "environment_field":
		value = getFromEnvironment(user, condition.Field)
	case "current_time":
		value = strconv.FormatInt(getUnixMilli(), 10)
	case "user_bucket":
		if salt, ok := condition.AdditionalValues["salt"]; ok {
			if saltStr, ok := salt.(string); ok {
				value = int64(getHash(saltStr+"."+getUnitID(user, condition.IDType)) % 1000)
			}
		}
	case "unit_id":
		value = getUnitID(user, condition.IDType)
	default:
		return &evalResult{Unsupported: true}
	}

	pass := false
	server := false
	switch strings.ToLower(condition.Operator) {
	case "gt":
		pass = compareNumbers(value, condition.TargetValue, func(x, y float64) bool { return x > y })
	case "gte":
		pass = compareNumbers(value, condition.TargetValue, func(x, y float64) bool { return x >= y })
	case "lt":
		pass = compareNumbers(value, condition.TargetValue, func(x, y float64) bool { return x < y })
	case "lte":
		pass = compareNumbers(value, condition.TargetValue, func(x, y float64) bool { return x <= y })
	case "version_gt":
		pass = compareVersions(value, condition.TargetValue, func(x, y string) bool { return compareVersionsHelper(x, y) > 0 })
	case "version_gte":
		pass = compareVersions(value, condition.TargetValue, func(x, y string) bool { return compareVersionsHelper(x, y) >= 0 })
	case "version_lt":
		pass = compareVersions(value, condition.TargetValue, func(x, y string) bool { return compareVersionsHelper(x, y) < 0 })
	case "version_lte":
		pass = compareVersions(value, condition.TargetValue, func(x, y string) bool { return compareVersionsHelper(x, y) <= 0 })
	case "version_eq":
		pass = compareVersions(value, condition.TargetValue, func(x, y string) bool { return compareVersionsHelper(x, y) == 0 })
	case "version_neq":
		pass = compareVersions(value, condition.TargetValue, func(x, y string) bool { return compareVersionsHelper(x, y) != 0 })
	case "any":
		pass = arrayAny(condition.TargetValue, value, func(x, y interface{}) bool {
			return compareStrings(x, y, true, func(s1, s2 string) bool { return s1 == s2 })
		})
	case "none":
		pass = !arrayAny(condition.TargetValue, value, func(x, y interface{}) bool {
			return compareStrings(x, y, true, func(s1, s2 string) bool { return s1 == s2 })
		})
	case "any_case_sensitive":
		pass = arrayAny(condition.TargetValue, value, func(x, y interface{}) bool {
			return compareStrings(x, y, false, func(s1, s2 string) bool { return s1 == s2 })
		})
	case "none_case_sensitive":
		pass = !arrayAny(condition.TargetValue, value, func(x, y interface{}) bool {
			return compareStrings(x, y, false, func(s1, s2 string) bool { return s1 == s2 })
		})
	case "str_starts_with_any":
		pass = arrayAny(condition.TargetValue, value, func(x, y interface{}) bool {
			return compareStrings(x, y, true, strings.HasPrefix)
		})
	case "str_ends_with_any":
		pass = arrayAny(condition.TargetValue, value, func(x, y interface{}) bool {
			return compareStrings(x, y, true, strings.HasSuffix)
		})
	case "str_contains_any":
		pass = arrayAny(condition.TargetValue, value, func(x, y interface{}) bool {
			return compareStrings(x, y, true, strings.Contains)
		})
	case "str_contains_none":
		pass = !arrayAny(condition.TargetValue, value, func(x, y interface{}) bool {
			return compareStrings(x, y, true, strings.Contains)
		})
	case "str_matches":
		matched, err := regexMatch(condition.TargetValue, value)
		pass = err == nil && matched
	case "eq":
		pass = reflect.DeepEqual(value, condition.TargetValue)
	case "neq":
		pass = !reflect.DeepEqual(value, condition.TargetValue)
	case "before":
		pass = compareTimes(value, condition.TargetValue, func(x, y int64) bool { return x < y })
	case "after":
		pass = compareTimes(value, condition.TargetValue, func(x, y int64) bool { return x > y })
	case "on":
		pass = compareTimes(value, condition.TargetValue, func(x, y int64) bool {
			return x/86400000 == y/86400000
		})
	default:
		server = true
	}
	return &evalResult{Value: pass, Unsupported: server}
}

func getFromUser(user User, field string) interface{} {
	var value interface{}
	// 1. Try to get from top level
	switch strings.ToLower(field) {
	case "userid", "user_id":
		value = user.UserID
	case "email":
		value = user.Email
	case "ip", "ipaddress", "ip_address":
		value = user.IpAddress
	case "useragent", "user_agent":
		value = user.UserAgent
	case "country":
		value = user.Country
	case "locale":
		value = user.Locale
	case "appversion", "app_version":
		value = user.AppVersion
	}

	// 2. Check custom user attributes and then private attributes next
	if value == "" || value == nil {
		if customValue, ok := user.Custom[field]; ok {
			value = customValue
		} else if customValue, ok := user.Custom[strings.ToLower(field)]; ok {
			value = customValue
		} else if privateValue, ok := user.PrivateAttributes[field]; ok {
			value = privateValue
		} else if privateValue, ok := user.PrivateAttributes[strings.ToLower(field)]; ok {
			value = privateValue
		}
	}

	return value
}

func getFromEnvironment(user User, field string) string {
	var value string
	if val, ok := user.StatsigEnvironment[field]; ok {
		value = val
	}
	if val, ok := user.StatsigEnvironment[strings.ToLower(field)]; ok {
		value = val
	}
	return value
}

func getFromUserAgent(user User, field string, parser *uaParser) string {
	ua := getFromUser(user, "useragent")
	uaStr, ok := ua.(string)
	if !ok || uaStr == "" {
		return ""
	}
	if val, parsed := parser.fieldValue(uaStr, field); parsed {
		return val
	}
	return ""
}

func getFromIP(user User, field string, lookup *countryLookup) string {
	if strings.ToLower(field) != "country" {
		return ""
	}
	ip := getFromUser(user, "ip")
	if ipStr, ok := ip.(string); ok && ipStr != "" {
		if country, lookupOK := lookup.lookupIp(ipStr); lookupOK {
			return country
		}
	}
	return ""
}

func getUnitID(user User, idType string) string {
	if idType != "" && strings.ToLower(idType) != "userid" {
		if id, ok := user.CustomIDs[idType]; ok {
			return id
		}
		if id, ok := user.CustomIDs[strings.ToLower(idType)]; ok {
			return id
		}
		return ""
	}
	return user.UserID
}

// First 8 bytes of the sha256 digest read as a big endian integer. All
// rollout math keys off this value, so the width is fixed regardless of
// platform word size.
func getHash(key string) uint64 {
	hasher := sha256.New()
	bytes := []byte(key)
	hasher.Write(bytes)
	return binary.BigEndian.Uint64(hasher.Sum(nil))
}

func evalPassPercent(user User, rule configRule, spec configSpec) bool {
	ruleSalt := rule.Salt
	if ruleSalt == "" {
		ruleSalt = rule.ID
	}
	hash := getHash(spec.Salt + "." + ruleSalt + "." + getUnitID(user, rule.IDType))
	return float64(hash%10000) < rule.PassPercentage*100
}

func compareNumbers(a, b interface{}, fun func(x, y float64) bool) bool {
	numA, okA := getNumericValue(a)
	numB, okB := getNumericValue(b)
	if !okA || !okB {
		return false
	}
	return fun(numA, numB)
}

func getNumericValue(a interface{}) (float64, bool) {
	switch v := a.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func compareStrings(s1 interface{}, s2 interface{}, ignoreCase bool, fun func(x, y string) bool) bool {
	if s1 == nil || s2 == nil {
		return false
	}
	str1 := convertToString(s1)
	str2 := convertToString(s2)
	if ignoreCase {
		return fun(strings.ToLower(str1), strings.ToLower(str2))
	}
	return fun(str1, str2)
}

func convertToString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Pre-release qualifiers are cut at the first dash, then parts compare
// numerically with absent parts read as zero.
func compareVersions(a, b interface{}, fun func(x, y string) bool) bool {
	strA, okA := a.(string)
	strB, okB := b.(string)
	if !okA || !okB {
		return false
	}
	v1 := strings.Split(strA, "-")[0]
	v2 := strings.Split(strB, "-")[0]
	if len(v1) == 0 || len(v2) == 0 {
		return false
	}
	return fun(v1, v2)
}

func compareVersionsHelper(v1 string, v2 string) int {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")
	parts := len(parts1)
	if len(parts2) > parts {
		parts = len(parts2)
	}
	for i := 0; i < parts; i++ {
		var n1, n2 int64
		if i < len(parts1) {
			n1, _ = strconv.ParseInt(parts1[i], 10, 64)
		}
		if i < len(parts2) {
			n2, _ = strconv.ParseInt(parts2[i], 10, 64)
		}
		if n1 < n2 {
			return -1
		}
		if n1 > n2 {
			return 1
		}
	}
	return 0
}

func arrayAny(arr interface{}, val interface{}, fun func(x, y interface{}) bool) bool {
	if array, ok := arr.([]interface{}); ok {
		for _, arrVal := range array {
			if fun(val, arrVal) {
				return true
			}
		}
	}
	return false
}

func regexMatch(pattern interface{}, value interface{}) (bool, error) {
	patternStr, okP := pattern.(string)
	valueStr, okV := value.(string)
	if !okP || !okV {
		return false, nil
	}
	return regexp.MatchString(patternStr, valueStr)
}

func compareTimes(a, b interface{}, fun func(x, y int64) bool) bool {
	timeA, okA := getTime(a)
	timeB, okB := getTime(b)
	if !okA || !okB {
		return false
	}
	return fun(timeA, timeB)
}

// Timestamps are epoch milliseconds, arriving as numbers or numeric strings.
func getTime(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		return int64(val), true
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func (e *evaluator) overrideGate(gate string, val bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gateOverrides[gate] = val
}

func (e *evaluator) overrideConfig(config string, val map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configOverrides[config] = val
}

func (e *evaluator) overrideLayer(layer string, val map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layerOverrides[layer] = val
}

func (e *evaluator) getGateOverride(name string) (bool, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	override, ok := e.gateOverrides[name]
	return override, ok
}

func (e *evaluator) getConfigOverride(name string) (map[string]interface{}, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	override, ok := e.configOverrides[name]
	return override, ok
}

func (e *evaluator) getLayerOverride(name string) (map[string]interface{}, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	override, ok := e.layerOverrides[name]
	return override, ok
}
