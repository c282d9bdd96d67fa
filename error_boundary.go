package statsig

import (
	"bytes"
	"net/http"
	"runtime"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// errorBoundary keeps SDK internals from surfacing panics to callers.
// Captured exceptions are deduplicated and reported once per message.
type errorBoundary struct {
	api      string
	endpoint string
	sdkKey   string
	client   *http.Client
	seen     *lru.Cache
	options  *Options
}

type logExceptionRequestBody struct {
	Exception       string          `json:"exception"`
	Info            string          `json:"info"`
	StatsigMetadata statsigMetadata `json:"statsigMetadata"`
	Tag             string          `json:"tag"`
}

var ErrorBoundaryAPI = "https://statsigapi.net/v1"
var ErrorBoundaryEndpoint = "/sdk_exception"

const seenExceptionsCapacity = 128

const (
	InvalidSDKKeyError string = "Must provide a valid SDK key."
	EmptyUserError     string = "A non-empty StatsigUser.UserID or StatsigUser.CustomIDs is required. See https://docs.statsig.com/messages/serverRequiredUserID"
)

func newErrorBoundary(sdkKey string, options *Options) *errorBoundary {
	seen, _ := lru.New(seenExceptionsCapacity)
	errorBoundary := &errorBoundary{
		api:      ErrorBoundaryAPI,
		endpoint: ErrorBoundaryEndpoint,
		sdkKey:   sdkKey,
		client:   &http.Client{Timeout: time.Second * 3},
		seen:     seen,
		options:  options,
	}
	if options.API != "" {
		errorBoundary.api = options.API
	}
	return errorBoundary
}

func (e *errorBoundary) checkSeen(exceptionString string) bool {
	previously, _ := e.seen.ContainsOrAdd(exceptionString, true)
	return previously
}

func (e *errorBoundary) captureCheckGate(task func() FeatureGate) FeatureGate {
	defer e.ebRecover("checkGate")
	return task()
}

func (e *errorBoundary) captureGetConfig(task func() DynamicConfig, tag string) DynamicConfig {
	defer e.ebRecover(tag)
	return task()
}

func (e *errorBoundary) captureGetLayer(task func() Layer) Layer {
	defer e.ebRecover("getLayer")
	return task()
}

func (e *errorBoundary) captureGetClientInitializeResponse(task func() ClientInitializeResponse) ClientInitializeResponse {
	defer e.ebRecover("getClientInitializeResponse")
	return task()
}

func (e *errorBoundary) captureGetExperimentLayer(task func() (string, bool)) (string, bool) {
	defer e.ebRecover("getExperimentLayer")
	return task()
}

func (e *errorBoundary) captureVoid(task func(), tag string) {
	defer e.ebRecover(tag)
	task()
}

func (e *errorBoundary) ebRecover(tag string) {
	if err := recover(); err != nil {
		exception := toError(err)
		e.logExceptionWithTag(exception, tag)
		Logger().LogError(exception)
	}
}

func (e *errorBoundary) logException(exception error) {
	e.logExceptionWithTag(exception, "")
}

func (e *errorBoundary) logExceptionWithTag(exception error, tag string) {
	if e.options.StatsigLoggerOptions.DisableAllLogging || e.options.LocalMode {
		return
	}
	exceptionString := "Unknown"
	if exception != nil {
		exceptionString = exception.Error()
	}
	if e.checkSeen(exceptionString) {
		return
	}
	stack := make([]byte, 1024)
	runtime.Stack(stack, false)
	metadata := getStatsigMetadata()
	body := &logExceptionRequestBody{
		Exception:       exceptionString,
		Info:            string(stack),
		StatsigMetadata: metadata,
		Tag:             tag,
	}
	bodyString, err := jsonConfig.Marshal(body)
	if err != nil {
		return
	}

	req, err := http.NewRequest("POST", e.api+e.endpoint, bytes.NewBuffer(bodyString))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("STATSIG-API-KEY", e.sdkKey)
	req.Header.Add("STATSIG-CLIENT-TIME", strconv.FormatInt(getUnixMilli(), 10))
	req.Header.Add("STATSIG-SDK-TYPE", metadata.SDKType)
	req.Header.Add("STATSIG-SDK-VERSION", metadata.SDKVersion)
	req.Header.Add("STATSIG-SERVER-SESSION-ID", metadata.SessionID)

	_, _ = e.client.Do(req)
}
