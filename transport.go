package statsig

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	DefaultEndpoint    = "https://statsigapi.net/v1"
	DefaultCDNEndpoint = "https://api.statsigcdn.com/v1"
)

var jsonConfig = jsoniter.ConfigCompatibleWithStandardLibrary

type transport struct {
	downloadConfigSpecsAPI string
	logEventAPI            string
	sdkKey                 string
	metadata               statsigMetadata
	client                 *http.Client
	options                *Options
}

func newTransport(secret string, options *Options) *transport {
	defaultDCSAPI := DefaultCDNEndpoint
	if options.DisableCDN {
		defaultDCSAPI = DefaultEndpoint
	}
	api := strings.TrimSuffix(options.API, "/")
	dcsAPI := defaultString(strings.TrimSuffix(options.APIOverrides.DownloadConfigSpecs, "/"), defaultString(api, defaultDCSAPI))
	logEventAPI := defaultString(strings.TrimSuffix(options.APIOverrides.LogEvent, "/"), defaultString(api, DefaultEndpoint))

	client := &http.Client{Timeout: time.Second * 10}
	if options.Transport != nil {
		client.Transport = options.Transport
	}

	return &transport{
		downloadConfigSpecsAPI: dcsAPI,
		logEventAPI:            logEventAPI,
		sdkKey:                 secret,
		metadata:               getStatsigMetadata(),
		client:                 client,
		options:                options,
	}
}

type downloadConfigsInput struct {
	SinceTime       int64           `json:"sinceTime"`
	StatsigMetadata statsigMetadata `json:"statsigMetadata"`
}

type logEventInput struct {
	Events          []interface{}   `json:"events"`
	StatsigMetadata statsigMetadata `json:"statsigMetadata"`
}

type logEventResponse struct{}

// Fetches the full ruleset payload, sending the caller's watermark so the
// server can answer with has_updates=false when nothing changed. The default
// origin is the CDN, which serves keyed GET requests; self-hosted proxies
// take the POST form.
func (t *transport) downloadConfigSpecs(sinceTime int64, out *downloadConfigSpecResponse) error {
	if t.downloadConfigSpecsAPI == DefaultCDNEndpoint {
		endpoint := fmt.Sprintf("/download_config_specs/%s.json?sinceTime=%d", t.sdkKey, sinceTime)
		return t.get(t.downloadConfigSpecsAPI, endpoint, out)
	}
	input := &downloadConfigsInput{
		SinceTime:       sinceTime,
		StatsigMetadata: t.metadata,
	}
	return t.post(t.downloadConfigSpecsAPI, "/download_config_specs", input, out)
}

func (t *transport) logEvents(events []interface{}) error {
	input := &logEventInput{
		Events:          events,
		StatsigMetadata: t.metadata,
	}
	var res logEventResponse
	return t.post(t.logEventAPI, "/log_event", input, &res)
}

func (t *transport) post(api string, endpoint string, in interface{}, out interface{}) error {
	if t.options.LocalMode {
		return nil
	}
	body, err := jsonConfig.Marshal(in)
	if err != nil {
		return err
	}
	return t.doRequest("POST", api, endpoint, body, out)
}

func (t *transport) get(api string, endpoint string, out interface{}) error {
	if t.options.LocalMode {
		return nil
	}
	return t.doRequest("GET", api, endpoint, nil, out)
}

func (t *transport) doRequest(method string, api string, endpoint string, body []byte, out interface{}) error {
	var bodyReader *bytes.Buffer
	if body != nil {
		bodyReader = bytes.NewBuffer(body)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, api+endpoint, bodyReader)
	if err != nil {
		return &TransportError{Err: err}
	}

	req.Header.Add("STATSIG-API-KEY", t.sdkKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Add("STATSIG-CLIENT-TIME", strconv.FormatInt(getUnixMilli(), 10))
	req.Header.Add("STATSIG-SERVER-SESSION-ID", t.metadata.SessionID)
	req.Header.Add("STATSIG-SDK-TYPE", t.metadata.SDKType)
	req.Header.Add("STATSIG-SDK-VERSION", t.metadata.SDKVersion)

	response, err := t.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode > 299 {
		return &TransportError{
			RequestMetadata: &RequestMetadata{
				StatusCode: response.StatusCode,
				Endpoint:   endpoint,
			},
			Err: fmt.Errorf("http response error code: %d", response.StatusCode),
		}
	}

	// empty 2xx bodies are fine, log_event replies with one
	if err := jsonConfig.NewDecoder(response.Body).Decode(out); err != nil && err != io.EOF {
		return &TransportError{
			RequestMetadata: &RequestMetadata{
				StatusCode: response.StatusCode,
				Endpoint:   endpoint,
			},
			Err: err,
		}
	}
	return nil
}
