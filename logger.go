package statsig

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

type ExposureEventName string

const (
	GateExposureEventName   ExposureEventName = "statsig::gate_exposure"
	ConfigExposureEventName ExposureEventName = "statsig::config_exposure"
	LayerExposureEventName  ExposureEventName = "statsig::layer_exposure"
)

type ExposureEvent struct {
	EventName          ExposureEventName   `json:"eventName"`
	User               User                `json:"user"`
	Value              string              `json:"value"`
	Metadata           map[string]string   `json:"metadata"`
	SecondaryExposures []map[string]string `json:"secondaryExposures"`
	Time               int64               `json:"time"`
}

type logContext struct {
	isManualExposure bool
}

// logger buffers events in memory and ships them in batches, either when the
// buffer outgrows maxQueueSize or on the periodic flush tick. Sends are
// at-most-once, a failed batch is dropped after reporting.
type logger struct {
	events        []interface{}
	transport     *transport
	tick          *time.Ticker
	mu            sync.Mutex
	maxQueueSize  int
	disabled      bool
	seenExposures *TTLSet
	pending       sync.WaitGroup
	stop          chan struct{}
	stopOnce      sync.Once
	errorBoundary *errorBoundary
}

func newLogger(transport *transport, options *Options, errorBoundary *errorBoundary) *logger {
	log := &logger{
		events:        make([]interface{}, 0),
		transport:     transport,
		tick:          time.NewTicker(defaultDuration(options.LoggingInterval, time.Minute)),
		maxQueueSize:  defaultInt(options.LoggingMaxBufferSize, 500),
		disabled:      options.StatsigLoggerOptions.DisableAllLogging,
		seenExposures: NewTTLSet(),
		stop:          make(chan struct{}),
		errorBoundary: errorBoundary,
	}

	go log.backgroundFlush()

	return log
}

func (l *logger) backgroundFlush() {
	for {
		select {
		case <-l.stop:
			return
		case <-l.tick.C:
			l.flush(false)
		}
	}
}

func (l *logger) logCustom(evt Event) {
	evt.User.PrivateAttributes = nil
	if evt.Time == 0 {
		evt.Time = getUnixMilli()
	}
	l.logInternal(evt)
}

func (l *logger) logExposureWithEvaluationDetails(evt *ExposureEvent, evalDetails *EvaluationDetails) {
	if evalDetails != nil {
		evt.Metadata["reason"] = string(evalDetails.Reason)
		evt.Metadata["configSyncTime"] = fmt.Sprint(evalDetails.ConfigSyncTime)
		evt.Metadata["initTime"] = fmt.Sprint(evalDetails.InitTime)
		evt.Metadata["serverTime"] = fmt.Sprint(evalDetails.ServerTime)
	}
	l.logExposure(*evt)
}

func (l *logger) logExposure(evt ExposureEvent) {
	evt.User.PrivateAttributes = nil
	if evt.Time == 0 {
		evt.Time = getUnixMilli()
	}
	l.logInternal(evt)
}

func (l *logger) logInternal(evt interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disabled {
		return
	}

	l.events = append(l.events, evt)
	if len(l.events) > l.maxQueueSize {
		l.flushInternal(false)
	}
}

// Identical exposures within the dedupe window are logged once. Manual
// exposures always pass through so callers can force a record.
func (l *logger) shouldSkipExposure(evt ExposureEvent, context *logContext) bool {
	if context != nil && context.isManualExposure {
		return false
	}
	key := string(evt.EventName) + "|" + evt.User.UserID + "|" + fmt.Sprint(evt.User.CustomIDs) + "|" + fmt.Sprint(evt.Metadata)
	if l.seenExposures.Contains(key) {
		return true
	}
	l.seenExposures.Add(key)
	return false
}

func (l *logger) logGateExposure(
	user User,
	gateName string,
	value bool,
	ruleID string,
	exposures []map[string]string,
	evalDetails *EvaluationDetails,
	context *logContext,
) *ExposureEvent {
	metadata := map[string]string{
		"gate":      gateName,
		"gateValue": strconv.FormatBool(value),
		"ruleID":    ruleID,
	}
	if context != nil && context.isManualExposure {
		metadata["isManualExposure"] = "true"
	}
	evt := &ExposureEvent{
		User:               user,
		EventName:          GateExposureEventName,
		Metadata:           metadata,
		SecondaryExposures: exposures,
	}
	if l.shouldSkipExposure(*evt, context) {
		return evt
	}
	l.logExposureWithEvaluationDetails(evt, evalDetails)
	return evt
}

func (l *logger) logConfigExposure(
	user User,
	configName string,
	ruleID string,
	exposures []map[string]string,
	evalDetails *EvaluationDetails,
	context *logContext,
) *ExposureEvent {
	metadata := map[string]string{
		"config": configName,
		"ruleID": ruleID,
	}
	if context != nil && context.isManualExposure {
		metadata["isManualExposure"] = "true"
	}
	evt := &ExposureEvent{
		User:               user,
		EventName:          ConfigExposureEventName,
		Metadata:           metadata,
		SecondaryExposures: exposures,
	}
	if l.shouldSkipExposure(*evt, context) {
		return evt
	}
	l.logExposureWithEvaluationDetails(evt, evalDetails)
	return evt
}

func (l *logger) logLayerExposure(
	user User,
	layer configBase,
	parameterName string,
	evalResult evalResult,
	evalDetails *EvaluationDetails,
	context *logContext,
) *ExposureEvent {
	allocatedExperiment := ""
	exposures := evalResult.UndelegatedSecondaryExposures
	isExplicit := evalResult.ExplicitParameters[parameterName]

	if isExplicit {
		allocatedExperiment = evalResult.ConfigDelegate
		exposures = evalResult.SecondaryExposures
	}
	metadata := map[string]string{
		"config":              layer.Name,
		"ruleID":              layer.RuleID,
		"allocatedExperiment": allocatedExperiment,
		"parameterName":       parameterName,
		"isExplicitParameter": strconv.FormatBool(isExplicit),
	}
	if context != nil && context.isManualExposure {
		metadata["isManualExposure"] = "true"
	}

	evt := &ExposureEvent{
		User:               user,
		EventName:          LayerExposureEventName,
		Metadata:           metadata,
		SecondaryExposures: exposures,
	}
	if l.shouldSkipExposure(*evt, context) {
		return evt
	}
	l.logExposureWithEvaluationDetails(evt, evalDetails)
	return evt
}

func (l *logger) flush(closing bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.flushInternal(closing)
}

func (l *logger) flushInternal(closing bool) {
	if len(l.events) == 0 {
		return
	}

	events := l.events
	l.events = make([]interface{}, 0)

	if closing {
		l.sendEvents(events)
	} else {
		l.pending.Add(1)
		go func() {
			defer l.pending.Done()
			l.sendEvents(events)
		}()
	}
}

func (l *logger) sendEvents(events []interface{}) {
	if err := l.transport.logEvents(events); err != nil {
		logEventError := &LogEventError{Err: err, Events: len(events)}
		l.errorBoundary.logException(logEventError)
		Logger().Log("", logEventError)
		return
	}
	Logger().Distribution("events_flushed", float64(len(events)), nil)
}

// Drains the buffer on the way out. The periodic task stops first, then any
// in-flight batch sends get to finish, then whatever is left goes out in one
// synchronous send. The whole drain is bounded by timeout.
func (l *logger) shutdown(timeout time.Duration) error {
	l.stopOnce.Do(func() {
		l.tick.Stop()
		close(l.stop)
	})
	l.seenExposures.Shutdown()

	done := make(chan struct{})
	go func() {
		l.pending.Wait()
		l.flush(true)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
