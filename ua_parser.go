package statsig

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ua-parser/uap-go/uaparser"
)

// Agent strings beyond this length are treated as unparseable.
const maxUserAgentLength = 1000

type uaParser struct {
	parser  *uaparser.Parser
	wg      sync.WaitGroup
	options UAParserOptions
	mu      sync.RWMutex
}

func newUAParser(options UAParserOptions) *uaParser {
	u := &uaParser{options: options}
	u.delayedSetup()
	return u
}

func (u *uaParser) delayedSetup() {
	if u.options.Disabled {
		return
	}
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		parser := uaparser.NewFromSaved()
		u.mu.Lock()
		u.parser = parser
		u.mu.Unlock()
	}()
}

func (u *uaParser) init() {
	if !u.options.LazyLoad {
		u.ensureLoaded()
	}
}

func (u *uaParser) ensureLoaded() {
	if u.options.Disabled {
		return
	}
	u.wg.Wait()
}

func (u *uaParser) isReady() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.parser != nil
}

// Reports whether parsing has reached a terminal state. A disabled parser
// counts as settled, a lazy load still in flight does not unless callers
// opted into blocking for it.
func (u *uaParser) settled() bool {
	if u.options.Disabled {
		return true
	}
	if u.options.EnsureLoaded {
		u.wg.Wait()
		return true
	}
	return u.isReady()
}

func (u *uaParser) parse(userAgent string) *uaparser.Client {
	if u.options.Disabled || len(userAgent) > maxUserAgentLength {
		return nil
	}
	if u.options.EnsureLoaded {
		u.wg.Wait()
	}
	if u.isReady() {
		return u.parser.Parse(userAgent)
	}
	return nil
}

// Extracts a single targeting field from an agent string. Version fields
// come back as "major.minor.patch" with absent parts zero filled.
func (u *uaParser) fieldValue(userAgent string, field string) (string, bool) {
	client := u.parse(userAgent)
	if client == nil {
		return "", false
	}
	switch strings.ToLower(field) {
	case "os_name", "osname":
		return client.Os.Family, true
	case "os_version", "osversion":
		return versionString(client.Os.Major, client.Os.Minor, client.Os.Patch), true
	case "browser_name", "browsername":
		return client.UserAgent.Family, true
	case "browser_version", "browserversion":
		return versionString(client.UserAgent.Major, client.UserAgent.Minor, client.UserAgent.Patch), true
	default:
		return "", false
	}
}

func versionString(major string, minor string, patch string) string {
	return fmt.Sprintf("%s.%s.%s", defaultString(major, "0"), defaultString(minor, "0"), defaultString(patch, "0"))
}
