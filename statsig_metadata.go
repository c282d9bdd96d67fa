package statsig

import (
	"runtime"
)

const (
	sdkType    = "go-server-core"
	sdkVersion = "1.0.0"
)

// statsigMetadata identifies this SDK on every request, both as headers and
// inside request bodies.
type statsigMetadata struct {
	SDKType         string `json:"sdkType"`
	SDKVersion      string `json:"sdkVersion"`
	LanguageVersion string `json:"languageVersion"`
	SessionID       string `json:"sessionID"`
}

func getStatsigMetadata() statsigMetadata {
	return statsigMetadata{
		SDKType:         sdkType,
		SDKVersion:      sdkVersion,
		LanguageVersion: runtime.Version()[2:],
		SessionID:       SessionID(),
	}
}
