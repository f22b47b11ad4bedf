package throttle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// Traits are the coarse environment signals hashed into a device fingerprint.
// They are supplied by the UI shell when available; LocalTraits fills in a
// best-effort equivalent for headless use.
type Traits struct {
	UserAgent             string `json:"userAgent"`
	Language              string `json:"language"`
	CPUCount              int    `json:"cpuCount"`
	ScreenWidth           int    `json:"screenWidth"`
	ScreenHeight          int    `json:"screenHeight"`
	ColorDepth            int    `json:"colorDepth"`
	TimezoneOffsetMinutes int    `json:"timezoneOffset"`
}

const fingerprintLength = 16

// Fingerprint derives a short, stable-per-device identifier from the traits.
// It is a coarse throttling key, not a security boundary: clearing storage or
// switching browsers defeats it, and that is accepted.
func Fingerprint(t Traits) string {
	joined := strings.Join([]string{
		t.UserAgent,
		t.Language,
		fmt.Sprintf("%d", t.CPUCount),
		fmt.Sprintf("%dx%d", t.ScreenWidth, t.ScreenHeight),
		fmt.Sprintf("%d", t.ColorDepth),
		fmt.Sprintf("%d", t.TimezoneOffsetMinutes),
	}, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}

// LocalTraits derives traits from the local process environment, for running
// the generation gate without a UI shell attached.
func LocalTraits() Traits {
	host, _ := os.Hostname()
	_, offsetSeconds := time.Now().Zone()
	return Traits{
		UserAgent:             runtime.GOOS + "/" + runtime.GOARCH + "/" + host,
		Language:              os.Getenv("LANG"),
		CPUCount:              runtime.NumCPU(),
		TimezoneOffsetMinutes: offsetSeconds / 60,
	}
}
