package observ

import (
	"encoding/json"
	"fmt"
	"time"
)

// Log emits a single structured JSON event on stdout.
func Log(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["event"] = event
	b, _ := json.Marshal(kv)
	fmt.Println(string(b))
}

// Warn is Log with a level=warn field, used for diagnostics that should stand
// out in the stream (budget overruns, dropped notifications, bad input).
func Warn(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["level"] = "warn"
	Log(event, kv)
}
