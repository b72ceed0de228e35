package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Result is the outcome of a single reachability check. A StatusCode of
// 0 means the target could not be reached at the transport level.
type Result struct {
	StatusCode   int   `json:"statusCode"`
	IsAccessible bool  `json:"isAccessible"`
	ResponseTime int64 `json:"responseTime"` // milliseconds, recorded even on failure
}

// Prober performs outbound reachability checks. It holds its own HTTP
// client so probe timeouts never depend on ambient transport settings.
type Prober struct {
	client *http.Client
}

// New creates a prober with the given per-request timeout. The timeout
// must be finite; a zero duration falls back to ten seconds so a dead
// target can never hang a scan pass.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Probe issues a single GET against the URL and measures wall-clock
// latency around the call. Transport failures (DNS, refused connection,
// timeout, malformed response) are recovered into a Result with
// StatusCode 0 rather than returned as errors: one dead URL must never
// abort a scan pass.
func (p *Prober) Probe(ctx context.Context, url string) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		elapsed := time.Since(start).Milliseconds()
		log.Warn().Err(err).Str("url", url).Msg("Failed to build probe request")
		return Result{StatusCode: 0, IsAccessible: false, ResponseTime: elapsed}
	}

	resp, err := p.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		log.Debug().Err(err).Str("url", url).Int64("elapsed_ms", elapsed).Msg("Probe transport failure")
		return Result{StatusCode: 0, IsAccessible: false, ResponseTime: elapsed}
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused across probes
	io.Copy(io.Discard, resp.Body)

	return Result{
		StatusCode:   resp.StatusCode,
		IsAccessible: Accessible(resp.StatusCode),
		ResponseTime: elapsed,
	}
}

// Accessible reports whether a status code counts as reachable:
// anything in [200, 400).
func Accessible(statusCode int) bool {
	return statusCode >= 200 && statusCode < 400
}
