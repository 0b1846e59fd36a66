package log

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderRequestID carries the id that correlates client and server logs.
const HeaderRequestID = "X-Request-ID"

// Transport is an http.RoundTripper that stamps every outbound request with
// a request id and logs its outcome.
type Transport struct {
	Base   http.RoundTripper
	Logger zerolog.Logger
}

// NewTransport wraps base; a nil base means http.DefaultTransport.
func NewTransport(base http.RoundTripper, logger zerolog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	reqID := req.Header.Get(HeaderRequestID)
	if reqID == "" {
		reqID = uuid.New().String()
		req = req.Clone(req.Context())
		req.Header.Set(HeaderRequestID, reqID)
	}

	resp, err := t.Base.RoundTrip(req)

	var evt *zerolog.Event
	if err != nil {
		evt = t.Logger.Warn().Err(err)
	} else {
		evt = t.Logger.Debug().Int(FieldStatus, resp.StatusCode)
	}
	evt.Str(FieldRequestID, reqID).
		Str(FieldMethod, req.Method).
		Str(FieldEndpoint, req.URL.Path).
		Float64(FieldLatency, float64(time.Since(start).Milliseconds())).
		Msg("request completed")

	return resp, err
}
