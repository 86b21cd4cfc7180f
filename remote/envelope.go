package remote

import (
	"bytes"

	"github.com/bytedance/sonic"

	"github.com/oceanondawave/CigroTrack-sub001/domain"
)

// envelope is the uniform response body of every core API endpoint.
type envelope struct {
	Success bool                   `json:"success"`
	Data    sonic.NoCopyRawMessage `json:"data,omitempty"`
	Error   *envelopeError         `json:"error,omitempty"`
}

type envelopeError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

var nullPayload = []byte("null")

// decodeEnvelope parses a response body and maps failure envelopes onto the
// domain error types. The returned payload is valid only when err is nil.
func decodeEnvelope(body []byte) (sonic.NoCopyRawMessage, error) {
	var env envelope
	if err := sonic.ConfigStd.Unmarshal(body, &env); err != nil {
		return nil, domain.Transportf(err, "malformed response envelope")
	}
	if !env.Success {
		return nil, envelopeFailure(env.Error)
	}
	return env.Data, nil
}

func envelopeFailure(e *envelopeError) error {
	if e == nil {
		return domain.Transportf(nil, "failure envelope carries no error detail")
	}
	switch e.Code {
	case "not_found":
		return domain.NotFoundf("%s", e.Message)
	case "conflict", "status_in_use":
		return domain.Conflictf("%s", e.Message)
	case "validation":
		return domain.Validationf("%s", e.Message)
	default:
		return domain.Transportf(nil, "remote error %s: %s", e.Code, e.Message)
	}
}

// decodePayload unmarshals the data section of a success envelope. A missing
// or null payload is a protocol violation for every call that reaches here.
func decodePayload(data sonic.NoCopyRawMessage, v any) error {
	if len(data) == 0 || bytes.Equal(data, nullPayload) {
		return domain.Transportf(nil, "success envelope carries no payload")
	}
	if err := sonic.ConfigStd.Unmarshal(data, v); err != nil {
		return domain.Transportf(err, "decode response payload")
	}
	return nil
}
