package http

import (
	"encoding/json"
	"net/http"

	"github.com/aretw0/switchboard/pkg/domain"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindTransportUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindActionNotFound:
		return http.StatusNotFound
	case domain.KindMalformedRequest, domain.KindInvalidPayload:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func messageBody(msg string) map[string]string {
	return map[string]string{"message": msg}
}

// writeResult encodes the raw action result. Encoding happens before any
// header is written so a fault can still be reported as a 500.
func (a *Adapter) writeResult(w http.ResponseWriter, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		a.logger.Error("response encode failed", "error", err)
		a.writeError(w, domain.SerializationFault(err))
		return
	}
	writeBody(w, http.StatusOK, data)
}

func (a *Adapter) writeError(w http.ResponseWriter, e *domain.Error) {
	a.writeJSON(w, statusFor(e.Kind), e)
}

func (a *Adapter) writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("response encode failed", "error", err)
		code = http.StatusInternalServerError
		data = []byte(`{"kind":"InternalSerializationFault","message":"response could not be encoded"}`)
	}
	writeBody(w, code, data)
}

func writeBody(w http.ResponseWriter, code int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(data, '\n'))
}
