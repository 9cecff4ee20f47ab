package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

const (
	targetHeader = "X-Amz-Target"
	targetPrefix = "AmazonAthena."

	amzJSONContentType = "application/x-amz-json-1.1"
	amzJSONMediaPrefix = "application/x-amz-json-"

	maxBodySize = 1 << 20 // 1 MB

	// Operation labels for requests that never reach an operation.
	opMissingTarget = "missing_target"
	opUnknownTarget = "unknown_target"
)

// operation handles one X-Amz-Target value.
type operation func(s *Server, w http.ResponseWriter, r *http.Request)

// operations maps the full X-Amz-Target value to its handler. Matching is
// exact and case-sensitive.
var operations = map[string]operation{
	targetPrefix + "StartQueryExecution": (*Server).handleStartQueryExecution,
	targetPrefix + "GetQueryExecution":   (*Server).handleGetQueryExecution,
	targetPrefix + "GetQueryResults":     (*Server).handleGetQueryResults,
	targetPrefix + "ListQueryExecutions": (*Server).handleListQueryExecutions,
}

// handleDispatch routes POST / by the X-Amz-Target header. The header is
// checked before the body is touched.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	target := r.Header.Get(targetHeader)
	label := strings.TrimPrefix(target, targetPrefix)

	op, ok := operations[target]
	switch {
	case target == "":
		label = opMissingTarget
		writeText(ww, http.StatusBadRequest, "missing required header "+targetHeader)
	case !ok:
		label = opUnknownTarget
		writeText(ww, http.StatusBadRequest, fmt.Sprintf("unexpected target %q in header %s", target, targetHeader))
	default:
		op(s, ww, r)
	}

	operationsTotal.WithLabelValues(label, strconv.Itoa(ww.Status())).Inc()
}

// decodeInput reads an x-amz-json request body into v. An empty body leaves
// v untouched.
func decodeInput(w http.ResponseWriter, r *http.Request, v any) *apiError {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, amzJSONMediaPrefix) {
		return errInvalidRequest("unexpected input: content type must be %s*", amzJSONMediaPrefix)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return errInvalidRequest("unexpected input: %v", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return errInvalidRequest("unexpected input: field %s must be %s", typeErr.Field, typeErr.Type)
		}
		return errInvalidRequest("unexpected input: request body is not a JSON object")
	}
	return nil
}

// writeAmzJSON writes an operation result with the AWS JSON content type.
func (s *Server) writeAmzJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", amzJSONContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeAPIError writes err as the AWS JSON error envelope.
func (s *Server) writeAPIError(w http.ResponseWriter, err *apiError) {
	w.Header().Set(errorTypeHeader, err.Type)
	s.writeAmzJSON(w, err.Status, errorEnvelope{Type: err.Type, Message: err.Message})
}

// writeText writes a plain-text protocol response.
func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg+"\n")
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response for the operational endpoints.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
