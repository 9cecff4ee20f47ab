package api

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/seantiz/athenamock/internal/model"
)

const (
	defaultMaxResults = 50
	maxMaxResults     = 50
)

type startQueryExecutionResponse struct {
	QueryExecutionID string `json:"QueryExecutionId"`
}

type getQueryExecutionRequest struct {
	QueryExecutionID *string `json:"QueryExecutionId"`
}

type getQueryExecutionResponse struct {
	QueryExecution queryExecution `json:"QueryExecution"`
}

type queryExecution struct {
	QueryExecutionID string               `json:"QueryExecutionId"`
	Status           queryExecutionStatus `json:"Status"`
}

// queryExecutionStatus carries the state under both the lower-case key and
// the key the AWS SDK deserializers read.
type queryExecutionStatus struct {
	State    model.State `json:"state"`
	SDKState model.State `json:"State"`
}

type listQueryExecutionsRequest struct {
	MaxResults *int    `json:"MaxResults"`
	NextToken  *string `json:"NextToken"`
}

type listQueryExecutionsResponse struct {
	QueryExecutionIDs []string `json:"QueryExecutionIds"`
	NextToken         string   `json:"NextToken,omitempty"`
}

// handleStartQueryExecution mints an id and hands it to the engine. The body
// is ignored and the response does not wait for the first transition.
func (s *Server) handleStartQueryExecution(w http.ResponseWriter, r *http.Request) {
	id := model.NewExecutionID()
	if err := s.engine.Start(id); err != nil {
		s.logger.Error("start query execution", "query_execution_id", id, "error", err)
		s.writeAPIError(w, errInternal("failed to start query execution"))
		return
	}

	s.writeAmzJSON(w, http.StatusOK, startQueryExecutionResponse{QueryExecutionID: id})
}

// handleGetQueryExecution reports the published state of one execution.
// Unknown ids are a not-found error, never a default state.
func (s *Server) handleGetQueryExecution(w http.ResponseWriter, r *http.Request) {
	var req getQueryExecutionRequest
	if apiErr := decodeInput(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	if req.QueryExecutionID == nil || *req.QueryExecutionID == "" {
		s.writeAPIError(w, errInvalidRequest("QueryExecutionId is required"))
		return
	}

	id := *req.QueryExecutionID
	st, ok := s.states.Get(id)
	if !ok {
		s.writeAPIError(w, errNotFound("QueryExecution %s was not found", id))
		return
	}

	s.writeAmzJSON(w, http.StatusOK, getQueryExecutionResponse{
		QueryExecution: queryExecution{
			QueryExecutionID: id,
			Status:           queryExecutionStatus{State: st, SDKState: st},
		},
	})
}

func (s *Server) handleGetQueryResults(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotImplemented, "GetQueryResults is not implemented")
}

// handleListQueryExecutions pages through published ids, newest first.
func (s *Server) handleListQueryExecutions(w http.ResponseWriter, r *http.Request) {
	var req listQueryExecutionsRequest
	if apiErr := decodeInput(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	limit := defaultMaxResults
	if req.MaxResults != nil {
		limit = *req.MaxResults
		if limit < 1 || limit > maxMaxResults {
			s.writeAPIError(w, errInvalidRequest("MaxResults must be between 1 and %d", maxMaxResults))
			return
		}
	}

	ids := s.states.List()
	start := 0
	if req.NextToken != nil && *req.NextToken != "" {
		cursor, err := decodeNextToken(*req.NextToken)
		if err != nil || cursor >= len(ids) {
			s.writeAPIError(w, errInvalidRequest("NextToken is invalid"))
			return
		}
		start = len(ids) - 1 - cursor
	}

	end := min(start+limit, len(ids))
	resp := listQueryExecutionsResponse{QueryExecutionIDs: ids[start:end]}
	if end < len(ids) {
		resp.NextToken = encodeNextToken(len(ids) - 1 - end)
	}

	s.writeAmzJSON(w, http.StatusOK, resp)
}

// A next token is the insertion index of the first id on the next page,
// so executions started between pages do not shift it.
func encodeNextToken(cursor int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(cursor)))
}

func decodeNextToken(token string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	cursor, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, err
	}
	if cursor < 0 {
		return 0, strconv.ErrRange
	}
	return cursor, nil
}
