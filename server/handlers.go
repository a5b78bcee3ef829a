package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"dimfilter/models"

	"github.com/ONSdigital/log.go/v2/log"
	"github.com/gorilla/mux"
)

const maxBodySize = 8 << 20

// statusFor maps binding errors onto http statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidEdit):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidRow),
		errors.Is(err, models.ErrUnknownDimension),
		errors.Is(err, models.ErrUnknownMeasure):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotEditable), errors.Is(err, models.ErrDataUnavailable):
		return http.StatusConflict
	case errors.Is(err, models.ErrTornDown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", err, log.Data{"path": r.URL.Path})
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.controller.Render()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// postDataSource binds a new data source, decoded from the request body.
func (s *Server) postDataSource(w http.ResponseWriter, r *http.Request) {
	ds, err := models.ReadDataSource(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.Bind(ds); err != nil {
		writeError(w, r, err)
		return
	}
	log.Info(r.Context(), "data source bound", log.Data{"records": ds.Len(), "state": ds.CurrentState()})
	writeJSON(w, http.StatusCreated, map[string]string{"status": s.controller.Status().String()})
}

type stateRequest struct {
	State models.DataState `json:"state"`
}

// putDataSourceState advances the load state of the bound data source and rebinds it, as the
// hosting platform does when a pending result completes.
func (s *Server) putDataSourceState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	switch req.State {
	case models.StatePending, models.StateSuccess, models.StateError:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown state " + strconv.Quote(string(req.State))})
		return
	}

	ds := s.Source()
	if ds == nil {
		writeError(w, r, models.ErrDataUnavailable)
		return
	}
	ds.SetState(req.State)
	if err := s.Bind(ds); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": s.controller.Status().String()})
}

func (s *Server) postRow(w http.ResponseWriter, r *http.Request) {
	index, err := s.controller.AddEmptyRow()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"index": index})
}

type editRequest struct {
	Value string `json:"value"`
}

func (s *Server) putMeasure(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	row, err := strconv.Atoi(vars["row"])
	if err != nil {
		writeError(w, r, models.ErrInvalidRow)
		return
	}
	var req editRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := s.controller.OnUserEdit(row, vars["measure"], req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postToggle(w http.ResponseWriter, r *http.Request) {
	row, err := strconv.Atoi(mux.Vars(r)["row"])
	if err != nil {
		writeError(w, r, models.ErrInvalidRow)
		return
	}
	selected, err := s.controller.ToggleRowSelection(row)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"selected": selected})
}

func (s *Server) postSelection(w http.ResponseWriter, r *http.Request) {
	var ev UserEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.controller.OnDimensionSelect(ev.RowKey, ev.DimensionKey, ev.MemberID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
