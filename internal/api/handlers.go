package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/alarm"
	"github.com/dokzlo13/sunrised/internal/ledger"
	"github.com/dokzlo13/sunrised/internal/state"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Alarm is the wire form of the schedule. Durations are Go duration strings;
// end also accepts HH:MM[:SS] on input.
type Alarm struct {
	End          string `json:"end"`
	FadeDuration string `json:"fadeDuration"`
}

// ActiveStatus is the wire form of the activation flag.
type ActiveStatus struct {
	Activated bool `json:"activated"`
}

func alarmResponse(s state.Schedule) Alarm {
	return Alarm{End: s.WakeTime.String(), FadeDuration: s.FadeDuration.String()}
}

func (s *Server) handleGetAlarm(w http.ResponseWriter, r *http.Request) {
	schedule, err := s.runtime.Schedule()
	if err != nil {
		writeStateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alarmResponse(schedule))
}

func (s *Server) handleSetAlarm(w http.ResponseWriter, r *http.Request) {
	var req Alarm
	if q := r.URL.Query(); q.Has("end") || q.Has("fadeDuration") {
		req = Alarm{End: q.Get("end"), FadeDuration: q.Get("fadeDuration")}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "expected end and fadeDuration as query parameters or a JSON body")
		return
	}

	schedule, err := parseAlarm(req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.runtime.SetSchedule(schedule); err != nil {
		writeStateError(w, err)
		return
	}

	log.Info().
		Str("end", alarm.FormatWakeTime(schedule.WakeTime)).
		Dur("fade_duration", schedule.FadeDuration).
		Msg("Alarm schedule replaced")
	writeJSON(w, http.StatusOK, alarmResponse(schedule))
}

func parseAlarm(req Alarm) (state.Schedule, error) {
	if req.End == "" || req.FadeDuration == "" {
		return state.Schedule{}, fmt.Errorf("end and fadeDuration are both required")
	}

	wake, err := alarm.ParseWakeTime(req.End)
	if err != nil {
		return state.Schedule{}, err
	}
	fade, err := alarm.ParseDuration(req.FadeDuration)
	if err != nil {
		return state.Schedule{}, fmt.Errorf("fadeDuration: %w", err)
	}

	schedule := state.Schedule{WakeTime: wake, FadeDuration: fade}
	if err := schedule.Validate(); err != nil {
		return state.Schedule{}, err
	}
	return schedule, nil
}

func (s *Server) handleGetActivated(w http.ResponseWriter, r *http.Request) {
	active, err := s.runtime.Activated()
	if err != nil {
		writeStateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActiveStatus{Activated: active})
}

func (s *Server) handleSetActivated(w http.ResponseWriter, r *http.Request) {
	var req ActiveStatus
	if q := r.URL.Query(); q.Has("activated") {
		v, err := strconv.ParseBool(q.Get("activated"))
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("invalid activated %q", q.Get("activated")))
			return
		}
		req.Activated = v
	} else {
		var body struct {
			Activated *bool `json:"activated"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Activated == nil {
			writeBadRequest(w, "expected activated as a query parameter or a JSON body")
			return
		}
		req.Activated = *body.Activated
	}

	if err := s.runtime.SetActivated(req.Activated); err != nil {
		writeStateError(w, err)
		return
	}

	log.Info().Bool("activated", req.Activated).Msg("Activation flag set")
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runID := r.URL.Query().Get("run_id")

	entries := []*ledger.Entry{}
	if s.history != nil {
		var err error
		if runID != "" {
			entries, err = s.history.GetByRun(runID, limit)
		} else {
			entries, err = s.history.Recent(limit)
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to read fade history")
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read history")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
