package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"example/cpl-trainer/app/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type fakeEnqueuer struct {
	mu   sync.Mutex
	jobs []models.CalibrationMessage
	err  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, job models.CalibrationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func newTestHandlers(t *testing.T, eng Analyzer, queue Enqueuer) (*gin.Engine, *Handlers) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	deps := SessionDeps{
		Engine: eng,
		Tiers:  testTiers(t),
		Params: models.DefaultSelectorParams(),
		Events: hub,
		Log:    zerolog.Nop(),
	}
	h := &Handlers{
		Sessions: NewSessionStore(deps, 42),
		Hub:      hub,
		Queue:    queue,
		Log:      zerolog.Nop(),
	}
	return NewRouter(h), h
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createTestSession(t *testing.T, r http.Handler, body string) models.SessionState {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /sessions status = %d body=%s", w.Code, w.Body.String())
	}
	var st models.SessionState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding session: %v", err)
	}
	return st
}

func TestHealthAndTiers(t *testing.T) {
	r, _ := newTestHandlers(t, &legalMovesAnalyzer{}, nil)

	if w := doJSON(t, r, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/tiers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("tiers status = %d", w.Code)
	}
	var body struct {
		Default string             `json:"default"`
		Tiers   []models.SkillTier `json:"tiers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding tiers: %v", err)
	}
	if body.Default != "cpl30" || len(body.Tiers) != len(DefaultTiers()) {
		t.Fatalf("unexpected tiers response %+v", body)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestHandlers(t, &legalMovesAnalyzer{}, nil)

	st := createTestSession(t, r, `{"tier":"cpl15"}`)
	if st.Tier != "cpl15" || !st.Analysis || st.HumanColor != "w" {
		t.Fatalf("unexpected new session %+v", st)
	}
	base := "/sessions/" + st.ID

	w := doJSON(t, r, http.MethodPost, base+"/moves", `{"move":"e2e4"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d body=%s", w.Code, w.Body.String())
	}
	var turn models.TurnResult
	if err := json.Unmarshal(w.Body.Bytes(), &turn); err != nil {
		t.Fatalf("decoding turn: %v", err)
	}
	if turn.Human.SAN != "e4" || turn.Engine == nil || turn.State.Stats.HumanCount != 1 {
		t.Fatalf("unexpected turn %+v", turn)
	}

	if w := doJSON(t, r, http.MethodPost, base+"/moves", `{"move":"e2e4"}`); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("illegal move status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, base+"/engine-move", ""); w.Code != http.StatusConflict {
		t.Fatalf("engine-move on human turn status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPut, base+"/settings", `{"tier":"nope"}`); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown tier status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPut, base+"/settings", `{"tier":"cpl55","analysis":false}`); w.Code != http.StatusOK {
		t.Fatalf("settings status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, base+"/undo", "")
	if w.Code != http.StatusOK {
		t.Fatalf("undo status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding undo: %v", err)
	}
	if len(st.MoveList) != 0 || st.Tier != "cpl55" || st.Analysis {
		t.Fatalf("unexpected state after undo %+v", st)
	}

	if w := doJSON(t, r, http.MethodPost, base+"/reset", ""); w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodDelete, base, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, base, ""); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", w.Code)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	r, _ := newTestHandlers(t, &legalMovesAnalyzer{}, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad color", `{"human_color":"green"}`, http.StatusBadRequest},
		{"bad fen", `{"start_fen":"not a fen"}`, http.StatusBadRequest},
		{"unknown tier", `{"tier":"cpl999"}`, http.StatusUnprocessableEntity},
		{"empty body", ``, http.StatusCreated},
		{"black", `{"human_color":"black","analysis":false}`, http.StatusCreated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if w := doJSON(t, r, http.MethodPost, "/sessions", tc.body); w.Code != tc.want {
				t.Fatalf("status = %d, want %d (body=%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestMoveAfterGameOver(t *testing.T) {
	r, _ := newTestHandlers(t, &legalMovesAnalyzer{}, nil)
	st := createTestSession(t, r, `{"human_color":"black","analysis":false,"start_fen":"`+foolsMateToPlay+`"}`)

	if w := doJSON(t, r, http.MethodPost, "/sessions/"+st.ID+"/moves", `{"move":"d8h4"}`); w.Code != http.StatusOK {
		t.Fatalf("mating move status = %d body=%s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPost, "/sessions/"+st.ID+"/moves", `{"move":"e8d8"}`); w.Code != http.StatusConflict {
		t.Fatalf("move after mate status = %d", w.Code)
	}
}

func TestEngineFailureMapsTo503(t *testing.T) {
	eng := &legalMovesAnalyzer{}
	r, _ := newTestHandlers(t, eng, nil)
	st := createTestSession(t, r, `{}`)

	eng.mu.Lock()
	eng.err = ErrEngineUnavailable
	eng.mu.Unlock()
	if w := doJSON(t, r, http.MethodPost, "/sessions/"+st.ID+"/moves", `{"move":"e2e4"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/sessions/"+st.ID+"/moves", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing move status = %d, want 400", w.Code)
	}
}

func TestCalibrationEndpoints(t *testing.T) {
	t.Run("no queue", func(t *testing.T) {
		r, _ := newTestHandlers(t, &legalMovesAnalyzer{}, nil)
		if w := doJSON(t, r, http.MethodPost, "/calibrations", `{"tier":"cpl30","games":2}`); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
	})

	t.Run("enqueue", func(t *testing.T) {
		q := &fakeEnqueuer{}
		r, _ := newTestHandlers(t, &legalMovesAnalyzer{}, q)

		if w := doJSON(t, r, http.MethodPost, "/calibrations", `{"tier":"cpl30","games":0}`); w.Code != http.StatusBadRequest {
			t.Fatalf("zero games status = %d", w.Code)
		}
		if w := doJSON(t, r, http.MethodPost, "/calibrations", `{"tier":"x","games":3}`); w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("unknown tier status = %d", w.Code)
		}

		w := doJSON(t, r, http.MethodPost, "/calibrations", `{"tier":"cpl40","games":3,"max_plies":20}`)
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
		}
		if len(q.jobs) != 1 {
			t.Fatalf("expected one job, got %d", len(q.jobs))
		}
		job := q.jobs[0]
		if job.JobID == "" || job.Tier != "cpl40" || job.Games != 3 || job.MaxPlies != 20 {
			t.Fatalf("unexpected job %+v", job)
		}
	})

	t.Run("enqueue failure fails the run", func(t *testing.T) {
		var failed []string
		original := failCalibration
		failCalibration = func(ctx context.Context, runID string) error {
			failed = append(failed, runID)
			return nil
		}
		defer func() { failCalibration = original }()

		q := &fakeEnqueuer{err: errors.New("sqs down")}
		r, _ := newTestHandlers(t, &legalMovesAnalyzer{}, q)
		w := doJSON(t, r, http.MethodPost, "/calibrations", `{"tier":"cpl30","games":2}`)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", w.Code)
		}
		if len(failed) != 1 || failed[0] == "" {
			t.Fatalf("run not marked failed: %v", failed)
		}
	})

	t.Run("lookup without storage", func(t *testing.T) {
		r, _ := newTestHandlers(t, &legalMovesAnalyzer{}, nil)
		if w := doJSON(t, r, http.MethodGet, "/calibrations/abc", ""); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
	})
}

func TestSessionWebsocketStream(t *testing.T) {
	r, _ := newTestHandlers(t, &legalMovesAnalyzer{}, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	st := createTestSession(t, r, `{"tier":"perfect"}`)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + st.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readEvent := func() models.SessionEvent {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev models.SessionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return ev
	}

	if ev := readEvent(); ev.Type != models.EventSettings {
		t.Fatalf("first event = %q, want settings", ev.Type)
	}

	if w := doJSON(t, r, http.MethodPost, "/sessions/"+st.ID+"/moves", `{"move":"e2e4"}`); w.Code != http.StatusOK {
		t.Fatalf("move status = %d", w.Code)
	}
	ev := readEvent()
	var ply models.PlyReport
	if err := json.Unmarshal(ev.Payload, &ply); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if ev.Type != models.EventMove || ply.SAN != "e4" {
		t.Fatalf("unexpected event %s %+v", ev.Type, ply)
	}
	if ev := readEvent(); ev.Type != models.EventMove {
		t.Fatalf("engine reply event = %q", ev.Type)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrSessionNotFound, http.StatusNotFound},
		{ErrIllegalMove, http.StatusUnprocessableEntity},
		{ErrGameOver, http.StatusConflict},
		{ErrSearchInFlight, http.StatusConflict},
		{ErrEngineUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestStatelessRouterOmitsSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, h := newTestHandlers(t, &legalMovesAnalyzer{}, nil)
	r := NewStatelessRouter(h)

	if w := doJSON(t, r, http.MethodGet, "/tiers", ""); w.Code != http.StatusOK {
		t.Fatalf("tiers status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/sessions", `{}`); w.Code != http.StatusNotFound {
		t.Fatalf("sessions status = %d, want 404", w.Code)
	}
	if h.Sessions.Len() != 0 {
		t.Fatalf("stateless router created a session")
	}
}
