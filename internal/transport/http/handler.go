package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"codearena-service/internal/app"
	"codearena-service/internal/domain"
)

// Handler maps the competition use cases onto a JSON REST API. Clients poll;
// there is no push channel. Logical errors are translated to status codes
// here and nowhere else.
type Handler struct {
	auth        *app.AuthService
	progression *app.ProgressionService
	round3      *app.Round3Service
	lifecycle   *app.LifecycleService
	admin       *app.AdminService
	query       *app.QueryService
	bank        app.QuestionBank
}

func NewHandler(
	auth *app.AuthService,
	progression *app.ProgressionService,
	round3 *app.Round3Service,
	lifecycle *app.LifecycleService,
	admin *app.AdminService,
	query *app.QueryService,
	bank app.QuestionBank,
) *Handler {
	return &Handler{
		auth:        auth,
		progression: progression,
		round3:      round3,
		lifecycle:   lifecycle,
		admin:       admin,
		query:       query,
		bank:        bank,
	}
}

// Routes builds the full router.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/teams/register", h.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/teams/login", h.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/admin/login", h.handleAdminLogin).Methods(http.MethodPost)
	api.HandleFunc("/leaderboard/round2", h.handleRound2Leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard/round3", h.handleRound3Leaderboard).Methods(http.MethodGet)

	team := api.NewRoute().Subrouter()
	team.Use(h.requireRole("team"))
	team.HandleFunc("/team/progress", h.handleProgress).Methods(http.MethodGet)
	team.HandleFunc("/team/submissions", h.handleOwnSubmissions).Methods(http.MethodGet)
	team.HandleFunc("/round2/questions", h.handleRound2Questions).Methods(http.MethodGet)
	team.HandleFunc("/round2/aptitude", h.handleAptitude).Methods(http.MethodPost)
	team.HandleFunc("/round2/challenge", h.handleChallenge).Methods(http.MethodPost)
	team.HandleFunc("/rounds/{round}/verify", h.handleVerifyCode).Methods(http.MethodPost)
	team.HandleFunc("/round3/questions", h.handleRound3Questions).Methods(http.MethodGet)
	team.HandleFunc("/round3/submit", h.handleRound3Submit).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.requireRole("admin"))
	admin.HandleFunc("/teams", h.handleListTeams).Methods(http.MethodGet)
	admin.HandleFunc("/teams/{id}/submissions", h.handleTeamSubmissions).Methods(http.MethodGet)
	admin.HandleFunc("/teams/{id}/status", h.handleForceStatus).Methods(http.MethodPut)
	admin.HandleFunc("/teams/{id}/reset", h.handleResetTeam).Methods(http.MethodPost)
	admin.HandleFunc("/reset", h.handleResetAll).Methods(http.MethodPost)
	admin.HandleFunc("/rounds/{round}/code", h.handleSetCode).Methods(http.MethodPost)
	admin.HandleFunc("/rounds/{round}/code", h.handleCodeStatus).Methods(http.MethodGet)
	admin.HandleFunc("/rounds/{round}/code", h.handleResetCode).Methods(http.MethodDelete)
	admin.HandleFunc("/rounds/{round}/announce", h.handleAnnounce).Methods(http.MethodPost)
	admin.HandleFunc("/rounds/{round}/select", h.handleSelect).Methods(http.MethodPost)
	admin.HandleFunc("/announcements", h.handleResetAnnouncements).Methods(http.MethodDelete)
	admin.HandleFunc("/status-counts", h.handleStatusCounts).Methods(http.MethodGet)

	return r
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in app.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	team, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TeamName string `json:"teamName"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	token, team, err := h.auth.Login(r.Context(), in.TeamName, in.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "team": team})
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	token, err := h.auth.AdminLogin(in.Username, in.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	view, err := h.progression.Progress(r.Context(), teamID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRound2Questions(w http.ResponseWriter, r *http.Request) {
	set, err := h.bank.Round2(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publicRound2(set))
}

func (h *Handler) handleAptitude(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Slot           int `json:"slot"`
		SelectedOption int `json:"selectedOption"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.progression.SubmitAptitude(r.Context(), teamID(r), in.Slot, in.SelectedOption)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ChallengeType domain.QuestionType `json:"challengeType"`
		Code          string              `json:"code"`
		TimeTaken     int64               `json:"timeTaken"`
		AutoSave      bool                `json:"autoSave"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.progression.SubmitChallenge(r.Context(), teamID(r), in.ChallengeType, in.Code, in.TimeTaken, in.AutoSave)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	round, ok := roundVar(w, r)
	if !ok {
		return
	}
	var in struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.lifecycle.VerifyCode(r.Context(), teamID(r), round, in.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRound3Questions(w http.ResponseWriter, r *http.Request) {
	questions, orderName, err := h.round3.QuestionsFor(r.Context(), teamID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderName": orderName, "questions": questions})
}

func (h *Handler) handleRound3Submit(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Answers []domain.Round3BlockAnswer `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	result, err := h.round3.Submit(r.Context(), teamID(r), in.Answers)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleOwnSubmissions(w http.ResponseWriter, r *http.Request) {
	history, err := h.query.TeamSubmissions(r.Context(), teamID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handleRound2Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.query.Round2Leaderboard(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleRound3Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.query.Round3Leaderboard(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.admin.Teams(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *Handler) handleTeamSubmissions(w http.ResponseWriter, r *http.Request) {
	history, err := h.query.TeamSubmissions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handleForceStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status domain.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.admin.ForceStatus(r.Context(), mux.Vars(r)["id"], in.Status); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(in.Status)})
}

func (h *Handler) handleResetTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.ResetTeam(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

func (h *Handler) handleResetAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.admin.ResetAllTeams(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"reset": count})
}

func (h *Handler) handleSetCode(w http.ResponseWriter, r *http.Request) {
	round, ok := roundVar(w, r)
	if !ok {
		return
	}
	var in struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.lifecycle.SetCode(r.Context(), round, in.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": true})
}

func (h *Handler) handleCodeStatus(w http.ResponseWriter, r *http.Request) {
	round, ok := roundVar(w, r)
	if !ok {
		return
	}
	rc, err := h.lifecycle.CodeStatus(r.Context(), round)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (h *Handler) handleResetCode(w http.ResponseWriter, r *http.Request) {
	round, ok := roundVar(w, r)
	if !ok {
		return
	}
	if err := h.lifecycle.ResetCode(r.Context(), round); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": false})
}

func (h *Handler) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	round, ok := roundVar(w, r)
	if !ok {
		return
	}
	count, err := h.lifecycle.AnnounceResults(r.Context(), round)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"announced": count})
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	round, ok := roundVar(w, r)
	if !ok {
		return
	}
	var in struct {
		TeamIDs []string `json:"teamIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	report, err := h.admin.SelectTeams(r.Context(), round, in.TeamIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleResetAnnouncements(w http.ResponseWriter, r *http.Request) {
	count, err := h.lifecycle.ResetAnnouncedResults(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": count})
}

func (h *Handler) handleStatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.query.StatusCounts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// publicRound2 strips answer keys before the set leaves the server.
func publicRound2(set domain.Round2Set) domain.Round2Set {
	aptitude := make([]domain.AptitudeQuestion, len(set.Aptitude))
	copy(aptitude, set.Aptitude)
	for i := range aptitude {
		aptitude[i].Answer = 0
	}
	return domain.Round2Set{Aptitude: aptitude, Coding: set.Coding}
}

func roundVar(w http.ResponseWriter, r *http.Request) (int, bool) {
	round, err := strconv.Atoi(mux.Vars(r)["round"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round")
		return 0, false
	}
	return round, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError is the single place logical errors become status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidChallengeType),
		errors.Is(err, domain.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrQuestionLocked),
		errors.Is(err, domain.ErrCodeInvalid):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrTeamNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrQuestionSetUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrAttemptsExhausted),
		errors.Is(err, domain.ErrTeamExists),
		errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
