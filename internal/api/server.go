package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coffer/internal/auth"
	"coffer/internal/economy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type contextKey string

const principalContextKey contextKey = "principal"

type Verifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (auth.Principal, error)
}

type HealthFunc func(ctx context.Context) error

type Server struct {
	log      *slog.Logger
	auth     Verifier
	ledger   *economy.Service
	health   HealthFunc
	validate *validator.Validate
	now      func() time.Time
	mux      *chi.Mux
}

func New(logger *slog.Logger, verifier Verifier, ledger *economy.Service, health HealthFunc) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:      logger,
		auth:     verifier,
		ledger:   ledger,
		health:   health,
		validate: validator.New(),
		now:      time.Now,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/jobs", s.handleJobs)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Get("/", s.handleBalance)
			r.Post("/work", s.handleWork)
			r.Post("/slot", s.handleSlot)
			r.Post("/coinflip", s.handleCoinFlip)
			r.Post("/transfer", s.handleTransfer)
			r.Post("/borrow", s.handleBorrow)
			r.Post("/repay", s.handleRepay)
			r.Post("/deposit", s.handleDeposit)
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/job", s.handleChangeJob)
			r.Post("/credit", s.handleCredit)
			r.Post("/debit", s.handleDebit)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		principal, err := s.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type amountRequest struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

type stakeRequest struct {
	Stake int64 `json:"stake" validate:"gt=0"`
}

type transferRequest struct {
	To     int64 `json:"to"     validate:"gt=0"`
	Amount int64 `json:"amount" validate:"gt=0"`
}

type jobRequest struct {
	JobID string `json:"job_id" validate:"required"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out, err := s.ledger.Balance(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out, err := s.ledger.Work(r.Context(), id, s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	id, in, ok := parseRequest[stakeRequest](s, w, r)
	if !ok {
		return
	}
	out, err := s.ledger.PlaySlot(r.Context(), id, in.Stake)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCoinFlip(w http.ResponseWriter, r *http.Request) {
	id, in, ok := parseRequest[stakeRequest](s, w, r)
	if !ok {
		return
	}
	out, err := s.ledger.FlipCoin(r.Context(), id, in.Stake)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	id, in, ok := parseRequest[transferRequest](s, w, r)
	if !ok {
		return
	}
	if err := s.ledger.Transfer(r.Context(), id, economy.AccountID(in.To), in.Amount); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	id, in, ok := parseRequest[amountRequest](s, w, r)
	if !ok {
		return
	}
	if err := s.ledger.Borrow(r.Context(), id, in.Amount); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	id, in, ok := parseRequest[amountRequest](s, w, r)
	if !ok {
		return
	}
	out, err := s.ledger.Repay(r.Context(), id, in.Amount)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceMove(w, r, s.ledger.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceMove(w, r, s.ledger.Withdraw)
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceMove(w, r, s.ledger.Credit)
}

func (s *Server) handleDebit(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceMove(w, r, s.ledger.Debit)
}

func (s *Server) handleBalanceMove(w http.ResponseWriter, r *http.Request, move func(context.Context, economy.AccountID, int64) (economy.Balance, error)) {
	id, in, ok := parseRequest[amountRequest](s, w, r)
	if !ok {
		return
	}
	out, err := move(r.Context(), id, in.Amount)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChangeJob(w http.ResponseWriter, r *http.Request) {
	id, in, ok := parseRequest[jobRequest](s, w, r)
	if !ok {
		return
	}
	if err := s.ledger.ChangeJob(r.Context(), id, in.JobID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out, err := s.ledger.Balance(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.ledger.Jobs()})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.ledger.Leaderboard(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if rows == nil {
		rows = []economy.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": rows})
}

// parseRequest reads the path account id and a validated JSON body. It writes the error
// response itself and reports ok=false when the request cannot proceed.
func parseRequest[T any](s *Server, w http.ResponseWriter, r *http.Request) (economy.AccountID, T, bool) {
	var in T
	id, err := accountID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return 0, in, false
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return 0, in, false
	}
	if err := s.validate.Struct(in); err != nil {
		s.writeDomainError(w, r, validationError(err))
		return 0, in, false
	}
	return id, in, true
}

// validationError maps the first failed field onto the ledger error a caller would get
// from the engine for the same input.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return economy.ErrInvalidAmount
	}
	switch verrs[0].Field() {
	case "To":
		return economy.ErrInvalidTarget
	case "JobID":
		return economy.ErrUnknownJob
	default:
		return economy.ErrInvalidAmount
	}
}

func accountID(r *http.Request) (economy.AccountID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, economy.ErrInvalidTarget
	}
	return economy.AccountID(id), nil
}

func statusFor(kind string) int {
	switch kind {
	case "invalid_amount", "invalid_target", "unknown_job":
		return http.StatusBadRequest
	case "insufficient_funds", "debt_limit_exceeded", "no_debt":
		return http.StatusConflict
	case "cooldown_active":
		return http.StatusTooManyRequests
	case "storage_unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := economy.Kind(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.log.Error("ledger request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"principal", principalName(r.Context()),
			"kind", kind,
			"err", err,
		)
	}

	body := map[string]any{"error": economy.Message(err), "kind": kind}
	var cooldown *economy.CooldownError
	if errors.As(err, &cooldown) {
		body["remaining_seconds"] = cooldown.RemainingSeconds()
		w.Header().Set("Retry-After", strconv.FormatInt(cooldown.RemainingSeconds(), 10))
	}
	var debt *economy.DebtLimitError
	if errors.As(err, &debt) {
		body["remaining_capacity"] = debt.RemainingCapacity()
	}
	writeJSON(w, status, body)
}

func principalName(ctx context.Context) string {
	p, ok := ctx.Value(principalContextKey).(auth.Principal)
	if !ok {
		return ""
	}
	return p.Name
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message), "kind": kind})
}
