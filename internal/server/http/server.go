package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stationkit/redeemq/internal/client"
	"github.com/stationkit/redeemq/internal/ledger"
	logpkg "github.com/stationkit/redeemq/pkg/log"
)

// Server serves the redemption API over HTTP.
type Server struct {
	led      *ledger.Ledger
	srv      *http.Server
	lis      net.Listener
	logger   logpkg.Logger
	validate *validator.Validate
}

// New creates a Server over the given ledger.
func New(led *ledger.Ledger, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
	}
	mux := http.NewServeMux()
	s := &Server{
		led:      led,
		logger:   logger.With(logpkg.Component("http")),
		validate: validator.New(),
		srv:      &http.Server{Handler: cors(mux)},
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/redeem", s.handleRedeem)
	mux.HandleFunc("/v1/vouchers", s.handleVoucherCreate)
	mux.HandleFunc("/v1/redemptions", s.handleRedemptions)
	return s
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the root handler for embedding in other servers and tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Close closes the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+client.IdempotencyKeyHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := r.Header.Get(client.IdempotencyKeyHeader)
	if key == "" {
		s.writeFailure(w, http.StatusBadRequest, client.RedeemResult{
			Status:    client.StatusUnknownError,
			Message:   "missing " + client.IdempotencyKeyHeader + " header",
			Retryable: false,
		})
		return
	}

	var req client.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, client.RedeemResult{
			Status:    client.StatusUnknownError,
			Message:   "malformed request body",
			Retryable: false,
		})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeFailure(w, http.StatusBadRequest, client.RedeemResult{
			Status:    client.StatusUnknownError,
			Message:   err.Error(),
			Retryable: false,
		})
		return
	}

	res, err := s.led.Redeem(r.Context(), req, key)
	if err != nil {
		s.logger.Error("redeem failed", logpkg.Err(err), logpkg.Str("voucher", req.VoucherCode))
		s.writeFailure(w, http.StatusInternalServerError, client.RedeemResult{
			Status:    client.StatusUnknownError,
			Message:   "internal error",
			Retryable: true,
		})
		return
	}
	writeJSON(w, statusCodeFor(res), res)
}

type voucherCreateReq struct {
	Code     string   `json:"code" validate:"required"`
	Amount   float64  `json:"amount" validate:"required,gt=0"`
	Currency string   `json:"currency" validate:"required,len=3"`
	Msisdn   string   `json:"msisdn"`
	Stations []string `json:"stations,omitempty"`
}

func (s *Server) handleVoucherCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req voucherCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	v, err := s.led.CreateVoucher(r.Context(), ledger.Voucher{
		Code:     req.Code,
		Amount:   req.Amount,
		Currency: req.Currency,
		Msisdn:   req.Msisdn,
		Stations: req.Stations,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrVoucherExists) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Error("voucher create failed", logpkg.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": v.ID, "code": v.Code})
}

func (s *Server) handleRedemptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rows, err := s.led.ListRedemptions(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []ledger.Redemption{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) writeFailure(w http.ResponseWriter, code int, res client.RedeemResult) {
	writeJSON(w, code, res)
}

// statusCodeFor maps a redeem result onto an HTTP status. Failure bodies are
// parseable either way; codes exist for plain HTTP clients.
func statusCodeFor(res client.RedeemResult) int {
	switch res.Status {
	case client.StatusRedeemed, client.StatusAlreadyRedeemed:
		return http.StatusOK
	case client.StatusNotFound:
		return http.StatusNotFound
	case client.StatusInvalidStation:
		return http.StatusForbidden
	case client.StatusReplay:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
