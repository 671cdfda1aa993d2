package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NordCoder/authgate/internal/obs"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	maxBodyBytes   = 1 << 20
	serverErrorMsg = "Server error. Try again later"
	logoutMsg      = "Logout successful"
)

var (
	flowRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_flow_requests_total",
		Help: "Auth flow requests by flow and HTTP status.",
	}, []string{"flow", "code"})
	flowLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_flow_duration_seconds",
		Help:    "Auth flow handling latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"flow"})
)

type Server struct {
	uc     *Usecase
	log    *zap.Logger
	cookie CookieConfig
}

type Opts struct {
	Logger *zap.Logger
	Cookie CookieConfig
}

func NewServer(uc *Usecase, o Opts) *Server {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{uc: uc, log: log, cookie: o.Cookie.withDefaults()}
}

// Register mounts the auth routes on mux.
func (s *Server) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method, path, flow string
		h                  func(http.ResponseWriter, *http.Request) int
	}{
		{http.MethodPost, "/api/auth/signup", "signup", s.signUp},
		{http.MethodPost, "/api/auth/login", "login", s.login},
		{http.MethodPost, "/api/auth/logout", "logout", s.logout},
		{http.MethodPost, "/api/auth/refresh", "refresh", s.refresh},
		{http.MethodGet, "/api/protected/me", "me", s.me},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, instrument(rt.flow, rt.h)); err != nil {
			return fmt.Errorf("register %s %s: %w", rt.method, rt.path, err)
		}
	}
	return nil
}

func instrument(flow string, h func(http.ResponseWriter, *http.Request) int) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		start := time.Now()
		ctx, span := obs.StartFlow(r.Context(), flow)
		code := h(w, r.WithContext(ctx))
		obs.EndFlow(span, code)
		flowLatency.WithLabelValues(flow).Observe(time.Since(start).Seconds())
		flowRequests.WithLabelValues(flow, strconv.Itoa(code)).Inc()
	}
}

type envelope struct {
	Message string `json:"message,omitempty"`
	Payload any    `json:"payload"`
	Code    int    `json:"code"`
}

type accessPayload struct {
	Access string `json:"access"`
}

type messagePayload struct {
	Message string `json:"message"`
}

type mePayload struct {
	PID       string `json:"pid"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
}

type errorBody struct {
	Detail string `json:"detail"`
	Code   int    `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) int {
	var in SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		return s.writeErr(w, r, err)
	}
	sess, err := s.uc.SignUp(r.Context(), in)
	if err != nil {
		return s.writeErr(w, r, err)
	}
	s.setRefreshCookie(w, sess.Refresh)
	return writeJSON(w, http.StatusCreated, envelope{Payload: accessPayload{Access: sess.Access}})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) int {
	req, err := decodeLogin(w, r)
	if err != nil {
		return s.writeErr(w, r, err)
	}
	if err := validateLogin(req); err != nil {
		return s.writeErr(w, r, err)
	}
	sess, err := s.uc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		return s.writeErr(w, r, err)
	}
	s.setRefreshCookie(w, sess.Refresh)
	return writeJSON(w, http.StatusOK, envelope{Payload: accessPayload{Access: sess.Access}})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) int {
	if err := s.uc.Logout(r.Context(), s.refreshFromRequest(r)); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.clearRefreshCookie(w)
		}
		return s.writeErr(w, r, err)
	}
	s.clearRefreshCookie(w)
	return writeJSON(w, http.StatusOK, envelope{Payload: messagePayload{Message: logoutMsg}})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) int {
	sess, err := s.uc.Refresh(r.Context(), s.refreshFromRequest(r))
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.clearRefreshCookie(w)
		}
		return s.writeErr(w, r, err)
	}
	s.setRefreshCookie(w, sess.Refresh)
	return writeJSON(w, http.StatusOK, envelope{Payload: accessPayload{Access: sess.Access}})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) int {
	u, err := s.uc.Me(r.Context(), bearer(r))
	if err != nil {
		return s.writeErr(w, r, err)
	}
	return writeJSON(w, http.StatusOK, envelope{
		Message: "Authenticated user",
		Payload: mePayload{PID: u.PID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email},
	})
}

// mapErr converts a flow error into an HTTP status and a caller-safe detail.
func mapErr(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ErrEmailExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, strings.TrimPrefix(err.Error(), ErrUnauthorized.Error()+": ")
	default:
		// storage, config and identifier exhaustion failures alike
		return http.StatusInternalServerError, serverErrorMsg
	}
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) int {
	code, detail := mapErr(err)
	if code >= http.StatusInternalServerError {
		obs.FailFlow(r.Context(), err)
		obs.WithTrace(r.Context(), s.log).Error("auth flow failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	return writeJSON(w, code, errorBody{Detail: detail, Code: code})
}

func writeJSON(w http.ResponseWriter, code int, body any) int {
	if env, ok := body.(envelope); ok {
		env.Code = code
		body = env
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
	return code
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", ErrValidation)
	}
	return nil
}

// decodeLogin accepts a JSON body or an urlencoded/multipart form.
func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		err := decodeJSON(w, r, &req)
		return req, err
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return req, fmt.Errorf("%w: malformed form body", ErrValidation)
		}
	} else if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("%w: malformed form body", ErrValidation)
	}
	req.Email = r.PostFormValue("email")
	req.Password = r.PostFormValue("password")
	return req, nil
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}
