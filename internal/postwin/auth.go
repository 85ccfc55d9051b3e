package postwin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type tokenClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) issueToken(u *User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// verifyToken returns the user id carried by the request's auth cookie.
func (s *Server) verifyToken(r *http.Request) (string, bool) {
	ck, err := r.Cookie(s.cfg.CookieName)
	if err != nil || ck.Value == "" {
		return "", false
	}
	var claims tokenClaims
	_, err = jwt.ParseWithClaims(ck.Value, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.UserID == "" {
		return "", false
	}
	return claims.UserID, true
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := s.verifyToken(r)
		if !ok {
			Error(w, http.StatusUnauthorized, "No autenticado")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, uid)))
	})
}

// ---- Handlers ----

type credentials struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	StoreName      string `json:"store_name"`
	CurrencySymbol string `json:"currency_symbol"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeBody(r, &in); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Email == "" || in.Password == "" || in.StoreName == "" {
		Error(w, http.StatusBadRequest, "Email, password y nombre de tienda son requeridos")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	u := &User{
		Email:          strings.TrimSpace(in.Email),
		PasswordHash:   string(hash),
		StoreName:      in.StoreName,
		CurrencySymbol: in.CurrencySymbol,
	}
	if u.CurrencySymbol == "" {
		u.CurrencySymbol = "$"
	}
	if err := s.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			Error(w, http.StatusBadRequest, "El email ya está registrado")
			return
		}
		s.internalError(w, r, err)
		return
	}
	token, err := s.issueToken(u)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.setAuthCookie(w, token)
	JSON(w, http.StatusOK, map[string]any{
		"message": "Usuario registrado exitosamente",
		"user":    map[string]any{"id": u.ID, "email": u.Email, "store_name": u.StoreName},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeBody(r, &in); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Email == "" || in.Password == "" {
		Error(w, http.StatusBadRequest, "Email y password son requeridos")
		return
	}
	u, err := s.store.UserByEmail(r.Context(), strings.TrimSpace(in.Email))
	if errors.Is(err, ErrNotFound) {
		Error(w, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		Error(w, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}
	token, err := s.issueToken(u)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.setAuthCookie(w, token)
	JSON(w, http.StatusOK, map[string]any{"message": "Login exitoso", "user": publicUser(u)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: s.cfg.CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	JSON(w, http.StatusOK, map[string]string{"message": "Logout exitoso"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.verifyToken(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "No autenticado")
		return
	}
	u, err := s.store.UserByID(r.Context(), uid)
	if errors.Is(err, ErrNotFound) {
		Error(w, http.StatusNotFound, "Usuario no encontrado")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"user": publicUser(u)})
}

func publicUser(u *User) map[string]any {
	return map[string]any{
		"id":              u.ID,
		"email":           u.Email,
		"store_name":      u.StoreName,
		"currency_symbol": u.CurrencySymbol,
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("internal error", "method", r.Method, "path", r.URL.Path, "err", err)
	JSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error", "details": err.Error()})
}
