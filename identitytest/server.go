package identitytest

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/praxislearn/authkit/identity"
)

// SessionCookieName is the cookie the fake backend issues on login and
// OAuth exchange.
const SessionCookieName = "praxis_session"

type userRecord struct {
	profile      identity.UserProfile
	passwordHash []byte
}

// Server is an in-process fake identity backend.
type Server struct {
	srv        *httptest.Server
	signingKey []byte

	mu            sync.Mutex
	users         map[string]*userRecord // keyed by user ID
	byEmail       map[string]string      // email -> user ID
	sessions      map[string]string      // session ID -> user ID
	otps          map[string]string      // email -> code
	authCodes     map[string]string      // authorization code -> user ID
	exchangeCount map[string]int         // authorization code -> exchange attempts
	lastOTP       map[string]string      // email -> last issued code
}

// New starts a fake identity backend on a random local port.
func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		signingKey:    []byte(uuid.NewString()),
		users:         make(map[string]*userRecord),
		byEmail:       make(map[string]string),
		sessions:      make(map[string]string),
		otps:          make(map[string]string),
		authCodes:     make(map[string]string),
		exchangeCount: make(map[string]int),
		lastOTP:       make(map[string]string),
	}

	engine := gin.New()
	engine.POST("/auth/user/login", s.handleLogin)
	engine.GET("/auth/user/profile", s.handleProfile)
	engine.POST("/auth/user/logout", s.handleLogout)
	engine.POST("/auth/user/request-otp/:email", s.handleRequestOTP)
	engine.PUT("/auth/user/profile", s.handleUpdateProfile)
	engine.POST("/oauth2/callback", s.handleExchange)

	s.srv = httptest.NewServer(engine)
	return s
}

// URL returns the backend base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the backend down.
func (s *Server) Close() {
	s.srv.Close()
}

// AddUser registers a user and returns its profile.
func (s *Server) AddUser(name, email, password string) identity.UserProfile {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("identitytest: hash password: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile := identity.UserProfile{
		ID:    uuid.NewString(),
		Name:  name,
		Email: email,
	}
	s.users[profile.ID] = &userRecord{profile: profile, passwordHash: hash}
	s.byEmail[email] = profile.ID
	return profile
}

// SeedAuthorizationCode registers a single-use OAuth authorization code
// for the user with the given email.
func (s *Server) SeedAuthorizationCode(code, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byEmail[email]; ok {
		s.authCodes[code] = id
	}
}

// LastOTP returns the most recently issued verification code for an
// email address, or "" if none was issued.
func (s *Server) LastOTP(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOTP[email]
}

// ExchangeCount returns how many exchange requests were received for an
// authorization code. Used to assert the single-use guard client-side.
func (s *Server) ExchangeCount(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchangeCount[code]
}

// Profile returns the current stored profile for an email, if any.
func (s *Server) Profile(email string) (identity.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byEmail[email]; ok {
		return s.users[id].profile, true
	}
	return identity.UserProfile{}, false
}

// --- session cookie handling ---

func (s *Server) issueSession(c *gin.Context, userID string) error {
	sid := uuid.NewString()

	s.mu.Lock()
	s.sessions[sid] = userID
	s.mu.Unlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sid,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return err
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSession(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// authenticate resolves the session cookie to a user ID.
func (s *Server) authenticate(c *gin.Context) (string, bool) {
	cookie, err := c.Request.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.sessions[claims.Subject]
	return userID, ok
}

// --- handlers ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Malformed login request"})
		return
	}

	s.mu.Lock()
	id, ok := s.byEmail[req.Email]
	var record *userRecord
	if ok {
		record = s.users[id]
	}
	s.mu.Unlock()

	if record == nil || bcrypt.CompareHashAndPassword(record.passwordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		return
	}

	if err := s.issueSession(c, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create session"})
		return
	}

	profile := record.profile
	c.JSON(http.StatusOK, gin.H{"success": true, "user": profile})
}

func (s *Server) handleProfile(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	s.mu.Lock()
	profile := s.users[userID].profile
	s.mu.Unlock()

	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleLogout(c *gin.Context) {
	if cookie, err := c.Request.Cookie(SessionCookieName); err == nil {
		claims := &jwt.RegisteredClaims{}
		if _, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
			return s.signingKey, nil
		}); err == nil {
			s.mu.Lock()
			delete(s.sessions, claims.Subject)
			s.mu.Unlock()
		}
	}
	s.clearSession(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRequestOTP(c *gin.Context) {
	email := c.Param("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required"})
		return
	}

	code := generateOTP()

	s.mu.Lock()
	s.otps[email] = code
	s.lastOTP[email] = code
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Verification code sent"})
}

type updateRequest struct {
	Name     *string `json:"name"`
	ImageURL *string `json:"image_url"`
	Email    *string `json:"email"`
	OTP      *string `json:"otp"`
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Malformed update request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.users[userID]
	if req.Email != nil && *req.Email != record.profile.Email {
		if req.OTP == nil || s.otps[*req.Email] == "" || s.otps[*req.Email] != *req.OTP {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired verification code"})
			return
		}
		delete(s.otps, *req.Email)
		delete(s.byEmail, record.profile.Email)
		record.profile.Email = *req.Email
		s.byEmail[*req.Email] = userID
	}
	if req.Name != nil {
		record.profile.Name = *req.Name
	}
	if req.ImageURL != nil {
		record.profile.ImageURL = *req.ImageURL
	}

	c.JSON(http.StatusOK, record.profile)
}

type exchangeRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (s *Server) handleExchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Malformed exchange request"})
		return
	}

	s.mu.Lock()
	s.exchangeCount[req.Code]++
	userID, ok := s.authCodes[req.Code]
	if ok {
		delete(s.authCodes, req.Code) // single-use
	}
	var profile identity.UserProfile
	if ok {
		profile = s.users[userID].profile
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid authorization code"})
		return
	}

	if err := s.issueSession(c, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": profile})
}

// generateOTP returns a 6-digit numeric code.
func generateOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(fmt.Sprintf("identitytest: generate otp: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}
