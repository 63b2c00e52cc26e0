package lib

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/TecharoHQ/vox"
	"github.com/TecharoHQ/vox/internal"
	"github.com/TecharoHQ/vox/lib/policy"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/net/publicsuffix"
)

var domainMatchRegexp = regexp.MustCompile(`^((xn--)?[a-z0-9]+(-[a-z0-9]+)*\.)+[a-z]{2,}$`)

type CookieOpts struct {
	Value  string
	Host   string
	Path   string
	Name   string
	Expiry time.Duration
}

func (s *Server) cookieDomain(host string) string {
	domain := s.opts.CookieDomain
	if s.opts.CookieDynamicDomain && domainMatchRegexp.MatchString(host) {
		if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			domain = etld
		}
	}
	return domain
}

func (s *Server) SetCookie(w http.ResponseWriter, cookieOpts CookieOpts) {
	name := vox.TokenCookieName
	path := "/"
	if cookieOpts.Name != "" {
		name = cookieOpts.Name
	}
	if cookieOpts.Path != "" {
		path = cookieOpts.Path
	}
	if cookieOpts.Expiry == 0 {
		cookieOpts.Expiry = s.opts.CookieExpiration
	}

	http.SetCookie(w, &http.Cookie{
		Name:        name,
		Value:       cookieOpts.Value,
		Expires:     time.Now().Add(cookieOpts.Expiry),
		SameSite:    http.SameSiteLaxMode,
		Domain:      s.cookieDomain(cookieOpts.Host),
		Secure:      s.opts.CookieSecure,
		HttpOnly:    true,
		Partitioned: s.opts.CookiePartitioned,
		Path:        path,
	})
}

func (s *Server) ClearCookie(w http.ResponseWriter, cookieOpts CookieOpts) {
	name := vox.TokenCookieName
	path := "/"
	if cookieOpts.Name != "" {
		name = cookieOpts.Name
	}
	if cookieOpts.Path != "" {
		path = cookieOpts.Path
	}

	http.SetCookie(w, &http.Cookie{
		Name:        name,
		Value:       "",
		MaxAge:      -1,
		Expires:     time.Now().Add(-1 * time.Minute),
		SameSite:    http.SameSiteLaxMode,
		Domain:      s.cookieDomain(cookieOpts.Host),
		Secure:      s.opts.CookieSecure,
		HttpOnly:    true,
		Partitioned: s.opts.CookiePartitioned,
		Path:        path,
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, status int, id string) {
	writeJSON(w, status, errorResponse{
		Error:   id,
		Message: s.messages.FromRequest(r).T(id),
	})
}

type challengeResponse struct {
	ChallengeID string    `json:"challenge_id"`
	Kind        string    `json:"kind"`
	Phrase      string    `json:"phrase"`
	Prompt      string    `json:"prompt"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	chall, err := s.Issue(r.Context(), r)
	if err != nil {
		lg.Error("can't issue challenge", "err", err)
		s.respondWithError(w, r, http.StatusInternalServerError, "error_internal")
		return
	}

	writeJSON(w, http.StatusOK, challengeResponse{
		ChallengeID: chall.ID,
		Kind:        chall.Kind,
		Phrase:      chall.Phrase,
		Prompt:      s.messages.FromRequest(r).Prompt(chall.Kind, chall.Phrase),
		ExpiresAt:   chall.ExpiresAt,
	})
}

type verifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Audio       string `json:"audio"`
	ContentType string `json:"content_type"`
}

type verdictResponse struct {
	ChallengeID     string          `json:"challenge_id"`
	Accepted        bool            `json:"accepted"`
	Reason          policy.Reason   `json:"reason"`
	Reasons         []policy.Reason `json:"reasons"`
	Message         string          `json:"message"`
	TranscriptScore *float64        `json:"transcript_score,omitempty"`
	BotScore        *float64        `json:"bot_score,omitempty"`
	ModelVersion    string          `json:"model_version,omitempty"`
	Token           string          `json:"token,omitempty"`
}

var errBadVerifyRequest = errors.New("lib: malformed verify request")

// readSample accepts multipart/form-data with challenge_id and an audio file,
// or a JSON body with base64 audio.
func readSample(w http.ResponseWriter, r *http.Request) (string, Sample, error) {
	r.Body = http.MaxBytesReader(w, r.Body, vox.MaxAudioBytes*2)

	sample := Sample{RemoteAddr: r.Header.Get("X-Real-Ip")}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(vox.MaxAudioBytes); err != nil {
			return "", sample, err
		}

		id := r.FormValue("challenge_id")
		f, hdr, err := r.FormFile("audio")
		if err != nil {
			return "", sample, err
		}
		defer f.Close()

		sample.Data, err = io.ReadAll(io.LimitReader(f, vox.MaxAudioBytes+1))
		if err != nil {
			return "", sample, err
		}
		sample.ContentType = hdr.Header.Get("Content-Type")
		return id, sample, nil
	case "application/json":
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", sample, err
		}

		data, err := base64.StdEncoding.DecodeString(req.Audio)
		if err != nil {
			return "", sample, err
		}
		sample.Data = data
		sample.ContentType = req.ContentType
		return req.ChallengeID, sample, nil
	default:
		return "", sample, errBadVerifyRequest
	}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	ip := r.Header.Get("X-Real-Ip")

	if window := s.policy.RateLimitWindow; window > 0 && ip != "" {
		if !s.attempts.SetIfAbsent(ip, struct{}{}, window) {
			lg.Debug("rate limited")
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(window.Seconds()))))
			s.respondWithError(w, r, http.StatusTooManyRequests, "error_rate_limited")
			return
		}
	}

	id, sample, err := readSample(w, r)
	if err != nil {
		lg.Debug("bad verify request", "err", err)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.respondWithError(w, r, http.StatusRequestEntityTooLarge, "error_too_large")
			return
		}
		s.respondWithError(w, r, http.StatusBadRequest, "error_bad_request")
		return
	}

	if len(sample.Data) > vox.MaxAudioBytes {
		s.respondWithError(w, r, http.StatusRequestEntityTooLarge, "error_too_large")
		return
	}

	v := s.Decide(r.Context(), id, sample)
	s.writeVerdict(w, r, v)
}

func (s *Server) writeVerdict(w http.ResponseWriter, r *http.Request, v policy.Verdict) {
	loc := s.messages.FromRequest(r)

	resp := verdictResponse{
		ChallengeID: v.ChallengeID,
		Accepted:    v.Accepted,
		Reason:      v.Reason,
		Reasons:     v.Reasons,
		Message:     loc.T(v.Reason.MessageID()),
	}

	if s.policy.ExposeScores {
		resp.TranscriptScore = &v.TranscriptScore
		resp.BotScore = &v.BotScore
		resp.ModelVersion = v.ModelVersion
	}

	if v.Accepted {
		token, err := s.signJWT(jwt.MapClaims{
			"challenge": v.ChallengeID,
			"model":     v.ModelVersion,
		})
		if err != nil {
			internal.GetRequestLogger(r).Error("failed to sign JWT", "err", err)
			s.respondWithError(w, r, http.StatusInternalServerError, "error_internal")
			return
		}

		resp.Token = token
		s.SetCookie(w, CookieOpts{Value: token, Host: r.Host})
	}

	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	ModelLoaded      bool   `json:"model_loaded"`
	ModelVersion     string `json:"model_version,omitempty"`
	ChallengesIssued int64  `json:"challenges_issued"`
	VerdictsAccepted int64  `json:"verdicts_accepted"`
	VerdictsRejected int64  `json:"verdicts_rejected"`
	Version          string `json:"version"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	version, loaded := s.CurrentModelVersion()

	writeJSON(w, http.StatusOK, statusResponse{
		ModelLoaded:      loaded,
		ModelVersion:     version,
		ChallengesIssued: s.issued.Load(),
		VerdictsAccepted: s.accepted.Load(),
		VerdictsRejected: s.rejected.Load(),
		Version:          vox.Version,
	})
}

// handleCheck answers 200 when the request carries a valid pass token and
// 401 otherwise, for use as a reverse proxy auth subrequest.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		ckie, err := r.Cookie(vox.TokenCookieName)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		raw = ckie.Value
	}

	if _, err := s.verifyJWT(raw); err != nil {
		lg.Debug("invalid token", "err", err)
		s.ClearCookie(w, CookieOpts{Host: r.Host})
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) signJWT(claims jwt.MapClaims) (string, error) {
	now := time.Now()
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Add(-1 * time.Minute).Unix()
	claims["exp"] = now.Add(s.opts.CookieExpiration).Unix()

	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.priv)
}

func (s *Server) verifyJWT(raw string) (jwt.MapClaims, error) {
	token, err := jwt.ParseWithClaims(raw, jwt.MapClaims{}, func(*jwt.Token) (any, error) {
		return s.pub, nil
	}, jwt.WithExpirationRequired(), jwt.WithStrictDecoding(), jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

