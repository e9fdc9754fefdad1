// Package auth verifies bearer tokens for the API.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrBadSignature = errors.New("auth: bad signature")
	ErrExpired      = errors.New("auth: token expired")
)

// Verifier validates tokens and extracts the caller's role.
// Modes: dev ("role" or "subject:role" tokens, nothing verified) and
// hmac (HS256 JWT).
type Verifier struct {
	Mode       string
	HMACSecret []byte
	RoleClaim  string
	now        func() time.Time
}

type Principal struct {
	Subject string
	Role    string // admin or user
}

func (p Principal) IsAdmin() bool { return p.Role == "admin" }

func NewVerifier(mode, secret string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{Mode: mode, HMACSecret: []byte(secret), RoleClaim: "role", now: time.Now}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		sub, role, ok := strings.Cut(token, ":")
		if !ok {
			sub, role = "", sub
		}
		if role == "" {
			return Principal{}, errors.New("auth: invalid dev token; expected role or subject:role")
		}
		return Principal{Subject: sub, Role: strings.ToLower(role)}, nil
	}
	if v.Mode != "hmac" {
		return Principal{}, errors.New("auth: unsupported mode " + v.Mode)
	}
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, ErrInvalidToken
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, ErrInvalidToken
	}
	if hdr.Alg != "HS256" {
		return Principal{}, errors.New("auth: unsupported alg " + hdr.Alg)
	}
	if !hmac.Equal(v.sign(segs[0]+"."+segs[1]), sig) {
		return Principal{}, ErrBadSignature
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, ErrInvalidToken
	}
	if exp, ok := claims["exp"].(float64); ok && v.clock().Unix() >= int64(exp) {
		return Principal{}, ErrExpired
	}
	role, _ := claims[v.roleClaim()].(string)
	sub, _ := claims["sub"].(string)
	if role == "" {
		role = "user"
	}
	return Principal{Subject: sub, Role: strings.ToLower(role)}, nil
}

// Sign issues an HS256 token for claims with the verifier's secret.
func (v *Verifier) Sign(claims map[string]any) (string, error) {
	hdr, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := b64urlEncode(hdr) + "." + b64urlEncode(payload)
	return input + "." + b64urlEncode(v.sign(input)), nil
}

func (v *Verifier) sign(input string) []byte {
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}

func (v *Verifier) clock() time.Time {
	if v.now == nil {
		return time.Now()
	}
	return v.now()
}

func (v *Verifier) roleClaim() string {
	if v.RoleClaim == "" {
		return "role"
	}
	return v.RoleClaim
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

func b64urlEncode(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }
