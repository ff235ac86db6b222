// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// SubjectKey is the gin context key holding the authenticated subject.
const SubjectKey = "auth.subject"

// Authenticator verifies HS256 bearer credentials issued by the identity
// provider. The audience is not checked; the subject claim is required.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator returns an Authenticator for the shared secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Authenticate returns the subject of token.
func (a *Authenticator) Authenticate(token string) (string, error) {
	parsed, err := a.parser.Parse(token, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", model.Errorf(model.ErrUnauthorized, "token has expired")
		}
		return "", model.Errorf(model.ErrUnauthorized, "invalid token: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", model.Errorf(model.ErrUnauthorized, "token has no subject")
	}
	return sub, nil
}

// RequireAuth rejects requests without a valid bearer credential.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			abortWithError(c, model.Errorf(model.ErrUnauthorized, "missing bearer token"))
			return
		}
		sub, err := a.Authenticate(token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(SubjectKey, sub)
		c.Next()
	}
}

// OptionalAuth sets the subject when a valid credential is presented and
// otherwise lets the request through anonymously.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearer(c); ok {
			if sub, err := a.Authenticate(token); err == nil {
				c.Set(SubjectKey, sub)
			}
		}
		c.Next()
	}
}

// Subject returns the caller set by one of the middlewares.
func Subject(c *gin.Context) (string, bool) {
	sub := c.GetString(SubjectKey)
	return sub, sub != ""
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
