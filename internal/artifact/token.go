// Copyright 2026 The Adminkit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package artifact

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid covers malformed, forged, and expired download tokens; the
// caller cannot distinguish them and responds "gone" either way.
var ErrTokenInvalid = errors.New("invalid download token")

// TokenSigner issues and verifies download tokens. A token is an HS256 JWT
// whose expiry matches the artifact's, so the URL itself stops working at the
// same instant the sweeper becomes entitled to reclaim the blob.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner creates a signer with the given HMAC secret
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

type downloadClaims struct {
	JobID string `json:"job_id"`
	jwt.RegisteredClaims
}

// Sign issues a download token for jobID valid until expiresAt
func (s *TokenSigner) Sign(jobID string, expiresAt time.Time) (string, error) {
	claims := downloadClaims{
		JobID: jobID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "artifact-download",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign download token: %w", err)
	}
	return signed, nil
}

// Verify validates a download token and returns the job it references
func (s *TokenSigner) Verify(tokenString string) (string, error) {
	var claims downloadClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.JobID == "" {
		return "", ErrTokenInvalid
	}
	return claims.JobID, nil
}
