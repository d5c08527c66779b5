/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package secrets

import (
	"crypto/rand"
	"math/big"
	"net/url"

	"github.com/gravitational/podinfo/lib/defaults"

	"github.com/gravitational/trace"
)

const (
	alphanumeric     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	passwordSpecials = "!@#$%^&*"
)

// Rotate returns a copy of the secrets with freshly generated material.
// The database password is replaced inside the connection URL, all other
// URL components are preserved.
func Rotate(current Secrets) (*Secrets, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	databaseURL, err := RotateDatabaseURL(current.DatabaseURL)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &Secrets{
		SuperSecretToken: token,
		DatabaseURL:      databaseURL,
		APIKey:           apiKey,
	}, nil
}

// GenerateToken returns a new random application token
func GenerateToken() (string, error) {
	return randomString(defaults.TokenLength, alphanumeric)
}

// GenerateAPIKey returns a new random API key
func GenerateAPIKey() (string, error) {
	return randomString(defaults.APIKeyLength, alphanumeric)
}

// GeneratePassword returns a new random database password
func GeneratePassword() (string, error) {
	return randomString(defaults.PasswordLength, alphanumeric+passwordSpecials)
}

// RotateDatabaseURL replaces the password component of the database
// connection URL with a newly generated one.
func RotateDatabaseURL(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", trace.BadParameter("invalid database URL: %v", err)
	}
	if u.User == nil {
		return "", trace.BadParameter("database URL carries no credentials")
	}
	password, err := GeneratePassword()
	if err != nil {
		return "", trace.Wrap(err)
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String(), nil
}

func randomString(length int, alphabet string) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", trace.Wrap(err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
