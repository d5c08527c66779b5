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

// Package httplib provides JSON reply helpers and the middleware chain
// shared by the podinfo HTTP handlers.
package httplib

import (
	"net/http"

	"github.com/gravitational/roundtrip"
)

// ReplyJSON sends the JSON-encoded payload with the given HTTP status code
func ReplyJSON(w http.ResponseWriter, code int, payload interface{}) {
	roundtrip.ReplyJSON(w, code, payload)
}

// Message returns structured message response
func Message(msg string) interface{} {
	return map[string]string{"message": msg}
}

// OK returns structured OK response
func OK() interface{} {
	return Message("OK")
}
