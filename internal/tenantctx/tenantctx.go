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

// Package tenantctx carries the tenant identity an operation runs under.
//
// The context is an immutable value threaded through context.Context, never a
// process-wide holder: two concurrent tasks each see exactly the identity
// installed on their own context chain.
package tenantctx

import "context"

// TenantContext is an immutable snapshot of the acting identity.
type TenantContext struct {
	OrgID    string
	UserID   string
	UserName string
}

// IsZero reports whether no identity has been captured.
func (tc TenantContext) IsZero() bool {
	return tc.OrgID == "" && tc.UserID == ""
}

type contextKey struct{}

// With returns a child context carrying tc as the ambient tenant identity.
func With(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// From retrieves the ambient tenant identity installed by the nearest
// enclosing With. ok is false when the context carries none.
func From(ctx context.Context) (TenantContext, bool) {
	tc, ok := ctx.Value(contextKey{}).(TenantContext)
	return tc, ok
}

// MustFrom retrieves the ambient tenant identity, returning the zero value
// when none is installed. Callers that cannot proceed without an identity
// should use From and handle the missing case explicitly.
func MustFrom(ctx context.Context) TenantContext {
	tc, _ := From(ctx)
	return tc
}
