// Copyright 2025 Tom Barlow
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

package server

import (
	"golang.org/x/time/rate"
)

// RateLimiter bounds tool calls with a token bucket. Mutating tools draw
// from a second, smaller bucket as well.
type RateLimiter struct {
	calls  *rate.Limiter
	writes *rate.Limiter
}

// NewRateLimiter creates a limiter allowing perSecond sustained calls with
// the given burst. A non-positive perSecond disables limiting. Writes are
// held to a tenth of the call rate.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{
			calls:  rate.NewLimiter(rate.Inf, 0),
			writes: rate.NewLimiter(rate.Inf, 0),
		}
	}
	if burst <= 0 {
		burst = 1
	}
	writeBurst := burst / 10
	if writeBurst < 1 {
		writeBurst = 1
	}
	return &RateLimiter{
		calls:  rate.NewLimiter(rate.Limit(perSecond), burst),
		writes: rate.NewLimiter(rate.Limit(perSecond/10), writeBurst),
	}
}

// Allow reports whether a tool call may proceed. A write must fit both
// buckets; a rejected call spends no tokens from either.
func (rl *RateLimiter) Allow(write bool) bool {
	if !write {
		return rl.calls.Allow()
	}
	w := rl.writes.Reserve()
	if !w.OK() || w.Delay() > 0 {
		w.Cancel()
		return false
	}
	if !rl.calls.Allow() {
		w.Cancel()
		return false
	}
	return true
}
