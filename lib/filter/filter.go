// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package filter implements the regex-keyed predicate registry that
// gates entries out of processing before they ever reach the cache. §4.3
// mandates regex-keyed patterns, so this deliberately uses stdlib
// regexp rather than a glob engine (see DESIGN.md).
package filter

import (
	"reflect"
	"regexp"
	"sync"

	"github.com/nshi/falcon/lib/entry"
	"github.com/nshi/falcon/lib/ferr"
	"github.com/nshi/falcon/lib/logger"
)

var log = logger.New("filter")

// Predicate is a user predicate; true suppresses the entry.
type Predicate func(e entry.Entry) bool

type registration struct {
	isDir     bool
	predicate Predicate
}

type compiled struct {
	re   *regexp.Regexp
	regs []registration
}

// Chain is a map from compiled regex to an ordered list of
// (is-directory, predicate) registrations.
type Chain struct {
	mu      sync.Mutex
	byText  map[string]*compiled
	pattern []string // registration order, for deterministic iteration
}

// New returns an empty filter chain.
func New() *Chain {
	return &Chain{byText: make(map[string]*compiled)}
}

// Register compiles pattern (if not already known) and associates
// (isDir, predicate) with it. A nil predicate is a pure pattern filter.
func (c *Chain) Register(isDir bool, pattern string, predicate Predicate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp, ok := c.byText[pattern]
	if !ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			log.Warnln("filter: refusing bad pattern", pattern, err)
			return ferr.New(ferr.Usage, "filter.Register", err)
		}
		cp = &compiled{re: re}
		c.byText[pattern] = cp
		c.pattern = append(c.pattern, pattern)
	}
	cp.regs = append(cp.regs, registration{isDir: isDir, predicate: predicate})
	return nil
}

// Unregister removes the matching (isDir, predicate) entry, pruning the
// pattern entirely once its registration list is empty.
func (c *Chain) Unregister(isDir bool, pattern string, predicate Predicate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp, ok := c.byText[pattern]
	if !ok {
		return
	}
	for i, r := range cp.regs {
		if r.isDir == isDir && samePredicate(r.predicate, predicate) {
			cp.regs = append(cp.regs[:i], cp.regs[i+1:]...)
			break
		}
	}
	if len(cp.regs) == 0 {
		delete(c.byText, pattern)
		for i, p := range c.pattern {
			if p == pattern {
				c.pattern = append(c.pattern[:i], c.pattern[i+1:]...)
				break
			}
		}
	}
}

func samePredicate(a, b Predicate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// Matches iterates all patterns in registration order; for each one
// whose regex matches e.Name, it iterates that pattern's registrations.
// An entry matches the first registration whose isDir agrees and whose
// predicate (if any) returns true.
func (c *Chain) Matches(e entry.Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, pattern := range c.pattern {
		cp := c.byText[pattern]
		if !cp.re.MatchString(e.Name) {
			continue
		}
		for _, r := range cp.regs {
			if r.isDir == e.IsDir() && (r.predicate == nil || r.predicate(e)) {
				return true
			}
		}
	}
	return false
}
