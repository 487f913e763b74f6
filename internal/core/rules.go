package core

import (
	"context"
	"fmt"
	"slices"

	"nexonsite/pkg/domain"
)

// PublicCollections are readable without credentials.
var PublicCollections = []string{CollectionPortfolio, CollectionPosts}

// NewRulesEngine constructs an engine instance without rules.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in access policy.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewPublicReadRule(PublicCollections...))
	engine.Register(NewAdminWriteRule())
	return engine
}

type publicReadRule struct {
	public []string
}

// NewPublicReadRule lets anyone get or list the named collections. Reads of
// any other collection require the admin principal.
func NewPublicReadRule(collections ...string) Rule {
	return publicReadRule{public: append([]string(nil), collections...)}
}

func (r publicReadRule) Name() string { return "public_read" }

func (r publicReadRule) Evaluate(_ context.Context, req Request) (Result, error) {
	if req.Operation.IsWrite() || req.Principal.IsAdmin() || slices.Contains(r.public, req.Collection) {
		return Result{}, nil
	}
	return Result{Violations: []Violation{{
		Rule:      r.Name(),
		Severity:  SeverityBlock,
		Message:   fmt.Sprintf("collection %s is not publicly readable", req.Collection),
		Path:      req.Path(),
		Operation: req.Operation,
	}}}, nil
}

type adminWriteRule struct{}

// NewAdminWriteRule blocks every write not made by the admin principal.
func NewAdminWriteRule() Rule {
	return adminWriteRule{}
}

func (adminWriteRule) Name() string { return "admin_write" }

func (r adminWriteRule) Evaluate(_ context.Context, req Request) (Result, error) {
	if !req.Operation.IsWrite() || req.Principal.IsAdmin() {
		return Result{}, nil
	}
	subject := req.Principal.Subject
	if subject == "" {
		subject = req.Principal.Role
	}
	return Result{Violations: []Violation{{
		Rule:      r.Name(),
		Severity:  SeverityBlock,
		Message:   fmt.Sprintf("%s may not %s %s", subject, req.Operation, req.Path()),
		Path:      req.Path(),
		Operation: req.Operation,
	}}}, nil
}
