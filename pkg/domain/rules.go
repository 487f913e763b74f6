package domain

import "context"

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine whether a request proceeds.
const (
	// SeverityBlock refuses the request.
	SeverityBlock Severity = "block"
	// SeverityWarn is logged but allows the request.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Request describes one access attempt evaluated by the rules engine.
type Request struct {
	Operation  Operation
	Collection string
	DocumentID string
	Principal  Principal
	// Resource is the incoming document for writes; nil for reads and deletes.
	Resource *Record
}

// Path returns the canonical path of the requested resource.
func (r Request) Path() string {
	if r.DocumentID == "" {
		return r.Collection
	}
	return r.Collection + "/" + r.DocumentID
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule      string
	Severity  Severity
	Message   string
	Path      string
	Operation Operation
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// FirstBlocking returns the first blocking violation, if any.
func (r Result) FirstBlocking() (Violation, bool) {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return v, true
		}
	}
	return Violation{}, false
}

// RuleViolationError carries the blocking result behind a PermissionError.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	if v, ok := e.Result.FirstBlocking(); ok {
		return "blocked by rule " + v.Rule + ": " + v.Message
	}
	return "request blocked by rules"
}

// Rule defines an access evaluation executed for every store request.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	var combined Result
	if e == nil {
		return combined, nil
	}
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, req)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}

// Authorize evaluates req and converts a blocking result into a
// *PermissionError for the requested path and operation.
func (e *RulesEngine) Authorize(ctx context.Context, req Request) (Result, error) {
	res, err := e.Evaluate(ctx, req)
	if err != nil {
		return res, err
	}
	if res.HasBlocking() {
		return res, NewPermissionError(req.Path(), req.Operation, RuleViolationError{Result: res})
	}
	return res, nil
}
