package core

import "nexonsite/pkg/domain"

type (
	Record             = domain.Record
	Fields             = domain.Fields
	Post               = domain.Post
	PortfolioItem      = domain.PortfolioItem
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
	Rule               = domain.Rule
	Request            = domain.Request
	Principal          = domain.Principal
)

const (
	CollectionPosts     = domain.CollectionPosts
	CollectionPortfolio = domain.CollectionPortfolio
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
