package main

import (
	"context"
	"fmt"

	"nexonsite/internal/core"
	"nexonsite/pkg/domain"
)

// openService opens the configured document store and wraps it in a content
// service logging through the process logger.
func openService(opts ...core.ServiceOption) (*core.Service, func() error, error) {
	store, closeStore, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	opts = append([]core.ServiceOption{core.WithLogger(core.ZapLogger(logger.Named("content")))}, opts...)
	return core.NewService(store, opts...), closeStore, nil
}

// systemContext runs CLI maintenance commands as the system admin principal.
func systemContext(ctx context.Context) context.Context {
	return domain.WithPrincipal(ctx, domain.SystemPrincipal())
}
