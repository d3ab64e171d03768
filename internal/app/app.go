// Package app assembles the chat service from its components. Construction is
// lazy and ordered by a samber/do injector; Close tears down in reverse.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/nfrund/goby-chat/internal/chat"
	"github.com/nfrund/goby-chat/internal/chat/events"
	"github.com/nfrund/goby-chat/internal/config"
	"github.com/nfrund/goby-chat/internal/i18n"
	"github.com/nfrund/goby-chat/internal/persistence"
	"github.com/nfrund/goby-chat/internal/pubsub"
	"github.com/nfrund/goby-chat/internal/session"
	"github.com/nfrund/goby-chat/internal/storage"
	"github.com/nfrund/goby-chat/internal/websocket"
)

// App holds the wired components.
type App struct {
	Config     config.Provider
	Backend    persistence.Backend
	Bus        *pubsub.WatermillBridge
	Chat       *chat.Service
	Images     *storage.ImageService
	Translator *i18n.Translator
	Sockets    *websocket.Handler

	injector *do.RootScope
	cancel   context.CancelFunc
}

// Providers registers a constructor for every component. ctx bounds the
// backend connection attempt only.
func Providers(ctx context.Context) func(do.Injector) {
	return func(i do.Injector) {
		do.Provide(i, func(i do.Injector) (persistence.Backend, error) {
			cfg, err := do.Invoke[config.Provider](i)
			if err != nil {
				return nil, err
			}
			return persistence.OpenAndMigrate(ctx, cfg)
		})

		do.Provide(i, func(i do.Injector) (*pubsub.WatermillBridge, error) {
			return pubsub.NewWatermillBridge(false), nil
		})

		do.Provide(i, func(i do.Injector) (*session.Registry, error) {
			return session.NewRegistry(), nil
		})

		do.Provide(i, func(i do.Injector) (*i18n.Translator, error) {
			cfg := do.MustInvoke[config.Provider](i)
			return i18n.New(cfg.GetDefaultLang()), nil
		})

		do.Provide(i, func(i do.Injector) (*storage.ImageService, error) {
			cfg := do.MustInvoke[config.Provider](i)
			store, err := storage.NewDiskStore(cfg.GetUploadDir())
			if err != nil {
				return nil, fmt.Errorf("upload dir %s: %w", cfg.GetUploadDir(), err)
			}
			return storage.NewImageService(store, cfg.GetUploadMaxBytes()), nil
		})

		do.Provide(i, func(i do.Injector) (*chat.Service, error) {
			backend, err := do.Invoke[persistence.Backend](i)
			if err != nil {
				return nil, err
			}
			return chat.NewService(
				backend,
				do.MustInvoke[*session.Registry](i),
				chat.WithPublisher(do.MustInvoke[*pubsub.WatermillBridge](i)),
			), nil
		})

		do.Provide(i, func(i do.Injector) (*websocket.Handler, error) {
			svc, err := do.Invoke[*chat.Service](i)
			if err != nil {
				return nil, err
			}
			return websocket.NewHandler(svc, do.MustInvoke[*i18n.Translator](i)), nil
		})
	}
}

// New connects the backend, applies its schema and starts the event
// subscribers.
func New(ctx context.Context, cfg config.Provider) (*App, error) {
	injector := do.New(Providers(ctx))
	do.ProvideValue(injector, cfg)
	return assemble(ctx, cfg, injector)
}

// assemble resolves the components from injector. The backend is resolved
// first and closed again if anything after it fails.
func assemble(ctx context.Context, cfg config.Provider, injector *do.RootScope) (*App, error) {
	backend, err := do.Invoke[persistence.Backend](injector)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	fail := func(err error) (*App, error) {
		if cerr := backend.Close(ctx); cerr != nil {
			slog.Warn("close backend after failed startup", "error", cerr)
		}
		return nil, err
	}

	sockets, err := do.Invoke[*websocket.Handler](injector)
	if err != nil {
		return fail(fmt.Errorf("wire application: %w", err))
	}
	images, err := do.Invoke[*storage.ImageService](injector)
	if err != nil {
		return fail(err)
	}

	a := &App{
		Config:     cfg,
		Backend:    backend,
		Bus:        do.MustInvoke[*pubsub.WatermillBridge](injector),
		Chat:       do.MustInvoke[*chat.Service](injector),
		Images:     images,
		Translator: do.MustInvoke[*i18n.Translator](injector),
		Sockets:    sockets,
		injector:   injector,
	}

	subCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if err := events.SubscribeAudit(subCtx, a.Bus, nil); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("subscribe audit log: %w", err)
	}
	if err := storage.SubscribeCleanup(subCtx, a.Bus, a.Images); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("subscribe image cleanup: %w", err)
	}

	slog.Info("application ready", "db_driver", cfg.GetDBDriver(), "upload_dir", cfg.GetUploadDir())
	return a, nil
}

// Close ends live connections, drops every binding, stops the bus and closes
// the backend.
func (a *App) Close(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.Sockets.Close()
	a.Chat.Shutdown()

	var errs []error
	if err := a.Bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close event bus: %w", err))
	}
	if err := a.Backend.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	return errors.Join(errs...)
}
