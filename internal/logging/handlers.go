package logging

import (
	"context"
	"log/slog"
)

// levelFilter wraps a handler and drops records below a minimum level.
// Backs the dedicated error log file.
type levelFilter struct {
	handler  slog.Handler
	minLevel slog.Level
}

func newLevelFilter(handler slog.Handler, minLevel slog.Level) *levelFilter {
	return &levelFilter{handler: handler, minLevel: minLevel}
}

func (h *levelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.minLevel {
		return false
	}
	return h.handler.Enabled(ctx, level)
}

func (h *levelFilter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.minLevel {
		return nil
	}
	return h.handler.Handle(ctx, r)
}

func (h *levelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelFilter{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *levelFilter) WithGroup(name string) slog.Handler {
	return &levelFilter{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

// multiHandler fans out log records to several handlers. Handle fails
// fast on the first handler error so logging errors are not silently
// dropped.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
