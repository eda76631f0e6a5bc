package proxy

import (
	"context"
	"log/slog"
	"time"
)

// Gateway wires the normalizer, invoker and renderer together. It is safe for
// concurrent use: nothing is shared between requests except its read-only settings.
type Gateway struct {
	normalizer *Normalizer
	invoker    *Invoker
	renderer   *Renderer
	logger     *slog.Logger
}

func NewGateway(cfg Config, h Handler, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		normalizer: NewNormalizer(cfg),
		invoker:    NewInvoker(h, cfg.Timeout),
		renderer:   NewRenderer(cfg),
		logger:     logger,
	}
}

// respond runs one normalized request through the handler. normErr carries a
// normalization failure, in which case the handler is never called.
func (g *Gateway) respond(ctx context.Context, requestID string, rec Record, normErr error) Response {
	start := time.Now()
	log := g.logger.With(slog.String("request_id", requestID))

	if normErr != nil {
		resp := g.renderer.RenderError(normErr)
		log.WarnContext(ctx, "request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("error", normErr.Error()),
		)
		return resp
	}

	log = log.With(slog.String("method", rec.Method()), slog.String("path", rec.Path()))

	res, err := g.invoker.Invoke(ctx, rec)
	if err != nil {
		resp := g.renderer.RenderError(err)
		log.ErrorContext(ctx, "invocation failed",
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return resp
	}

	resp, err := g.renderer.Render(res)
	if err != nil {
		resp = g.renderer.RenderError(err)
		log.ErrorContext(ctx, "render failed",
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		return resp
	}

	log.InfoContext(ctx, "request served",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return resp
}
