package service

import (
	"context"
	"log/slog"
	"sync"
)

// progressReporter logs upload progress. Reports that do not advance the
// byte counter are dropped so the logged sequence is strictly increasing.
type progressReporter struct {
	ctx      context.Context
	logger   *slog.Logger
	filename string
	total    int64
	notify   func(current, total int64)

	mu   sync.Mutex
	sent int64
}

func newProgressReporter(ctx context.Context, logger *slog.Logger, filename string, total int64, notify func(current, total int64)) *progressReporter {
	return &progressReporter{
		ctx:      ctx,
		logger:   logger,
		filename: filename,
		total:    total,
		notify:   notify,
	}
}

func (p *progressReporter) update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if current <= p.sent {
		return
	}
	p.sent = current

	attrs := []any{
		slog.String("filename", p.filename),
		slog.Int64("bytes", current),
		slog.Int64("total", p.total),
	}
	if p.total > 0 {
		attrs = append(attrs, slog.Float64("percent", float64(current)*100/float64(p.total)))
	}
	p.logger.InfoContext(p.ctx, "Upload progress", attrs...)

	if p.notify != nil {
		p.notify(current, p.total)
	}
}

func (p *progressReporter) transferred() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}
