package globe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/globeview/internal/badge"
	"github.com/OCAP2/globeview/internal/dispatcher"
	"github.com/OCAP2/globeview/internal/engine"
	"github.com/OCAP2/globeview/pkg/core"
)

// eventDiagnosticsFlush is dispatched after every move-end; its handler runs
// off the engine thread.
const eventDiagnosticsFlush = "diagnostics.flush"

const flushTimeout = 5 * time.Second

func (c *Controller) registerHandlers(cfg Config) {
	c.disp.Register(engine.EventMoveEnd, c.handleMoveEnd, dispatcher.Logged())
	c.disp.Register(engine.EventResize, c.handleResize, dispatcher.Logged())
	c.disp.Register(engine.EventPointerDown, func(dispatcher.Event) (any, error) {
		c.im.PointerDown()
		return nil, nil
	})
	c.disp.Register(engine.EventPointerUp, func(dispatcher.Event) (any, error) {
		c.im.PointerUp()
		return nil, nil
	})
	c.disp.Register(engine.EventWheel, func(dispatcher.Event) (any, error) {
		c.im.Wheel()
		return nil, nil
	})
	c.disp.Register(engine.EventClick, c.handleClick, dispatcher.Logged())
	c.disp.Register(engine.EventClusterFormed, c.handleClusterFormed, dispatcher.Recovered())

	if c.diag != nil {
		size := cfg.DiagnosticsBuffer
		if size <= 0 {
			size = 16
		}
		c.disp.Register(eventDiagnosticsFlush, func(dispatcher.Event) (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			return nil, c.diag.Flush(ctx)
		}, dispatcher.Buffered(size))
	}
}

// emit receives every host event on the engine thread.
func (c *Controller) emit(name string, payload any) {
	if c.closed || !c.disp.HasHandler(name) {
		return
	}
	_, err := c.disp.Dispatch(dispatcher.Event{Name: name, Payload: payload, Timestamp: c.host.Now()})
	if err != nil {
		c.log.Debug("host event not handled", "event", name, "error", err)
	}
	c.publish()
}

func (c *Controller) handleMoveEnd(dispatcher.Event) (any, error) {
	res := c.recluster()
	c.choreo.HandleMoveEnd()
	if c.diag != nil {
		// A full queue only delays the flush to the next move-end.
		if _, err := c.disp.Dispatch(dispatcher.Event{Name: eventDiagnosticsFlush, Timestamp: c.host.Now()}); err != nil {
			c.log.Debug("diagnostics flush skipped", "error", err)
		}
	}
	return res, nil
}

func (c *Controller) handleResize(dispatcher.Event) (any, error) {
	return c.recluster(), nil
}

func (c *Controller) handleClick(e dispatcher.Event) (any, error) {
	p, ok := e.Payload.(engine.PointerEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected click payload %T", e.Payload)
	}
	picked, ok := c.host.Pick(p.X, p.Y)
	if !ok {
		return nil, nil
	}
	switch v := picked.(type) {
	case *core.ClusterBadge:
		c.OnClusterClicked(v.Members)
		return v, nil
	case core.Marker:
		c.OnEntityClicked(v)
		return v, nil
	case *core.Marker:
		c.OnEntityClicked(*v)
		return v, nil
	default:
		// Something other than a marker or cluster; ignore.
		return nil, nil
	}
}

func (c *Controller) handleClusterFormed(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(engine.ClusterEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected cluster payload %T", e.Payload)
	}
	out := c.pipeline.Handle(ev)
	if out == badge.Failed {
		return out, fmt.Errorf("cluster badge for %d members failed", len(ev.Members))
	}
	return out, nil
}

// slogEventLogger adapts slog to the dispatcher's Logger.
type slogEventLogger struct {
	log *slog.Logger
}

func (l slogEventLogger) Debug(msg string, keysAndValues ...any) { l.log.Debug(msg, keysAndValues...) }
func (l slogEventLogger) Info(msg string, keysAndValues ...any)  { l.log.Info(msg, keysAndValues...) }
func (l slogEventLogger) Error(msg string, keysAndValues ...any) { l.log.Error(msg, keysAndValues...) }
