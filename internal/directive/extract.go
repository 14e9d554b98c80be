package directive

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
	"github.com/zulandar/kriya/internal/bus"
	"github.com/zulandar/kriya/internal/logging"
	"github.com/zulandar/kriya/internal/models"
	"go.uber.org/zap"
)

// sourcePrefixLen bounds the response excerpt stored in a handoff's context.
const sourcePrefixLen = 500

// Bus is the subset of *bus.Bus the extractor writes through.
type Bus interface {
	CreateHandoffOnce(ctx context.Context, dedupeKey, from, to, task string, hctx map[string]any) (bus.Handoff, bool, error)
	SendOnce(ctx context.Context, dedupeKey, from, to, content, typ string) (bus.Message, bool, error)
}

// Resolver maps a written target to a canonical agent ID. *agents.Directory
// satisfies it.
type Resolver interface {
	Resolve(id string) (string, bool)
}

// Result counts what one Process call did.
type Result struct {
	Handoffs   int
	Messages   int
	Broadcasts int
	Duplicates int
	Dropped    int
}

// Extractor turns directives into bus writes.
type Extractor struct {
	bus    Bus
	agents Resolver
	log    *zap.Logger
}

// NewExtractor returns an Extractor.
func NewExtractor(b Bus, agents Resolver, log *zap.Logger) *Extractor {
	return &Extractor{bus: b, agents: agents, log: logging.OrNop(log)}
}

// Process scans the complete response text of author and writes each
// directive to the bus. It never fails: unresolved targets and bus errors
// are logged and counted as dropped. Repeating a call with the same
// arguments creates nothing new.
func (e *Extractor) Process(ctx context.Context, author, text string) Result {
	var res Result
	directives := Scan(text)
	if len(directives) == 0 {
		return res
	}
	prefix := logging.Preview(text, sourcePrefixLen)

	for _, d := range directives {
		key := dedupeKey(author, text, d)
		var (
			created bool
			err     error
		)
		switch d.Kind {
		case KindHandoff, KindMessage:
			to, ok := e.agents.Resolve(d.Target)
			if !ok {
				e.log.Debug("directive target unresolved",
					zap.String("author", author), zap.String("kind", string(d.Kind)), zap.String("target", d.Target))
				res.Dropped++
				continue
			}
			if d.Kind == KindHandoff {
				_, created, err = e.bus.CreateHandoffOnce(ctx, key, author, to, d.Payload,
					map[string]any{"sourceResponsePrefix": prefix})
			} else {
				_, created, err = e.bus.SendOnce(ctx, key, author, to, d.Payload, models.MessageTypeRequest)
			}
		case KindBroadcast:
			_, created, err = e.bus.SendOnce(ctx, key, author, models.BroadcastRecipient, d.Payload, models.MessageTypeBroadcast)
		}
		if err != nil {
			e.log.Warn("directive dropped",
				zap.String("author", author), zap.String("kind", string(d.Kind)), zap.Error(err))
			res.Dropped++
			continue
		}
		if !created {
			res.Duplicates++
			continue
		}
		switch d.Kind {
		case KindHandoff:
			res.Handoffs++
		case KindMessage:
			res.Messages++
		case KindBroadcast:
			res.Broadcasts++
		}
		e.log.Info("directive applied",
			zap.String("author", author), zap.String("kind", string(d.Kind)),
			zap.String("target", d.Target), zap.String("payload", logging.Preview(d.Payload, 50)))
	}
	return res
}

// dedupeKey derives a 32-hex-char key from the directive's identity within
// one response.
func dedupeKey(author, text string, d Directive) string {
	h := blake3.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%s\x00", author, d.Ordinal, d.Kind, d.Target)
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
