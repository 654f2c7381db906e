package usage

import (
	"context"
	"errors"

	"github.com/dmi-project/dmi-gateway/internal/mq"

	"go.uber.org/zap"
)

// Tail consumes usage events from topic until ctx is done or the topic is
// closed. Undecodable messages are logged and skipped.
func Tail(ctx context.Context, queue mq.MQ, topic string, logger *zap.Logger, handle func(*Event)) error {
	for {
		data, err := queue.Receive(ctx, topic)
		if err != nil {
			if errors.Is(err, mq.ErrTopicClosed) || errors.Is(err, mq.ErrQueueClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		event, err := DecodeEvent(data)
		if err != nil {
			logger.Warn("skipping malformed usage event", zap.Error(err))
			continue
		}
		handle(event)
	}
}
