package jobs

import (
	"context"
	"fmt"

	logx "steamwatch/pkg/logx"
)

// CheckNews runs one news pass over all news subscriptions. Each news item
// is delivered at most once per app: a seen-marker is written when the
// item is first evaluated, even if delivery fails.
func (s *Service) CheckNews(ctx context.Context) error {
	subs, err := s.store.NewsSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load news subscriptions: %w", err)
	}
	count := s.settings().NewsCount

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, err := s.api.GetNewsForApp(ctx, sub.AppID, count)
		if err != nil {
			s.log.Warn("news fetch failed",
				logx.Int64("app", sub.AppID), logx.Err(err))
			continue
		}
		name := s.gameName(ctx, sub.AppID)
		for _, item := range items {
			seen, err := s.store.NewsSent(ctx, sub.AppID, item.GID)
			if err != nil {
				s.log.Warn("news lookup failed",
					logx.Int64("app", sub.AppID), logx.String("gid", item.GID), logx.Err(err))
				continue
			}
			if seen {
				continue
			}
			if err := s.store.MarkNewsSent(ctx, sub.AppID, item.GID); err != nil {
				s.log.Warn("news mark failed",
					logx.Int64("app", sub.AppID), logx.String("gid", item.GID), logx.Err(err))
				continue
			}
			if err := s.notify.News(ctx, sub.UserID, name, item); err != nil {
				s.log.Warn("news notify failed",
					logx.Int64("user", sub.UserID), logx.Int64("app", sub.AppID), logx.Err(err))
			}
		}
	}
	return nil
}

func (s *Service) gameName(ctx context.Context, appID int64) string {
	details, err := s.api.GetAppDetails(ctx, appID)
	if err != nil || details.Name == "" {
		return fmt.Sprintf("AppID %d", appID)
	}
	return details.Name
}
