package jobs

import (
	"context"
	"fmt"
	"math"

	"steamwatch/internal/steam"
	logx "steamwatch/pkg/logx"
)

// CheckDeals runs one discount-and-price pass. Discounts are stateless:
// a subscribed game that is featured gets announced on every pass for as
// long as the promotion lasts. Market watches are stateful and
// edge-triggered against the last observed price.
func (s *Service) CheckDeals(ctx context.Context) error {
	set := s.settings()

	if err := s.checkDiscounts(ctx, set.DiscountCount); err != nil {
		s.log.Warn("discount pass failed", logx.Err(err))
	}
	if err := s.checkWatches(ctx, set.PriceAlertThreshold); err != nil {
		s.log.Warn("price pass failed", logx.Err(err))
	}
	return ctx.Err()
}

func (s *Service) checkDiscounts(ctx context.Context, limit int) error {
	subs, err := s.store.DealSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load deal subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	// One featured fetch per pass feeds every subscriber.
	specials, err := s.api.GetFeaturedGames(ctx)
	if err != nil {
		return fmt.Errorf("featured games: %w", err)
	}
	if limit > 0 && len(specials) > limit {
		specials = specials[:limit]
	}
	byApp := make(map[int64]steam.Special, len(specials))
	for _, sp := range specials {
		if sp.DiscountPercent > 0 {
			byApp[sp.AppID] = sp
		}
	}

	for _, sub := range subs {
		sp, ok := byApp[sub.AppID]
		if !ok {
			continue
		}
		if err := s.notify.Discount(ctx, sub.UserID, sp); err != nil {
			s.log.Warn("discount notify failed",
				logx.Int64("user", sub.UserID), logx.Int64("app", sub.AppID), logx.Err(err))
		}
	}
	return nil
}

func (s *Service) checkWatches(ctx context.Context, threshold float64) error {
	watches, err := s.store.Watches(ctx)
	if err != nil {
		return fmt.Errorf("load watches: %w", err)
	}

	for _, w := range watches {
		if err := ctx.Err(); err != nil {
			return err
		}
		overview, err := s.api.GetMarketPrice(ctx, w.AppID, w.HashName)
		if err != nil || !overview.Success {
			s.log.Debug("market price unavailable",
				logx.Int64("watch", w.ID), logx.String("item", w.HashName), logx.Err(err))
			continue
		}
		current, err := steam.ParsePrice(overview.LowestPrice)
		if err != nil {
			s.log.Debug("market price unparseable",
				logx.Int64("watch", w.ID), logx.String("raw", overview.LowestPrice), logx.Err(err))
			continue
		}

		// Target alert fires on the crossing, not while the price sits
		// below target. The Alerted latch clears on any upward move, so a
		// bounce above the last observation re-arms the trigger.
		alerted := w.Alerted
		if current <= w.DesiredPrice && !alerted {
			alerted = true
			if err := s.notify.PriceTarget(ctx, w.UserID, w, current); err != nil {
				s.log.Warn("price target notify failed",
					logx.Int64("watch", w.ID), logx.Err(err))
			}
		} else if w.LastPrice != nil && current > *w.LastPrice {
			alerted = false
		}

		// Swing alert is independent of the target.
		if w.LastPrice != nil && *w.LastPrice > 0 {
			pct := math.Abs(current-*w.LastPrice) / *w.LastPrice * 100
			if pct >= threshold {
				if err := s.notify.PriceChange(ctx, w.UserID, w, *w.LastPrice, current, pct); err != nil {
					s.log.Warn("price change notify failed",
						logx.Int64("watch", w.ID), logx.Err(err))
				}
			}
		}

		if err := s.store.UpdateWatchPrice(ctx, w.ID, current, s.now(), alerted); err != nil {
			s.log.Warn("watch update failed",
				logx.Int64("watch", w.ID), logx.Err(err))
		}
	}
	return nil
}
